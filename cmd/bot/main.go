package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"modBot/internal/app/runtime"
	"modBot/internal/infrastructure/config"
	"modBot/internal/usecase/moderation"
)

func main() {
	app := cli.App{
		Name:  "modbot",
		Usage: "Twitch chat bot with commands and phrase moderation",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading the environment",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log verbosity (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "path to the YAML moderation rules file",
				EnvVars: []string{"RULES_PATH"},
			},
		},
		Action: runBot,
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "connect to chat and start the bot",
			Action: runBot,
		},
		{
			Name:  "rules",
			Usage: "inspect moderation rule files",
			Subcommands: []*cli.Command{
				{
					Name:      "check",
					Usage:     "validate a rules file",
					ArgsUsage: "<file>",
					Action:    runRulesCheck,
				},
				{
					Name:      "test",
					Usage:     "print the verdict for a message",
					ArgsUsage: "<file> <text>",
					Action:    runRulesTest,
				},
			},
		},
	}
	app.RunAndExitOnError()
}

func runBot(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := runtime.Start(ctx, runtime.Options{
		EnvFiles:  cctx.StringSlice("env-file"),
		LogLevel:  cctx.String("log-level"),
		RulesPath: cctx.String("rules"),
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return run.Stop()
}

func runRulesCheck(cctx *cli.Context) error {
	path := cctx.Args().First()
	if path == "" {
		return cli.Exit("need to provide a rules file as an argument", 1)
	}

	rules, err := config.LoadRules(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	rs := moderation.NewRuleSet(rules, quietLogger(cctx))
	fmt.Printf("%s: %d rules, %d valid\n", path, rs.Len(), rs.Valid())
	if rs.Valid() != rs.Len() {
		return cli.Exit("some rules failed to compile", 1)
	}
	return nil
}

func runRulesTest(cctx *cli.Context) error {
	if cctx.NArg() < 2 {
		return cli.Exit("usage: rules test <file> <text>", 1)
	}
	path := cctx.Args().First()
	text := strings.Join(cctx.Args().Tail(), " ")

	rules, err := config.LoadRules(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	m := moderation.NewMatcher(moderation.NewRuleSet(rules, quietLogger(cctx)))

	out, err := json.MarshalIndent(m.Match(text), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func quietLogger(cctx *cli.Context) *slog.Logger {
	level := cctx.String("log-level")
	if level == "" {
		level = "warn"
	}
	return config.NewLogger(level, "text", os.Stderr)
}

