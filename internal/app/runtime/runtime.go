package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"modBot/internal/app/events"
	"modBot/internal/domain"
	"modBot/internal/infrastructure/config"
	sqlitestorage "modBot/internal/infrastructure/persistence/sqlite"
	"modBot/internal/infrastructure/platform/ivr"
	twitchinfra "modBot/internal/infrastructure/platform/twitch"
	twitchadapter "modBot/internal/interface/adapters/twitch"
	ws "modBot/internal/interface/api/ws"
	"modBot/internal/interface/outs"
	"modBot/internal/usecase/commands"
	"modBot/internal/usecase/credentials"
	"modBot/internal/usecase/handle_message"
	"modBot/internal/usecase/moderation"
)

const (
	pruneInterval   = 5 * time.Minute
	refreshInterval = 1 * time.Hour
)

type Options struct {
	EnvFiles  []string
	LogLevel  string
	RulesPath string
	LogOutput io.Writer
}

type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	log    *slog.Logger

	store      *sqlitestorage.Store
	refresher  *credentials.Refresher
	bus        *events.Bus
	twitchAd   *twitchadapter.Adapter
	multiOut   *outs.MultiSender
	wsServer   *ws.Server
	registry   *commands.Registry
	cooldowns  *commands.CooldownTracker
	dispatcher *commands.Dispatcher
	matcher    *moderation.Matcher
	executor   *moderation.Executor
	handler    *handle_message.Interactor

	wg      sync.WaitGroup
	started bool
}

func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.RulesPath != "" {
		cfg.RulesPath = opts.RulesPath
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, opts.LogOutput)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := sqlitestorage.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	runtimeCtx, cancel := context.WithCancel(ctx)
	run := &Runtime{
		ctx:    runtimeCtx,
		cancel: cancel,
		cfg:    cfg,
		log:    logger.With("component", "runtime"),
		store:  store,
		bus:    events.NewBus(),
	}

	rules, err := LoadRules(cfg.RulesPath, logger)
	if err != nil {
		cancel()
		store.Close()
		return nil, err
	}

	run.refresher = credentials.NewRefresher(store, credentials.TwitchConfig{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
	}, logger)
	accessToken := run.loadAccessToken(runtimeCtx)

	var (
		modAPI    domain.ModerationAPI
		directory domain.UserDirectory
	)
	helixSvc, err := twitchinfra.NewModerationService(twitchinfra.Config{
		ClientID:    cfg.TwitchClientID,
		AccessToken: accessToken,
		ModeratorID: cfg.TwitchBotUserID,
		Timeout:     cfg.APITimeout,
		Logger:      logger,
	})
	if err != nil {
		run.log.Warn("helix unavailable, moderation actions will fail", "err", err)
	} else {
		modAPI = helixSvc
		directory = helixSvc
		run.refresher.RegisterHook(func(_ context.Context, cred *domain.Credential) {
			if cred.Role == domain.CredentialRoleBot {
				helixSvc.UpdateAccessToken(cred.AccessToken)
			}
		})
	}
	if cfg.TwitchClientSecret != "" {
		run.refresher.Start(runtimeCtx, refreshInterval)
	}

	channels, err := run.initialChannels(runtimeCtx)
	if err != nil {
		run.log.Warn("could not load persisted channels", "err", err)
	}

	run.twitchAd = twitchadapter.NewAdapter(twitchadapter.Config{
		Username:   cfg.TwitchUsername,
		OAuthToken: formatTwitchOAuthToken(accessToken),
		Channels:   channels,
		RateLimit:  cfg.ChatRateLimit,
		Logger:     logger,
	})
	run.multiOut = outs.NewMultiSender(domain.PlatformTwitch)
	run.multiOut.Register(domain.PlatformTwitch, run.twitchAd)

	run.registry = commands.NewRegistry(logger)
	run.cooldowns = commands.NewCooldownTracker()
	run.registry.Load(commands.BuiltinCommands(commands.BuiltinDeps{
		Prefix:    cfg.CommandPrefix,
		Registry:  run.registry,
		Cooldowns: run.cooldowns,
		Channels:  store,
		Directory: directory,
		Profiles:  ivr.NewClient(ivr.DefaultBaseURL, 0, logger),
		Logger:    logger,
	}))

	run.dispatcher = commands.NewDispatcher(commands.DispatcherConfig{
		Prefix:        cfg.CommandPrefix,
		Registry:      run.registry,
		Cooldowns:     run.cooldowns,
		Users:         store,
		Publisher:     run.bus,
		Logger:        logger,
		LookupTimeout: cfg.APITimeout,
	})

	run.matcher = moderation.NewMatcher(moderation.NewRuleSet(rules, logger))
	run.executor = moderation.NewExecutor(moderation.ExecutorConfig{
		API:         modAPI,
		Log:         store,
		Publisher:   run.bus,
		Logger:      logger,
		Attribution: cfg.BotName,
		CallTimeout: cfg.APITimeout,
	})

	run.handler = handle_message.NewInteractor(handle_message.Config{
		Out:        run.multiOut,
		Dispatcher: run.dispatcher,
		Matcher:    run.matcher,
		Executor:   run.executor,
		Logger:     logger,
		BotLogin:   cfg.TwitchUsername,
	})
	run.twitchAd.SetHandler(run.DispatchMessage)

	run.wsServer = ws.NewServer(ws.Config{
		Addr:          cfg.HTTPAddr,
		Bus:           run.bus,
		Registry:      run.registry,
		Cooldowns:     run.cooldowns,
		ModerationLog: store,
		Users:         store,
		Logger:        logger,
	})

	run.goRun("http", func(ctx context.Context) error {
		return run.wsServer.Start(ctx)
	})
	run.goRun("twitch", func(ctx context.Context) error {
		return run.twitchAd.Start(ctx, func() {
			run.bus.Publish(events.TopicTwitchConnected, events.TwitchBotEventDTO{
				Username: cfg.TwitchUsername,
				Channels: run.twitchAd.Channels(),
			})
		})
	})
	run.goRun("cooldown-prune", run.pruneLoop)

	run.started = true
	run.log.Info("bot started",
		"user", cfg.TwitchUsername,
		"channels", channels,
		"commands", run.registry.Len(),
		"rules", len(rules),
	)
	return run, nil
}

// LoadRules lee el archivo de reglas o, si no hay, usa las reglas por defecto.
func LoadRules(path string, logger *slog.Logger) ([]moderation.Rule, error) {
	if path == "" {
		logger.Info("no rules file configured, using default rules")
		return moderation.DefaultRules(), nil
	}
	rules, err := config.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rules, nil
}

// loadAccessToken siembra el token de la configuración y lo renueva si está por vencer.
func (r *Runtime) loadAccessToken(ctx context.Context) string {
	cred, err := r.refresher.Seed(ctx, r.cfg.TwitchAccessToken, r.cfg.TwitchRefreshToken)
	if err != nil {
		r.log.Warn("could not load stored credential", "err", err)
		return r.cfg.TwitchAccessToken
	}
	if cred == nil {
		return r.cfg.TwitchAccessToken
	}
	if r.cfg.TwitchClientSecret != "" {
		if err := r.refresher.RefreshAll(ctx); err != nil {
			r.log.Warn("initial token refresh failed", "err", err)
			return cred.AccessToken
		}
		if fresh, err := r.store.GetCredential(ctx, domain.PlatformTwitch, domain.CredentialRoleBot); err == nil && fresh != nil {
			return fresh.AccessToken
		}
	}
	return cred.AccessToken
}

func (r *Runtime) initialChannels(ctx context.Context) ([]string, error) {
	channels := slices.Clone(r.cfg.TwitchChannels)
	persisted, err := r.store.ListChannels(ctx)
	if err != nil {
		return channels, err
	}
	for _, ch := range persisted {
		if !slices.Contains(channels, ch.Name) {
			channels = append(channels, ch.Name)
		}
	}
	return channels, nil
}

func (r *Runtime) goRun(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("component stopped", "name", name, "err", err)
			r.bus.Publish(events.TopicAppError, map[string]string{"component": name, "error": err.Error()})
		}
	}()
}

func (r *Runtime) pruneLoop(ctx context.Context) error {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := r.cooldowns.Prune(); n > 0 {
				r.log.Debug("pruned cooldown entries", "count", n)
			}
		}
	}
}

// DispatchMessage publica el mensaje en el bus y lo pasa a los pipelines.
func (r *Runtime) DispatchMessage(ctx context.Context, msg domain.Message) error {
	if r == nil || r.handler == nil {
		return fmt.Errorf("dispatcher unavailable")
	}
	if ctx == nil {
		ctx = r.ctx
	}
	r.bus.Publish(events.TopicChatMessage, events.NewChatMessageDTO(msg))
	return r.handler.Handle(ctx, msg)
}

// Wait bloquea hasta que todos los componentes terminen.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

func (r *Runtime) Stop() error {
	if r == nil || !r.started {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	r.bus.Close()
	r.started = false
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			return err
		}
	}
	r.log.Info("bot stopped")
	return nil
}

func (r *Runtime) Bus() *events.Bus {
	if r == nil {
		return nil
	}
	return r.bus
}

func (r *Runtime) Config() *config.Config {
	if r == nil {
		return nil
	}
	return r.cfg
}

func formatTwitchOAuthToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) > 6 && token[:6] == "oauth:" {
		return token
	}
	return "oauth:" + token
}
