package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"modBot/internal/usecase/moderation"
)

// PhraseEntry es una entrada del archivo de reglas:
//
//	phrases:
//	  - words: ["cheap viewers", "smmdex.ru"]
//	    action: 0
//	    reason: triggered banphrase viewbot service
//	  - patterns: ["f+r+e+e\\s+followers"]
//	    action: 300
//	    reason: follower spam
type PhraseEntry struct {
	Words    []string `yaml:"words"`
	Patterns []string `yaml:"patterns"`
	Action   *int     `yaml:"action"`
	Reason   string   `yaml:"reason"`
}

type RulesFile struct {
	Phrases []PhraseEntry `yaml:"phrases"`
}

// LoadRules reads a YAML rules file and flattens it, in file order, into
// moderation rules. Words come before patterns within an entry.
func LoadRules(path string) ([]moderation.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read rules: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) ([]moderation.Rule, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse rules: %w", err)
	}

	var rules []moderation.Rule
	for i, entry := range file.Phrases {
		if entry.Action == nil {
			return nil, fmt.Errorf("config: phrase entry %d: missing action", i)
		}
		if len(entry.Words) == 0 && len(entry.Patterns) == 0 {
			return nil, fmt.Errorf("config: phrase entry %d: no words or patterns", i)
		}
		for _, w := range entry.Words {
			if strings.TrimSpace(w) == "" {
				continue
			}
			rules = append(rules, moderation.Rule{Pattern: w, Action: *entry.Action, Reason: entry.Reason})
		}
		for _, p := range entry.Patterns {
			rules = append(rules, moderation.Rule{Pattern: p, Regex: true, Action: *entry.Action, Reason: entry.Reason})
		}
	}
	return rules, nil
}
