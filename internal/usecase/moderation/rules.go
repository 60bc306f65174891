// Package moderation evaluates chat messages against an ordered list of
// phrase rules and enforces the resulting verdicts.
package moderation

import (
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/text/cases"
)

// Rule maps a literal phrase or a regular expression to an action code.
//
// Action codes: 0 ban, 1 delete the message, >1 timeout for that many seconds.
type Rule struct {
	Pattern string
	Regex   bool
	Action  int
	Reason  string
}

type compiledRule struct {
	Rule
	folded string
	re     *regexp.Regexp
	err    error
}

// RuleSet is an ordered, immutable list of rules. Evaluation is first-match-wins.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet compiles rules in order. A rule that fails to compile stays in
// place but is skipped when matching.
func NewRuleSet(rules []Rule, logger *slog.Logger) *RuleSet {
	if logger == nil {
		logger = slog.Default()
	}
	fold := cases.Fold()
	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		cr := compiledRule{Rule: r}
		switch {
		case r.Pattern == "":
			cr.err = fmt.Errorf("empty pattern")
		case r.Regex:
			cr.re, cr.err = regexp.Compile("(?i)" + r.Pattern)
		default:
			cr.folded = fold.String(r.Pattern)
		}
		if cr.err != nil {
			logger.Warn("skipping malformed moderation rule", "index", i, "pattern", r.Pattern, "err", cr.err)
		}
		rs.rules = append(rs.rules, cr)
	}
	return rs
}

func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Valid returns how many rules compiled.
func (rs *RuleSet) Valid() int {
	n := 0
	for _, r := range rs.rules {
		if r.err == nil {
			n++
		}
	}
	return n
}

func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, rs.Len())
	for _, r := range rs.rules {
		out = append(out, r.Rule)
	}
	return out
}

// DefaultRules se usan cuando no hay archivo de reglas configurado.
func DefaultRules() []Rule {
	groups := []struct {
		phrases []string
		action  int
		reason  string
	}{
		{
			phrases: []string{
				"cheap viewers",
				"Best viewers on",
				"smmdex.ru",
				"streamboo.com",
				"NEZHNA.COM",
				"Live Viewers on",
				"Best viewers on 2222222",
			},
			action: 0,
			reason: "triggered banphrase viewbot service",
		},
		{phrases: []string{"separate"}, action: 1, reason: "please treat with respect"},
		{phrases: []string{"kdidfneienixne8nf38r"}, action: 300, reason: "Toxic behavior 5 minute timeout"},
	}

	var out []Rule
	for _, g := range groups {
		for _, p := range g.phrases {
			out = append(out, Rule{Pattern: p, Action: g.action, Reason: g.reason})
		}
	}
	return out
}
