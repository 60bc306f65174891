package moderation

import (
	"strings"

	"golang.org/x/text/cases"
)

type Verdict struct {
	Violation      bool   `json:"violation"`
	Action         int    `json:"action"`
	Reason         string `json:"reason,omitempty"`
	MatchedPattern string `json:"matched_pattern,omitempty"`
}

func Clean() Verdict {
	return Verdict{}
}

type Matcher struct {
	rules *RuleSet
}

func NewMatcher(rules *RuleSet) *Matcher {
	return &Matcher{rules: rules}
}

// Match returns the verdict of the first rule that matches text.
func (m *Matcher) Match(text string) Verdict {
	if m == nil || m.rules == nil || text == "" {
		return Clean()
	}

	// cases.Caser keeps state, so each call gets its own.
	folded := cases.Fold().String(text)
	for _, r := range m.rules.rules {
		if r.err != nil {
			continue
		}
		matched := false
		if r.re != nil {
			matched = r.re.MatchString(text)
		} else {
			matched = strings.Contains(folded, r.folded)
		}
		if matched {
			return Verdict{
				Violation:      true,
				Action:         r.Action,
				Reason:         r.Reason,
				MatchedPattern: r.Pattern,
			}
		}
	}
	return Clean()
}
