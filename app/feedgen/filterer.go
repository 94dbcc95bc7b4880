package feedgen

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/subtide/subtide/app/database"
)

var foldCaser = cases.Fold()

type compiledRule struct {
	rule database.FilterRule

	// Keyword rules: exactly one of these is set. Wildcard patterns match
	// as substrings, plain patterns only on word boundaries.
	substring string
	wordRe    *regexp.Regexp
}

// FilterEngine evaluates a user's exclusion rules against items. An item is
// excluded as soon as any rule matches.
type FilterEngine struct {
	rules []compiledRule
}

func NewFilterEngine(rules []database.FilterRule) *FilterEngine {
	engine := &FilterEngine{rules: make([]compiledRule, 0, len(rules))}

	for _, rule := range rules {
		compiled := compiledRule{rule: rule}

		if rule.Kind == database.FilterRuleKeyword {
			pattern := strings.TrimSpace(rule.Pattern)
			term := strings.Trim(pattern, "*")
			// Blank patterns and bare asterisks carry no term to match;
			// compiling them would exclude everything.
			if term == "" {
				continue
			}

			if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 2 {
				compiled.substring = foldCaser.String(term)
			} else {
				compiled.wordRe = regexp.MustCompile(`\b` + regexp.QuoteMeta(foldCaser.String(term)) + `\b`)
			}
		}

		engine.rules = append(engine.rules, compiled)
	}

	return engine
}

// Evaluate reports whether the item is excluded and, if so, by which rule.
func (e *FilterEngine) Evaluate(item database.ContentItem) (bool, *database.FilterRule) {
	for i := range e.rules {
		if e.rules[i].matches(item) {
			return true, &e.rules[i].rule
		}
	}
	return false, nil
}

// Apply returns the surviving items, order-preserving.
func (e *FilterEngine) Apply(items []database.ContentItem) []database.ContentItem {
	if len(e.rules) == 0 {
		return items
	}

	survivors := make([]database.ContentItem, 0, len(items))
	for _, item := range items {
		if excluded, _ := e.Evaluate(item); excluded {
			continue
		}
		survivors = append(survivors, item)
	}
	return survivors
}

func (c *compiledRule) matches(item database.ContentItem) bool {
	switch c.rule.Kind {
	case database.FilterRuleKeyword:
		// Absent description behaves as an empty string, not a skip.
		haystack := foldCaser.String(item.Title + " " + item.Description)
		if c.substring != "" {
			return strings.Contains(haystack, c.substring)
		}
		if c.wordRe != nil {
			return c.wordRe.MatchString(haystack)
		}
		return false

	case database.FilterRuleDuration:
		// Unknown duration is never filtered by duration rules.
		if item.DurationSeconds == nil {
			return false
		}
		d := *item.DurationSeconds
		if c.rule.MinSeconds != nil && d < *c.rule.MinSeconds {
			return true
		}
		if c.rule.MaxSeconds != nil && d > *c.rule.MaxSeconds {
			return true
		}
		return false

	default:
		return false
	}
}
