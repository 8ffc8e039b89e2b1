// Package junkfilter normalizes extracted exam text and strips boilerplate
// lines (candidate fields, pagination, headers, instructions, marking
// scheme, separators) before the text is handed to structured extraction.
//
// Clean is deterministic and idempotent: Clean(Clean(x)) == Clean(x).
//
// Usage:
//
//	cleaned := junkfilter.Clean(rawText)
//
//	f := junkfilter.New(junkfilter.WithRules(append(junkfilter.DefaultRules, myRule)...))
//	cleaned = f.Clean(rawText)
package junkfilter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinLineLength is the shortest line kept. Lines of this length or
// shorter are dropped.
const DefaultMinLineLength = 5

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t]+`)
	blankRunRe        = regexp.MustCompile(`\n{2,}`)
)

// Filter holds a rule table and the minimum line length.
type Filter struct {
	rules   []Rule
	minLine int
}

// Option configures a Filter.
type Option func(*Filter)

// WithRules replaces the rule table.
func WithRules(rules ...Rule) Option {
	return func(f *Filter) { f.rules = rules }
}

// WithMinLineLength sets the length at or below which lines are dropped.
func WithMinLineLength(n int) Option {
	return func(f *Filter) { f.minLine = n }
}

// New creates a Filter using DefaultRules unless overridden.
func New(opts ...Option) *Filter {
	f := &Filter{rules: DefaultRules, minLine: DefaultMinLineLength}
	for _, o := range opts {
		o(f)
	}
	return f
}

var defaultFilter = New()

// Clean runs the default filter.
func Clean(raw string) string {
	return defaultFilter.Clean(raw)
}

// Clean normalizes raw and returns the surviving lines joined by "\n".
// Steps run in order: drop carriage returns and collapse horizontal
// whitespace, collapse blank-line runs, trim each line, drop short lines,
// drop lines matched by a rule, drop repeats of an earlier line.
func (f *Filter) Clean(raw string) string {
	text := strings.ReplaceAll(raw, "\r", "")
	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n")

	seen := make(map[string]struct{})
	kept := make([]string, 0, strings.Count(text, "\n")+1)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= f.minLine {
			continue
		}
		if f.IsJunk(line) {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// IsJunk reports whether any rule matches line.
func (f *Filter) IsJunk(line string) bool {
	_, ok := f.MatchRule(line)
	return ok
}

// MatchRule returns the first rule matching line.
func (f *Filter) MatchRule(line string) (Rule, bool) {
	for _, r := range f.rules {
		if r.Match(line) {
			return r, true
		}
	}
	return Rule{}, false
}
