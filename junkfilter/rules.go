package junkfilter

import "regexp"

// Rule is one boilerplate pattern. Matching is case-insensitive and runs
// against a single trimmed line.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// NewRule compiles pattern as a case-insensitive rule. It panics on an
// invalid expression, like regexp.MustCompile.
func NewRule(name, pattern string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// Match reports whether line is matched by the rule.
func (r Rule) Match(line string) bool {
	return r.Pattern.MatchString(line)
}

// DefaultRules is the exam-boilerplate catalogue. Extending it is additive:
// append a Rule and add a case to rules_test.go.
var DefaultRules = []Rule{
	// Candidate identity fields.
	NewRule("registration", `\bregistration\b`),
	NewRule("reg-no", `\breg\.?\s*no\b`),
	NewRule("roll-no", `\broll\s*no\b`),
	NewRule("seat-no", `\bseat\s*no\b`),
	NewRule("candidate-name", `\b(candidate|student)('s)?\s+name\b`),
	NewRule("hall-ticket", `\b(hall\s*ticket|admit\s*card)\b`),
	NewRule("uid", `\buid\b`),
	NewRule("enrollment", `\benrol(l)?ment\b`),

	// Pagination.
	NewRule("page-header", `^page\s*\d+`),
	NewRule("page-of", `^-*\s*\d+\s+of\s+\d+\s*-*$`),
	NewRule("page-count", `\btotal\s+(number\s+of\s+)?pages\b`),

	// Paper identification.
	NewRule("paper-code", `\b(question\s+)?paper\s*code\b`),
	NewRule("q-code", `\bq\.?\s*code\b`),
	NewRule("set-code", `^(set|series|version)\s*[-:]?\s*([a-z]|[0-9]{1,3}|[ivx]{1,4})\b`),
	NewRule("model-paper", `\bmodel\s+(question\s+)?paper\b`),

	// Timing and marking scheme.
	NewRule("time", `\btime\s*(allowed|allotted)?\s*[:=]`),
	NewRule("duration", `^duration\b|\bduration\s*[:=]`),
	NewRule("max-marks", `\bmax(imum)?\.?\s*marks\b`),
	NewRule("full-marks", `\b(full|pass|total)\s+marks\b`),
	NewRule("negative-marking", `\bnegative\s+marking\b`),

	// Boards, institutions and programmes.
	NewRule("board", `\b(cbse|icse|state\s+board|ssc|hsc|ncert)\b`),
	NewRule("university", `\b(university|autonomous)\b`),
	NewRule("class", `\bclass\s*[-:]?\s*(vi|vii|viii|ix|x|xi|xii|6|7|8|9|10|11|12)\b`),
	NewRule("semester", `\bsemester\b`),
	NewRule("academic-year", `\b(academic|first|second|third|fourth|final)\s+year\b`),
	NewRule("course", `^(course|programme|program|branch)\s*(code|name|title)?\s*[:=-]`),
	NewRule("degree", `\b(b\.\s?tech|m\.\s?tech|b\.\s?sc|m\.\s?sc|bca|mca|mba)\b`),

	// Instructions.
	NewRule("answer-all", `\b(answer|attempt)\s+(all|any)\b`),
	NewRule("instructions", `^(general\s+|important\s+)?instructions?\b|\binstructions?\s+to\s+(the\s+)?candidates?\b`),
	NewRule("margin-figures", `\bfigures\s+in\s+the\s+right[-\s]hand\s+margin\b`),
	NewRule("calculator", `\buse\s+of\s+(scientific\s+)?calculators?\b`),
	NewRule("neat-diagram", `\bneat\s+(and\s+labell?ed\s+)?diagrams?\b`),
	NewRule("assume-suitable", `\bassume\s+suitable\b`),

	// Section headers.
	NewRule("part-header", `^part\s*[-:]?\s*([a-z]|[0-9]{1,3}|[ivx]{1,4})\b`),
	NewRule("section-header", `^section\s*[-:]?\s*([a-z]|[0-9]{1,3}|[ivx]{1,4})\b`),

	// Outcome codes.
	NewRule("co-level", `\b(co|bt)\s*level\b`),
	NewRule("course-outcome", `\bcourse\s+outcomes?\b`),
	NewRule("blooms", `\bbloom'?s\b`),
	NewRule("learning-outcome", `\blearning\s+outcomes?\b`),

	// Question-type labels.
	NewRule("answer-type", `\b(very\s+)?(short|long)\s+answer(\s+type)?\b`),
	NewRule("objective-type", `\bobjective\s+type\b`),
	NewRule("multiple-choice", `\b(multiple\s+choice|mcqs?)\b`),
	NewRule("fill-blanks", `\bfill\s+in\s+the\s+blanks?\b`),
	NewRule("true-false", `\btrue\s+or\s+false\b`),
	NewRule("match-following", `\bmatch\s+the\s+following\b`),
	NewRule("assertion-reason", `\bassertion\s*[-&/]?\s*(and\s+)?reason\b`),
	NewRule("numerical-value", `\bnumerical\s+value\s+type\b`),

	// Decorative separator runs.
	NewRule("em-dash-run", `—{2,}`),
	NewRule("underscore-run", `_{3,}`),
	NewRule("star-run", `\*{3,}`),
	NewRule("pipe-run", `\|{2,}`),
	NewRule("equals-run", `={2,}`),
	NewRule("hyphen-run", `-{3,}`),

	// Bare enumerators.
	NewRule("bare-number", `^\(?\d+[.)]?$`),
	NewRule("bare-letter", `^\(?[a-z][.)]?$`),
	NewRule("bare-roman", `^\(?[ivxl]+[.)]?$`),
}
