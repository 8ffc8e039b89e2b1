// Package prompt builds the structured-extraction request from cleaned exam
// text and validates the model's answer.
//
// The instruction template is embedded and owns the business rules (topic
// count, prerequisite and side-topic limits, enums). Build never performs
// network I/O; the caller hands Request.Prompt to a model and passes the
// raw answer to Parse.
package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/hazyhaar/examprep/junkfilter"
)

//go:embed template.txt
var defaultTemplate string

// ErrEmptyExamText is returned by Build when nothing survives the junk filter.
var ErrEmptyExamText = errors.New("prompt: no valid exam questions after cleaning")

// Rules parameterizes the instruction template.
type Rules struct {
	MinTopics        int `json:"min_topics" yaml:"min_topics"`
	MaxPrerequisites int `json:"max_prerequisites" yaml:"max_prerequisites"`
	MaxSideTopics    int `json:"max_side_topics" yaml:"max_side_topics"`
	QuestionTypes    int `json:"question_types" yaml:"question_types"`
	DefinitionWords  int `json:"definition_words" yaml:"definition_words"`
}

// DefaultRules returns the production rule set.
func DefaultRules() Rules {
	return Rules{
		MinTopics:        15,
		MaxPrerequisites: 3,
		MaxSideTopics:    3,
		QuestionTypes:    3,
		DefinitionWords:  30,
	}
}

func (r *Rules) defaults() {
	d := DefaultRules()
	if r.MinTopics <= 0 {
		r.MinTopics = d.MinTopics
	}
	if r.MaxPrerequisites <= 0 {
		r.MaxPrerequisites = d.MaxPrerequisites
	}
	if r.MaxSideTopics <= 0 {
		r.MaxSideTopics = d.MaxSideTopics
	}
	if r.QuestionTypes <= 0 {
		r.QuestionTypes = d.QuestionTypes
	}
	if r.DefinitionWords <= 0 {
		r.DefinitionWords = d.DefinitionWords
	}
}

// Request is one structured-extraction request. It is built once per batch
// and not persisted.
type Request struct {
	Prompt       string `json:"prompt"`
	ExamText     string `json:"exam_text"`
	SyllabusText string `json:"syllabus_text,omitempty"`
}

// Builder renders Requests.
type Builder struct {
	rules  Rules
	filter *junkfilter.Filter
	tmpl   *template.Template
}

// BuilderOption configures a Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	filter   *junkfilter.Filter
	template string
}

// WithFilter replaces the default junk filter.
func WithFilter(f *junkfilter.Filter) BuilderOption {
	return func(o *builderOptions) { o.filter = f }
}

// WithTemplate replaces the embedded instruction template.
func WithTemplate(text string) BuilderOption {
	return func(o *builderOptions) { o.template = text }
}

// NewBuilder parses the instruction template.
func NewBuilder(rules Rules, opts ...BuilderOption) (*Builder, error) {
	rules.defaults()
	o := builderOptions{template: defaultTemplate}
	for _, fn := range opts {
		fn(&o)
	}
	if o.filter == nil {
		o.filter = junkfilter.New()
	}
	tmpl, err := template.New("extraction").Option("missingkey=error").Parse(o.template)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse template: %w", err)
	}
	return &Builder{rules: rules, filter: o.filter, tmpl: tmpl}, nil
}

type templateInput struct {
	Rules
	HasSyllabus  bool
	SyllabusText string
	ExamText     string
}

// Build cleans examText, embeds it with syllabusText into the template and
// sanitizes the result.
func (b *Builder) Build(examText, syllabusText string) (*Request, error) {
	cleaned := b.filter.Clean(examText)
	if cleaned == "" {
		return nil, ErrEmptyExamText
	}
	syllabusText = strings.TrimSpace(syllabusText)

	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, templateInput{
		Rules:        b.rules,
		HasSyllabus:  syllabusText != "",
		SyllabusText: syllabusText,
		ExamText:     cleaned,
	})
	if err != nil {
		return nil, fmt.Errorf("prompt: render: %w", err)
	}
	return &Request{
		Prompt:       Sanitize(buf.String()),
		ExamText:     cleaned,
		SyllabusText: syllabusText,
	}, nil
}

var (
	carriageReturnRe = regexp.MustCompile(`\r`)
	hspaceRunRe      = regexp.MustCompile(`[ \t]+`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
	trailingDashesRe = regexp.MustCompile(`-+\n`)
)

// Sanitize makes a prompt whitespace-canonical: no carriage returns, single
// spaces, at most one blank line in a row, and no dash runs ending a line.
func Sanitize(s string) string {
	s = carriageReturnRe.ReplaceAllString(s, "")
	s = hspaceRunRe.ReplaceAllString(s, " ")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = trailingDashesRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
