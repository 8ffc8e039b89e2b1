package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrModelOutputInvalid is returned when the model answer is not valid JSON
// or violates the StructuredExtraction schema. It is never repaired.
var ErrModelOutputInvalid = errors.New("prompt: model output invalid")

// Priority of a topic.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Difficulty of a topic.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
)

func (d Difficulty) valid() bool {
	return d == DifficultyEasy || d == DifficultyModerate || d == DifficultyHard
}

// Media is a video or playlist attached to an extraction by the video index.
type Media struct {
	Kind      string `json:"kind"` // "video" or "playlist"
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	URL       string `json:"url"`
}

// Topic is one question-solving unit.
type Topic struct {
	MainTopic     string     `json:"main_topic"`
	Priority      Priority   `json:"priority"`
	Difficulty    Difficulty `json:"difficulty"`
	SideTopics    []string   `json:"side_topics"`
	Definition    string     `json:"definition"`
	TopicQuery    string     `json:"topic_query,omitempty"`
	PlaylistQuery string     `json:"playlist_query,omitempty"`
	QuestionTypes []string   `json:"question_types"`

	// Completed is false after Parse and set once videos are attached.
	Completed bool    `json:"completed"`
	Videos    []Media `json:"videos,omitempty"`
}

// StructuredExtraction is the model's answer: the subject and its ordered
// topics.
type StructuredExtraction struct {
	Subject          string  `json:"subject"`
	Topics           []Topic `json:"topics"`
	SubjectPlaylists []Media `json:"subject_playlists,omitempty"`
}

// Validate checks the schema invariants: a non-empty subject, at least one
// topic, and for each topic a non-empty main_topic with in-enum priority
// and difficulty.
func (s *StructuredExtraction) Validate() error {
	if strings.TrimSpace(s.Subject) == "" {
		return fmt.Errorf("%w: empty subject", ErrModelOutputInvalid)
	}
	if len(s.Topics) == 0 {
		return fmt.Errorf("%w: no topics", ErrModelOutputInvalid)
	}
	for i, t := range s.Topics {
		if strings.TrimSpace(t.MainTopic) == "" {
			return fmt.Errorf("%w: topic %d: empty main_topic", ErrModelOutputInvalid, i)
		}
		if !t.Priority.valid() {
			return fmt.Errorf("%w: topic %d: priority %q", ErrModelOutputInvalid, i, t.Priority)
		}
		if !t.Difficulty.valid() {
			return fmt.Errorf("%w: topic %d: difficulty %q", ErrModelOutputInvalid, i, t.Difficulty)
		}
	}
	return nil
}

var reasoningRe = regexp.MustCompile(`(?is)<think>.*?</think>|<thinking>.*?</thinking>|<reasoning>.*?</reasoning>`)

// StripReasoning removes <think>, <thinking> and <reasoning> blocks and
// trims the rest. Without such blocks it only trims.
func StripReasoning(raw string) string {
	return strings.TrimSpace(reasoningRe.ReplaceAllString(raw, ""))
}

// Parse strips reasoning blocks from a raw model answer, decodes it and
// validates it. Every topic comes back with Completed false.
func Parse(raw string) (*StructuredExtraction, error) {
	body := StripReasoning(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrModelOutputInvalid)
	}
	var out StructuredExtraction
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelOutputInvalid, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	for i := range out.Topics {
		out.Topics[i].Completed = false
	}
	return &out, nil
}
