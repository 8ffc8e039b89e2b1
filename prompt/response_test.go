package prompt

import (
	"errors"
	"testing"
)

const validAnswer = `{
  "subject": "Engineering Physics",
  "topics": [
    {
      "main_topic": "Derivation of the wave equation",
      "priority": "high",
      "difficulty": "moderate",
      "side_topics": ["partial derivatives"],
      "definition": "Apply Newton's second law to a string element and reduce to the wave equation.",
      "topic_query": "wave equation derivation",
      "playlist_query": "waves and oscillations",
      "question_types": ["derive", "solve numerically", "state assumptions"],
      "completed": true
    }
  ]
}`

func TestStripReasoning(t *testing.T) {
	cases := map[string]string{
		"<think>hmm\nlet me see</think>\n{\"a\":1}":          `{"a":1}`,
		"<THINKING>x</THINKING>{}":                          "{}",
		"<reasoning>a</reasoning> {} <think>b</think>":      "{}",
		"  {\"plain\": true}  ":                             `{"plain": true}`,
	}
	for in, want := range cases {
		if got := StripReasoning(in); got != want {
			t.Errorf("StripReasoning(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParse_Valid(t *testing.T) {
	out, err := Parse("<think>planning the topics</think>\n" + validAnswer)
	if err != nil {
		t.Fatal(err)
	}
	if out.Subject != "Engineering Physics" || len(out.Topics) != 1 {
		t.Fatalf("got %+v", out)
	}
	tp := out.Topics[0]
	if tp.Priority != PriorityHigh || tp.Difficulty != DifficultyModerate || len(tp.QuestionTypes) != 3 {
		t.Fatalf("topic: %+v", tp)
	}
	if tp.Completed {
		t.Fatal("parsed topics must start not completed")
	}
}

func TestParse_SchemaRejection(t *testing.T) {
	// WHAT: Schema violations are ModelOutputInvalid, never repaired.
	// WHY: A half-valid extraction would mislead the study plan.
	cases := map[string]string{
		"empty subject and topics": `{"subject": "", "topics": []}`,
		"blank subject":            `{"subject": "  ", "topics": [{"main_topic": "x", "priority": "low", "difficulty": "easy"}]}`,
		"no topics":                `{"subject": "Maths"}`,
		"empty main topic":         `{"subject": "Maths", "topics": [{"main_topic": "", "priority": "low", "difficulty": "easy"}]}`,
		"bad priority":             `{"subject": "Maths", "topics": [{"main_topic": "x", "priority": "urgent", "difficulty": "easy"}]}`,
		"bad difficulty":           `{"subject": "Maths", "topics": [{"main_topic": "x", "priority": "low", "difficulty": "brutal"}]}`,
		"not json":                 "Here are your topics: ...",
		"markdown fenced":          "```json\n" + validAnswer + "\n```",
		"trailing text":            validAnswer + " hope this helps",
		"only reasoning":           "<think>I could not decide</think>",
		"empty":                    "",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(raw); !errors.Is(err, ErrModelOutputInvalid) {
				t.Fatalf("got %v", err)
			}
		})
	}
}
