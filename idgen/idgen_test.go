package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7(t *testing.T) {
	id := UUIDv7()()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatal(err)
	}
	if u.Version() != 7 {
		t.Fatalf("version: %d", u.Version())
	}
}

func TestCompact(t *testing.T) {
	id := Compact()()
	if strings.Contains(id, "-") || len(id) != 32 {
		t.Fatalf("got %q", id)
	}
}

func TestPrefixedSingletons(t *testing.T) {
	for prefix, gen := range map[string]Generator{"run_": Run, "doc_": Document, "req_": Request} {
		if id := gen(); !strings.HasPrefix(id, prefix) {
			t.Fatalf("%q lacks prefix %q", id, prefix)
		}
	}
}

func TestUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate %s", id)
		}
		seen[id] = true
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("a", "b")
	got := []string{gen(), gen(), gen()}
	want := []string{"a", "b", "b-2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
