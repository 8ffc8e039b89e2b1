// Package idgen generates identifiers for runs, rasterized documents and
// requests. Generators are plain functions so components take one at
// construction and tests can inject a deterministic sequence.
package idgen

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns time-sortable RFC 9562 v7 UUID strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Compact returns v7 UUIDs without hyphens. Used where the ID ends up in a
// URL path segment (rasterizer public IDs).
func Compact() Generator {
	return func() string {
		return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
	}
}

// Prefixed prepends prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns the given IDs in order, then "<last>-<n>" once exhausted.
func Sequence(ids ...string) Generator {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		defer func() { i++ }()
		if i < len(ids) {
			return ids[i]
		}
		last := "id"
		if len(ids) > 0 {
			last = ids[len(ids)-1]
		}
		return fmt.Sprintf("%s-%d", last, i)
	}
}

var (
	// Default is UUIDv7.
	Default Generator = UUIDv7()

	// Run identifies one batch extraction.
	Run = Prefixed("run_", UUIDv7())

	// Document identifies a resource uploaded to a rasterizer.
	Document = Prefixed("doc_", Compact())

	// Request identifies one inbound HTTP or MCP request.
	Request = Prefixed("req_", UUIDv7())
)

// New produces an ID using Default.
func New() string {
	return Default()
}
