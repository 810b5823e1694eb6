package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of time-sortable RFC 9562 identifiers.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix and an underscore to every id produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	if prefix == "" {
		return gen
	}
	return func() string {
		return prefix + "_" + gen()
	}
}

// Sequence returns a deterministic Generator that replays ids in order and
// falls back to random hex once exhausted. Intended for tests.
func Sequence(ids ...string) Generator {
	next := 0
	return func() string {
		if next < len(ids) {
			id := ids[next]
			next++
			return id
		}
		return NewID("")
	}
}

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
