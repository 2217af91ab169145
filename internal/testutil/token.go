package testutil

import (
	"fmt"
	"sync"
)

// FixedTokenGenerator returns the same token every time.
//
// With a fixed token, starting a simulation on the same topic twice yields
// the same content id, which is what idempotency tests want.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a generator that always returns token.
// If token is empty, Generate() returns "00000000-0000-7000-8000-000000000000".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "00000000-0000-7000-8000-000000000000"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}

// SequenceTokenGenerator returns UUID-shaped tokens with an increasing
// counter in the last group: ...-000000000001, ...-000000000002 and so on.
// The tokens pass id validation.
type SequenceTokenGenerator struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceTokenGenerator creates a generator whose first token ends in 1.
func NewSequenceTokenGenerator() *SequenceTokenGenerator {
	return &SequenceTokenGenerator{}
}

// Generate returns the next token.
func (g *SequenceTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-7000-8000-%012x", g.seq)
}
