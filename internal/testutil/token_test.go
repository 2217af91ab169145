package testutil

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedTokenGenerator_ReturnsSameToken(t *testing.T) {
	gen := NewFixedTokenGenerator("0190c5a2-7b3e-7d41-9a55-2c1f0b6a9e10")

	assert.Equal(t, "0190c5a2-7b3e-7d41-9a55-2c1f0b6a9e10", gen.Generate())
	assert.Equal(t, "0190c5a2-7b3e-7d41-9a55-2c1f0b6a9e10", gen.Generate())
}

func TestFixedTokenGenerator_EmptyTokenDefault(t *testing.T) {
	gen := NewFixedTokenGenerator("")
	assert.Equal(t, "00000000-0000-7000-8000-000000000000", gen.Generate())
}

func TestSequenceTokenGenerator(t *testing.T) {
	gen := NewSequenceTokenGenerator()

	assert.Equal(t, "00000000-0000-7000-8000-000000000001", gen.Generate())
	assert.Equal(t, "00000000-0000-7000-8000-000000000002", gen.Generate())

	idShape := regexp.MustCompile(`^[a-f0-9-]+$`)
	for i := 0; i < 20; i++ {
		assert.Regexp(t, idShape, gen.Generate())
	}
}
