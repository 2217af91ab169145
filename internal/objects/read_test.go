package objects

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/payload"
)

func TestRetrieve_NotFound(t *testing.T) {
	s, root := newTestStore(t)

	_, err := s.Retrieve(t.Context(), "arguments", "abc")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "NOT_FOUND: retrieve arguments/abc: not found", err.Error())
	assert.NotContains(t, err.Error(), root)
}

func TestRetrieve_Corruption(t *testing.T) {
	const id = "abc"
	valid := func(body string) string {
		return `{"bucket":"arguments","id":"abc","payload":` + body + `,"stored_at":"2025-01-01T00:00:00Z"}`
	}

	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "not json"},
		{"truncated", `{"bucket":"arguments"`},
		{"trailing data", valid(`{}`) + `{}`},
		{"not an object", `[1,2,3]`},
		{"missing stored_at", `{"bucket":"arguments","id":"abc","payload":{}}`},
		{"extra key", `{"bucket":"arguments","extra":1,"id":"abc","payload":{},"stored_at":"2025-01-01T00:00:00Z"}`},
		{"bad timestamp", `{"bucket":"arguments","id":"abc","payload":{},"stored_at":"yesterday"}`},
		{"id mismatch", `{"bucket":"arguments","id":"def","payload":{},"stored_at":"2025-01-01T00:00:00Z"}`},
		{"bucket mismatch", `{"bucket":"agents","id":"abc","payload":{},"stored_at":"2025-01-01T00:00:00Z"}`},
		{"float", valid(`{"score":0.5}`)},
		{"reserved key", valid(`{"a":{"__proto__":{}}}`)},
		{"duplicate payload", `{"bucket":"arguments","id":"abc","payload":{},"payload":{"a":1},"stored_at":"2025-01-01T00:00:00Z"}`},
		{"duplicate id", `{"bucket":"arguments","id":"def","id":"abc","payload":{},"stored_at":"2025-01-01T00:00:00Z"}`},
		{"duplicate payload key", valid(`{"topic":"X","topic":"Y"}`)},
		{"decomposed text", valid(`{"name":"e\u0301"}`)},
		{"too deep", valid(strings.Repeat(`{"n":`, 40) + `1` + strings.Repeat(`}`, 40))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, root := newTestStore(t)
			path := filepath.Join(root, "objects", "arguments", id+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := s.Retrieve(t.Context(), "arguments", id)
			require.Error(t, err)
			assert.True(t, errs.IsCorruption(err), "%v", err)
			assert.NotContains(t, err.Error(), root)
		})
	}
}

func TestRetrieve_RejectsOversizedFileBeforeReading(t *testing.T) {
	s, root := newTestStore(t, WithMaxBytes(64))

	path := filepath.Join(root, "objects", "arguments", "abc.json")
	huge := `{"bucket":"arguments","id":"abc","payload":"` + strings.Repeat("x", 64+envelopeOverhead) + `","stored_at":"2025-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(huge), 0o600))

	_, err := s.Retrieve(t.Context(), "arguments", "abc")
	require.Error(t, err)
	assert.True(t, errs.IsCorruption(err))
	assert.Contains(t, err.Error(), "size bound")
}

func TestRetrieve_RejectsNonRegularFile(t *testing.T) {
	s, root := newTestStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "objects", "arguments", "abc.json"), 0o700))

	_, err := s.Retrieve(t.Context(), "arguments", "abc")
	assert.True(t, errs.IsCorruption(err))
}

func TestExists(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	ok, err := s.Exists(ctx, "simulations", topicXID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Store(ctx, "simulations", payload.Object{"topic": payload.String("X")})
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "simulations", topicXID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "unknown-bucket", topicXID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList_SortedAndFiltered(t *testing.T) {
	s, root := newTestStore(t)
	ctx := t.Context()

	var ids []string
	for _, topic := range []string{"c", "a", "b"} {
		id, err := s.Store(ctx, "simulations", payload.Object{"topic": payload.String(topic)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	dir := filepath.Join(root, "objects", "simulations")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ABC.json"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dead.json"), 0o700))

	got, err := s.List(ctx, "simulations")
	require.NoError(t, err)

	want := append([]string(nil), ids...)
	assert.ElementsMatch(t, want, got)
	assert.IsNonDecreasing(t, got)
}

func TestList_EmptyAndMissingBuckets(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.List(t.Context(), "arguments")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)

	got, err = s.List(t.Context(), "never-created")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestVersions(t *testing.T) {
	s, root := newTestStore(t)
	ctx := t.Context()

	id, err := s.Store(ctx, "simulations", payload.Object{"topic": payload.String("X")})
	require.NoError(t, err)

	versions, err := s.Versions(ctx, "simulations")
	require.NoError(t, err)
	require.Contains(t, versions, id)

	info, err := os.Stat(filepath.Join(root, "objects", "simulations", id+".json"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().UnixNano(), versions[id])

	empty, err := s.Versions(ctx, "never-created")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
