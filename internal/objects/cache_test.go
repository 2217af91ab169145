package objects

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/payload"
)

// fakeSource serves a listing and objects from memory and counts retrievals.
type fakeSource struct {
	mu        sync.Mutex
	listing   map[string]int64
	objects   map[string]StoredObject
	retrieved int
}

func newFakeSource() *fakeSource {
	return &fakeSource{listing: map[string]int64{}, objects: map[string]StoredObject{}}
}

func (f *fakeSource) put(id string, version int64, topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listing[id] = version
	f.objects[id] = StoredObject{ID: id, Bucket: "simulations", Payload: payload.Object{"topic": payload.String(topic)}}
}

func (f *fakeSource) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listing, id)
	delete(f.objects, id)
}

func (f *fakeSource) Versions(_ context.Context, _ string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(f.listing))
	for k, v := range f.listing {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) Retrieve(_ context.Context, bucket, id string) (StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieved++
	obj, ok := f.objects[id]
	if !ok {
		return StoredObject{}, errs.NotFound("retrieve", bucket, id)
	}
	return obj, nil
}

func TestInvalidate(t *testing.T) {
	tests := []struct {
		name    string
		cached  map[string]int64
		listing map[string]int64
		want    []string
	}{
		{"empty", nil, nil, []string{}},
		{"all fresh", map[string]int64{"a": 1, "b": 2}, map[string]int64{"a": 1, "b": 2, "c": 3}, []string{}},
		{"changed version", map[string]int64{"a": 1, "b": 2}, map[string]int64{"a": 1, "b": 5}, []string{"b"}},
		{"vanished", map[string]int64{"a": 1, "b": 2}, map[string]int64{"a": 1}, []string{"b"}},
		{"sorted output", map[string]int64{"c": 1, "a": 1, "b": 1}, map[string]int64{}, []string{"a", "b", "c"}},
		{"unknown version", map[string]int64{"a": unknownVersion}, map[string]int64{"a": 7}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Invalidate(tt.cached, tt.listing))
		})
	}
}

func TestCache_GetCachesAfterRefresh(t *testing.T) {
	src := newFakeSource()
	src.put("aa", 1, "X")
	c := NewCache(src)
	ctx := t.Context()

	_, err := c.Refresh(ctx, "simulations")
	require.NoError(t, err)

	obj, err := c.Get(ctx, "simulations", "aa")
	require.NoError(t, err)
	assert.Equal(t, "aa", obj.ID)

	_, err = c.Get(ctx, "simulations", "aa")
	require.NoError(t, err)
	assert.Equal(t, 1, src.retrieved, "second Get is served from cache")
	assert.Equal(t, 1, c.Len("simulations"))

	stale, err := c.Refresh(ctx, "simulations")
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestCache_RefreshDropsChangedAndVanished(t *testing.T) {
	src := newFakeSource()
	src.put("aa", 1, "X")
	src.put("bb", 1, "Y")
	src.put("cc", 1, "Z")
	c := NewCache(src)
	ctx := t.Context()

	_, err := c.Refresh(ctx, "simulations")
	require.NoError(t, err)
	for _, id := range []string{"aa", "bb", "cc"} {
		_, err := c.Get(ctx, "simulations", id)
		require.NoError(t, err)
	}

	src.put("bb", 2, "Y2")
	src.remove("cc")

	stale, err := c.Refresh(ctx, "simulations")
	require.NoError(t, err)
	assert.Equal(t, []string{"bb", "cc"}, stale)
	assert.Equal(t, 1, c.Len("simulations"))

	obj, err := c.Get(ctx, "simulations", "bb")
	require.NoError(t, err)
	assert.Equal(t, payload.Object{"topic": payload.String("Y2")}, obj.Payload)

	_, err = c.Get(ctx, "simulations", "cc")
	assert.True(t, errs.IsNotFound(err))
}

func TestCache_EntryWithoutListingIsStaleOnRefresh(t *testing.T) {
	src := newFakeSource()
	src.put("aa", 1, "X")
	c := NewCache(src)
	ctx := t.Context()

	_, err := c.Get(ctx, "simulations", "aa")
	require.NoError(t, err)

	stale, err := c.Refresh(ctx, "simulations")
	require.NoError(t, err)
	assert.Equal(t, []string{"aa"}, stale)
}

func TestCache_WithStore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	id, err := s.Store(ctx, "simulations", payload.Object{"topic": payload.String("X")})
	require.NoError(t, err)

	c := NewCache(s)
	_, err = c.Refresh(ctx, "simulations")
	require.NoError(t, err)

	obj, err := c.Get(ctx, "simulations", id)
	require.NoError(t, err)
	assert.Equal(t, payload.Object{"topic": payload.String("X")}, obj.Payload)

	require.NoError(t, s.Delete(ctx, "simulations", id))
	stale, err := c.Refresh(ctx, "simulations")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, stale)
}
