package debate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/agora/internal/graph"
	"github.com/roach88/agora/internal/index"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/refs"
	"github.com/roach88/agora/internal/schema"
	"github.com/roach88/agora/internal/testutil"
)

// fixture is a service over a fresh store with a deterministic clock and,
// unless opts replace them, sequential simulation tokens.
type fixture struct {
	svc   *Service
	root  string
	store *objects.Store
	index *index.Index
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "store")
	clock := testutil.NewClock(testutil.Epoch, time.Second)

	store, err := objects.Open(root, objects.WithClock(clock.Now))
	require.NoError(t, err)
	head, err := refs.New(root, store)
	require.NoError(t, err)
	validator, err := schema.New()
	require.NoError(t, err)
	catalog, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	opts = append([]Option{WithTokenGenerator(testutil.NewSequenceTokenGenerator())}, opts...)
	svc := New(store, head, catalog, validator, opts...)
	require.NoError(t, svc.Initialize(t.Context()))
	return &fixture{svc: svc, root: root, store: store, index: catalog}
}

// debate registers two agents and starts a simulation between them.
func (f *fixture) debate(t *testing.T) (session, alice, bob string) {
	t.Helper()
	ctx := t.Context()

	alice, err := f.svc.RegisterAgent(ctx, Agent{Name: "Alice", Position: "for"})
	require.NoError(t, err)
	bob, err = f.svc.RegisterAgent(ctx, Agent{Name: "Bob", Position: "against"})
	require.NoError(t, err)

	session, err = f.svc.StartSimulation(ctx, "Is virtue teachable?", []string{alice, bob})
	require.NoError(t, err)
	return session, alice, bob
}

func (f *fixture) submit(t *testing.T, a Argument) (string, *graph.Edge) {
	t.Helper()
	id, edge, err := f.svc.Submit(t.Context(), a)
	require.NoError(t, err)
	return id, edge
}

func claim(agent, content string) Argument {
	return Argument{AgentID: agent, Kind: KindClaim, Structure: graph.StructureDeductive, Content: content}
}

func response(agent string, kind ArgumentKind, subtype, target, content string) Argument {
	return Argument{
		AgentID:   agent,
		Kind:      kind,
		Structure: graph.StructureInductive,
		Content:   content,
		TargetID:  target,
		Subtype:   subtype,
	}
}
