package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agora/internal/errs"
)

const session = "5e55"

// node builds a record in the shared test session.
func node(id, agent string, structure Structure) Node {
	return Node{ID: id, AgentID: agent, SessionID: session, Structure: structure}
}

func TestAddEdge_Acyclicity(t *testing.T) {
	g, err := New()
	require.NoError(t, err)

	a := node("aa", "agent-1", StructureDeductive)
	b := node("bb", "agent-2", StructureDeductive)
	c := node("cc", "agent-3", StructureDeductive)

	_, err = g.AddEdge(a, b, KindRebuts, RebuttalLogical)
	require.NoError(t, err)
	_, err = g.AddEdge(b, c, KindRebuts, RebuttalLogical)
	require.NoError(t, err)

	_, err = g.AddEdge(c, a, KindRebuts, RebuttalLogical)
	require.Error(t, err)
	assert.True(t, errs.IsCircular(err))
	assert.Contains(t, err.Error(), "cc -> aa -> bb -> cc")

	edges := g.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "aa", edges[0].FromID)
	assert.Equal(t, "bb", edges[1].FromID)
}

func TestAddEdge_ConcreteLogicalRebuttalStrength(t *testing.T) {
	g, err := New()
	require.NoError(t, err)

	target := node("6c784b845a9d85f5fe5fd29e2636e8453c9683c7ca8f8d0dbecdfa46f23a4103", "agent-1", StructureDeductive)
	rebuttal := node("0123abcd", "agent-2", StructureInductive)

	e, err := g.AddEdge(rebuttal, target, KindRebuts, RebuttalLogical)
	require.NoError(t, err)
	assert.Equal(t, 0.7, e.Strength)
	assert.Equal(t, session, e.SessionID)
	assert.Equal(t, KindRebuts, e.Kind)
}

func TestAddEdge_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		from    Node
		to      Node
		kind    Kind
		subtype string
		want    string
	}{
		{
			name: "invalid from id",
			from: node("../x", "agent-1", ""), to: node("bb", "agent-2", ""),
			kind: KindRebuts, subtype: RebuttalLogical, want: "id must match",
		},
		{
			name: "invalid to id",
			from: node("aa", "agent-1", ""), to: node("BB", "agent-2", ""),
			kind: KindRebuts, subtype: RebuttalLogical, want: "id must match",
		},
		{
			name: "missing session",
			from: Node{ID: "aa", AgentID: "agent-1"}, to: node("bb", "agent-2", ""),
			kind: KindRebuts, subtype: RebuttalLogical, want: "id is empty",
		},
		{
			name: "missing agent",
			from: Node{ID: "aa", SessionID: session}, to: node("bb", "agent-2", ""),
			kind: KindRebuts, subtype: RebuttalLogical, want: "agent id is empty",
		},
		{
			name: "cross session",
			from: node("aa", "agent-1", ""), to: Node{ID: "bb", AgentID: "agent-2", SessionID: "abcd"},
			kind: KindRebuts, subtype: RebuttalLogical, want: "different sessions",
		},
		{
			name: "self reference",
			from: node("aa", "agent-1", ""), to: node("aa", "agent-2", ""),
			kind: KindRebuts, subtype: RebuttalLogical, want: "itself",
		},
		{
			name: "same agent",
			from: node("aa", "agent-1", ""), to: node("bb", "agent-1", ""),
			kind: KindConcedesTo, subtype: ConcessionFull, want: "its own record",
		},
		{
			name: "unknown kind",
			from: node("aa", "agent-1", ""), to: node("bb", "agent-2", ""),
			kind: "endorses", subtype: "", want: "unknown relationship kind",
		},
		{
			name: "subtype of another kind",
			from: node("aa", "agent-1", ""), to: node("bb", "agent-2", ""),
			kind: KindRebuts, subtype: ConcessionFull, want: "not valid for rebuts",
		},
		{
			name: "missing concession subtype",
			from: node("aa", "agent-1", ""), to: node("bb", "agent-2", ""),
			kind: KindConcedesTo, subtype: "", want: "not valid for concedes_to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New()
			require.NoError(t, err)

			_, err = g.AddEdge(tt.from, tt.to, tt.kind, tt.subtype)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err), "%v", err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 0, g.Len(), "rejected edges leave the graph unchanged")
		})
	}
}

func TestAddEdge_IdenticalEdgeIsIdempotent(t *testing.T) {
	g, err := New()
	require.NoError(t, err)
	a := node("aa", "agent-1", "")
	b := node("bb", "agent-2", StructureEmpirical)

	first, err := g.AddEdge(a, b, KindRebuts, RebuttalEmpirical)
	require.NoError(t, err)
	second, err := g.AddEdge(a, b, KindRebuts, RebuttalEmpirical)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, g.Len())
}

func TestAddEdge_SamePairDifferentSubtypeConflicts(t *testing.T) {
	g, err := New()
	require.NoError(t, err)
	a := node("aa", "agent-1", "")
	b := node("bb", "agent-2", "")

	_, err = g.AddEdge(a, b, KindConcedesTo, ConcessionFull)
	require.NoError(t, err)

	_, err = g.AddEdge(a, b, KindConcedesTo, ConcessionPartial)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	assert.Equal(t, 1, g.Len())

	// A different kind between the same pair is a separate relationship.
	_, err = g.AddEdge(a, b, KindSupports, "")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
}

func TestAddEdge_CyclesAreSessionScoped(t *testing.T) {
	g, err := New()
	require.NoError(t, err)

	inS1 := func(id, agent string) Node { return Node{ID: id, AgentID: agent, SessionID: "aaaa"} }
	inS2 := func(id, agent string) Node { return Node{ID: id, AgentID: agent, SessionID: "bbbb"} }

	_, err = g.AddEdge(inS1("01", "x"), inS1("02", "y"), KindSupports, "")
	require.NoError(t, err)
	_, err = g.AddEdge(inS2("02", "y"), inS2("01", "x"), KindSupports, "")
	require.NoError(t, err, "the reverse pair in another session closes no cycle")

	assert.Len(t, g.SessionEdges("aaaa"), 1)
	assert.Len(t, g.SessionEdges("bbbb"), 1)
	assert.Empty(t, g.SessionEdges("cccc"))
}

func TestNew_SeedsAndRejectsCycles(t *testing.T) {
	seed := []Edge{
		{FromID: "aa", ToID: "bb", Kind: KindRebuts, SessionID: session, Strength: 0.5},
		{FromID: "aa", ToID: "bb", Kind: KindRebuts, SessionID: session, Strength: 0.5},
		{FromID: "bb", ToID: "cc", Kind: KindRebuts, SessionID: session, Strength: 0.5},
	}
	g, err := New(seed...)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	_, err = New(append(seed, Edge{FromID: "cc", ToID: "aa", Kind: KindRebuts, SessionID: session})...)
	require.Error(t, err)
	assert.True(t, errs.IsCircular(err))
}

func TestAddEdge_ConcurrentInsertsStayAcyclic(t *testing.T) {
	g, err := New()
	require.NoError(t, err)

	// Every pair is attempted in both directions; exactly one of each pair
	// can win.
	ids := []string{"01", "02", "03", "04", "05", "06"}
	var wg sync.WaitGroup
	for i, from := range ids {
		for j, to := range ids {
			if i == j {
				continue
			}
			wg.Add(1)
			go func(from, to string) {
				defer wg.Done()
				_, _ = g.AddEdge(node(from, "agent-"+from, ""), node(to, "agent-"+to, ""), KindSupports, "")
			}(from, to)
		}
	}
	wg.Wait()

	assert.NoError(t, DetectCircularReferences(g.Edges()))
	assert.Empty(t, AnalyzeCycles(g.Edges()))
	assert.Equal(t, len(ids)*(len(ids)-1)/2, g.Len())
}
