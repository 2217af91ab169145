package debate

import (
	"context"
	"fmt"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/graph"
	"github.com/roach88/agora/internal/index"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/payload"
)

// Submit stores an argument and registers its relationship to its target.
//
// An empty SessionID defaults to the active session. The agent must be
// registered and, when the session lists participants, one of them. A
// response is validated against the session graph before anything is
// written, so an argument that would break a graph invariant is never
// stored. Re-submitting an identical argument returns the same id and edge.
//
// The returned edge is nil for a claim.
func (s *Service) Submit(ctx context.Context, a Argument) (string, *graph.Edge, error) {
	const op = "submit"

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.SessionID == "" {
		active, err := s.refs.GetActive(ctx)
		if err != nil {
			return "", nil, err
		}
		a.SessionID = active
	}

	sim, err := s.simulation(ctx, a.SessionID)
	if err != nil {
		return "", nil, err
	}
	if err := s.requireAgent(ctx, op, a.AgentID); err != nil {
		return "", nil, err
	}
	if !sim.HasParticipant(a.AgentID) {
		return "", nil, errs.Validation(op, fmt.Sprintf("agent %s is not a participant of session %s", a.AgentID, a.SessionID))
	}

	p := a.Payload()
	if err := s.schema.Validate(objects.BucketArguments, p); err != nil {
		return "", nil, err
	}
	id, err := payload.ContentID(p)
	if err != nil {
		return "", nil, errs.Validation(op, err.Error())
	}

	var edge *graph.Edge
	if kind, responds := a.Kind.EdgeKind(); responds {
		target, err := s.argument(ctx, a.TargetID)
		if err != nil {
			return "", nil, err
		}
		g, _, err := s.sessionGraph(ctx, a.SessionID)
		if err != nil {
			return "", nil, err
		}
		e, err := g.AddEdge(a.Node(id), target.Node(a.TargetID), kind, a.Subtype)
		if err != nil {
			return "", nil, err
		}
		edge = &e
	}

	stored, err := s.objects.Store(ctx, objects.BucketArguments, p)
	if err != nil {
		return "", nil, err
	}
	if err := s.catalog(ctx, op, objects.BucketArguments, stored); err != nil {
		return "", nil, err
	}

	attrs := []any{"id", stored, "session_id", a.SessionID, "kind", a.Kind}
	if edge != nil {
		attrs = append(attrs, "target_id", edge.ToID, "strength", edge.Strength)
	}
	s.logger.Info("argument submitted", attrs...)
	return stored, edge, nil
}

// Chain returns the responses to rootID within its session, or with
// graph.WithDirection(graph.Targets) the records rootID responds to.
func (s *Service) Chain(ctx context.Context, rootID string, opts ...graph.ChainOption) (graph.Chain, error) {
	root, err := s.argument(ctx, rootID)
	if err != nil {
		return graph.Chain{}, err
	}
	g, nodes, err := s.sessionGraph(ctx, root.SessionID)
	if err != nil {
		return graph.Chain{}, err
	}
	return graph.BuildChain(rootID, nodes, g.Edges(), opts...), nil
}

// Audit reports every cycle among the catalogued relationships of a session
// (the active one when sessionID is empty).
//
// Edges are taken from the catalog as recorded, without the checks AddEdge
// applies, so records written by other tools or edited by hand are audited
// too.
func (s *Service) Audit(ctx context.Context, sessionID string) ([]graph.Cycle, error) {
	if sessionID == "" {
		active, err := s.refs.GetActive(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = active
	}

	entries, err := s.index.RecordsBySession(ctx, sessionID)
	if err != nil {
		return nil, catalogError("audit", err)
	}

	edges := []graph.Edge{}
	for _, e := range entries {
		kind, responds := ArgumentKind(e.Kind).EdgeKind()
		if e.Bucket != objects.BucketArguments || !responds || e.TargetID == "" {
			continue
		}
		edges = append(edges, graph.Edge{
			FromID:    e.ID,
			ToID:      e.TargetID,
			Kind:      kind,
			Subtype:   e.Subtype,
			SessionID: e.SessionID,
		})
	}

	cycles := graph.AnalyzeCycles(edges)
	if len(cycles) > 0 {
		s.logger.Warn("cycles found", "session_id", sessionID, "count", len(cycles))
	}
	return cycles, nil
}

// argument retrieves and decodes a stored argument.
func (s *Service) argument(ctx context.Context, id string) (Argument, error) {
	obj, err := s.cache.Get(ctx, objects.BucketArguments, id)
	if err != nil {
		return Argument{}, err
	}
	a, err := ArgumentFromPayload(obj.Payload)
	if err != nil {
		return Argument{}, corrupt(err, obj)
	}
	return a, nil
}

// sessionGraph rebuilds the relationship graph of a session from the
// catalog, replaying responses in the order they were stored.
//
// A catalogued response whose target is not catalogued, or that the graph
// rejects, is skipped with a warning: the catalog may lag or hold records
// from other tools, and neither should block new arguments.
func (s *Service) sessionGraph(ctx context.Context, sessionID string) (*graph.Graph, []graph.Node, error) {
	entries, err := s.index.RecordsBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, catalogError("session_graph", err)
	}

	nodes := make([]graph.Node, 0, len(entries))
	byID := make(map[string]graph.Node, len(entries))
	for _, e := range entries {
		if e.Bucket != objects.BucketArguments {
			continue
		}
		n := nodeOf(e)
		nodes = append(nodes, n)
		byID[n.ID] = n
	}

	g, err := graph.New()
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		kind, responds := ArgumentKind(e.Kind).EdgeKind()
		if e.Bucket != objects.BucketArguments || !responds {
			continue
		}
		target, ok := byID[e.TargetID]
		if !ok {
			s.logger.Warn("response target not catalogued", "id", e.ID, "target_id", e.TargetID)
			continue
		}
		if _, err := g.AddEdge(byID[e.ID], target, kind, e.Subtype); err != nil {
			s.logger.Warn("catalogued response rejected", "id", e.ID, "error", err)
		}
	}
	return g, nodes, nil
}

func nodeOf(e index.Entry) graph.Node {
	return graph.Node{
		ID:        e.ID,
		AgentID:   e.AgentID,
		SessionID: e.SessionID,
		Structure: graph.Structure(e.Structure),
	}
}
