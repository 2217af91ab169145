package debate

import (
	"fmt"
	"slices"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/graph"
	"github.com/roach88/agora/internal/payload"
)

// ArgumentKind is the role an argument plays in a debate.
type ArgumentKind string

const (
	KindClaim      ArgumentKind = "claim"
	KindRebuttal   ArgumentKind = "rebuttal"
	KindConcession ArgumentKind = "concession"
	KindSupport    ArgumentKind = "support"
)

// EdgeKind returns the relationship an argument of this kind forms with its
// target. Claims form none.
func (k ArgumentKind) EdgeKind() (graph.Kind, bool) {
	switch k {
	case KindRebuttal:
		return graph.KindRebuts, true
	case KindConcession:
		return graph.KindConcedesTo, true
	case KindSupport:
		return graph.KindSupports, true
	default:
		return "", false
	}
}

// Agent is a debate participant.
type Agent struct {
	Name     string
	Position string
}

// Payload renders the agent as a stored payload.
func (a Agent) Payload() payload.Value {
	obj := payload.Object{"name": payload.String(a.Name)}
	if a.Position != "" {
		obj["position"] = payload.String(a.Position)
	}
	return obj
}

// AgentFromPayload decodes a stored agent.
func AgentFromPayload(v payload.Value) (Agent, error) {
	obj, err := asObject("decode_agent", v)
	if err != nil {
		return Agent{}, err
	}
	name, ok := obj.GetString("name")
	if !ok {
		return Agent{}, errs.Validation("decode_agent", "name is missing")
	}
	position, _ := obj.GetString("position")
	return Agent{Name: name, Position: position}, nil
}

// Simulation is one debate session.
type Simulation struct {
	Topic        string
	Participants []string

	// Token distinguishes debates on the same topic, which would otherwise
	// share a content id.
	Token string
}

// WithParticipant returns a copy of s listing agentID among its
// participants. Participants stay sorted and unique.
func (s Simulation) WithParticipant(agentID string) Simulation {
	out := s
	out.Participants = slices.Clone(s.Participants)
	if i, found := slices.BinarySearch(out.Participants, agentID); !found {
		out.Participants = slices.Insert(out.Participants, i, agentID)
	}
	return out
}

// HasParticipant reports whether agentID takes part in s. A simulation with
// no listed participants is open to every agent.
func (s Simulation) HasParticipant(agentID string) bool {
	return len(s.Participants) == 0 || slices.Contains(s.Participants, agentID)
}

// Payload renders the simulation as a stored payload.
func (s Simulation) Payload() payload.Value {
	obj := payload.Object{"topic": payload.String(s.Topic)}
	if len(s.Participants) > 0 {
		obj["participants"] = payload.Strings(s.Participants...)
	}
	if s.Token != "" {
		obj["token"] = payload.String(s.Token)
	}
	return obj
}

// SimulationFromPayload decodes a stored simulation.
func SimulationFromPayload(v payload.Value) (Simulation, error) {
	obj, err := asObject("decode_simulation", v)
	if err != nil {
		return Simulation{}, err
	}
	topic, ok := obj.GetString("topic")
	if !ok {
		return Simulation{}, errs.Validation("decode_simulation", "topic is missing")
	}
	sim := Simulation{Topic: topic}
	if _, present := obj["participants"]; present {
		participants, ok := obj.GetStrings("participants")
		if !ok {
			return Simulation{}, errs.Validation("decode_simulation", "participants must be a list of strings")
		}
		for _, p := range participants {
			sim = sim.WithParticipant(p)
		}
	}
	sim.Token, _ = obj.GetString("token")
	return sim, nil
}

// Argument is one contribution to a debate. Every kind but a claim responds
// to TargetID.
type Argument struct {
	SessionID string
	AgentID   string
	Kind      ArgumentKind
	Structure graph.Structure
	Content   string
	TargetID  string
	Subtype   string
}

// Payload renders the argument as a stored payload. Empty optional fields
// are omitted.
func (a Argument) Payload() payload.Value {
	obj := payload.Object{
		"session_id": payload.String(a.SessionID),
		"agent_id":   payload.String(a.AgentID),
		"kind":       payload.String(string(a.Kind)),
		"structure":  payload.String(string(a.Structure)),
		"content":    payload.String(a.Content),
	}
	if a.TargetID != "" {
		obj["target_id"] = payload.String(a.TargetID)
	}
	if a.Subtype != "" {
		obj["subtype"] = payload.String(a.Subtype)
	}
	return obj
}

// Node returns the graph metadata of the argument stored under id.
func (a Argument) Node(id string) graph.Node {
	return graph.Node{ID: id, AgentID: a.AgentID, SessionID: a.SessionID, Structure: a.Structure}
}

// ArgumentFromPayload decodes a stored argument.
func ArgumentFromPayload(v payload.Value) (Argument, error) {
	const op = "decode_argument"

	obj, err := asObject(op, v)
	if err != nil {
		return Argument{}, err
	}

	var a Argument
	required := []struct {
		key string
		dst *string
	}{
		{"session_id", &a.SessionID},
		{"agent_id", &a.AgentID},
		{"content", &a.Content},
	}
	for _, f := range required {
		s, ok := obj.GetString(f.key)
		if !ok {
			return Argument{}, errs.Validation(op, fmt.Sprintf("%s is missing", f.key))
		}
		*f.dst = s
	}

	kind, ok := obj.GetString("kind")
	if !ok {
		return Argument{}, errs.Validation(op, "kind is missing")
	}
	a.Kind = ArgumentKind(kind)

	structure, ok := obj.GetString("structure")
	if !ok {
		return Argument{}, errs.Validation(op, "structure is missing")
	}
	a.Structure = graph.Structure(structure)

	a.TargetID, _ = obj.GetString("target_id")
	a.Subtype, _ = obj.GetString("subtype")
	return a, nil
}

func asObject(op string, v payload.Value) (payload.Object, error) {
	obj, ok := v.(payload.Object)
	if !ok {
		return nil, errs.Validation(op, "payload is not an object")
	}
	return obj, nil
}
