// Package graph builds and queries the relationship graph between debate
// records.
//
// Edges are directed from a responding record to the record it responds to
// (rebuts, concedes to, or supports). They are derived data: the graph lives
// in memory and is rebuilt from stored records, never persisted itself.
//
// The graph maintains these invariants at all times:
//   - both endpoints of an edge belong to the same session
//   - no edge joins a record to itself or to a record by the same agent
//   - the graph is acyclic
//
// AddEdge checks all of them before inserting, so a rejected edge leaves the
// graph unchanged.
package graph

import (
	"fmt"
	"strings"
)

// Kind is the relationship an edge expresses.
type Kind string

const (
	KindRebuts     Kind = "rebuts"
	KindConcedesTo Kind = "concedes_to"
	KindSupports   Kind = "supports"
)

// Kinds lists every edge kind.
var Kinds = []Kind{KindRebuts, KindConcedesTo, KindSupports}

// Rebuttal subtypes.
const (
	RebuttalLogical   = "logical"
	RebuttalEmpirical = "empirical"
	RebuttalEthical   = "ethical"
)

// Concession subtypes.
const (
	ConcessionFull        = "full"
	ConcessionPartial     = "partial"
	ConcessionConditional = "conditional"
)

// Support subtypes. Support may also carry no subtype.
const (
	SupportEvidence  = "evidence"
	SupportReasoning = "reasoning"
)

// Structure is the reasoning form of a record. It matters only as the
// target of a rebuttal.
type Structure string

const (
	StructureDeductive Structure = "deductive"
	StructureInductive Structure = "inductive"
	StructureEmpirical Structure = "empirical"
	StructureAbductive Structure = "abductive"
)

// Structures lists every reasoning structure.
var Structures = []Structure{StructureDeductive, StructureInductive, StructureEmpirical, StructureAbductive}

// subtypes maps each kind to its accepted subtypes.
var subtypes = map[Kind][]string{
	KindRebuts:     {RebuttalLogical, RebuttalEmpirical, RebuttalEthical},
	KindConcedesTo: {ConcessionFull, ConcessionPartial, ConcessionConditional},
	KindSupports:   {"", SupportEvidence, SupportReasoning},
}

// Subtypes returns the subtypes accepted for kind, or nil for an unknown
// kind.
func Subtypes(kind Kind) []string {
	return append([]string(nil), subtypes[kind]...)
}

// Node is the identity and ownership metadata the graph needs about a record.
type Node struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Structure Structure `json:"structure,omitempty"`
}

// Edge is a directed, session-scoped relationship. Edges are values and are
// never mutated once created.
type Edge struct {
	FromID    string  `json:"from_id"`
	ToID      string  `json:"to_id"`
	Kind      Kind    `json:"kind"`
	Subtype   string  `json:"subtype,omitempty"`
	SessionID string  `json:"session_id"`
	Strength  float64 `json:"strength"`
}

// String renders the edge as "from -kind-> to".
func (e Edge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.FromID, e.Kind, e.ToID)
}

// key identifies an edge for idempotency: one relationship of each kind per
// ordered pair.
type key struct {
	from, to string
	kind     Kind
}

func (e Edge) key() key {
	return key{from: e.FromID, to: e.ToID, kind: e.Kind}
}

// Chain is a read-only view of the records reachable from a root.
type Chain struct {
	Root          string `json:"root"`
	Records       []Node `json:"records"`
	Relationships []Edge `json:"relationships"`
	Depth         int    `json:"depth"`
}

// Cycle is a cycle found by AnalyzeCycles.
type Cycle struct {
	// Path starts and ends at the same record: ["a", "b", "a"].
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

func describeCycle(path []string) string {
	if len(path) == 2 {
		return fmt.Sprintf("record responds to itself: %s", strings.Join(path, " -> "))
	}
	return fmt.Sprintf("response cycle: %s", strings.Join(path, " -> "))
}
