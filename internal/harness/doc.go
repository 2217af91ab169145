// Package harness runs debate scenarios against a real store.
//
// A scenario is a YAML file naming the operations to perform, the outcome
// each should have, and assertions over the resulting trace and store. Every
// run uses a fresh store in a temporary directory with a fixed clock and
// sequential simulation tokens, so traces are reproducible and can be
// compared against golden files.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario checks"
//	setup:
//	  - action: register_agent
//	    args: { id: a1, name: Alice }
//	flow:
//	  - invoke: start
//	    args: { topic: X, participants: [a1] }
//	    as: session
//	  - invoke: argue
//	    args: { agent: a1, kind: claim, structure: deductive, content: "..." }
//	    as: claim
//	    expect:
//	      case: OK
//	      result: { id: $claim }
//	assertions:
//	  - type: chain
//	    root: $claim
//	    depth: 0
//	    count: 0
//
// A step's "as" binds the id it returns to an alias. Any string argument of
// the form "$alias" is replaced by the bound id before the step runs, and
// bound ids are written back as "$alias" in the trace, so golden files never
// contain content hashes.
//
// # Actions
//
//   - register_agent: id (optional), name, position
//   - put: bucket, payload, id (optional)
//   - start: topic, participants
//   - checkout: session
//   - close
//   - argue: agent, kind, structure, content, target, subtype, session
//   - remove: bucket, id
//   - reindex
//
// A step's outcome case is "OK" or the error code (VALIDATION, NOT_FOUND,
// CONFLICT, ...). Setup steps must succeed.
//
// # Assertion Types
//
//   - trace_contains: an action was invoked with matching args (subset match)
//   - trace_order: actions were invoked in the given order
//   - trace_count: an action was invoked exactly count times
//   - records: bucket holds exactly count records
//   - chain: the chain from root has the given depth and count relationships
//   - audit: session has exactly count cycles
//   - active: the active session is session ("" for none)
package harness
