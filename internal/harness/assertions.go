package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/agora/internal/debate"
	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/payload"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == "invocation" {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, event.Action, event.Args)
			}
		}
	}

	return buf.String()
}

// AssertionContext provides the store state assertions query.
type AssertionContext struct {
	Ctx     context.Context
	Service *debate.Service

	// Aliases maps the scenario's aliases to ids.
	Aliases map[string]string
}

// assertTraceContains checks if the trace contains an invocation matching
// the specified action and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == assertion.Action && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Find first position of each expected action
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != "invocation" {
			continue
		}
		for _, expectedAction := range assertion.Actions {
			if event.Action == expectedAction && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertRecords checks the number of records stored in a bucket.
func assertRecords(actx *AssertionContext, assertion Assertion) error {
	ids, err := actx.Service.List(actx.Ctx, assertion.Bucket)
	if err != nil {
		return fmt.Errorf("records: %w", err)
	}
	if len(ids) != assertion.Count {
		return &AssertionError{
			Type:     AssertRecords,
			Expected: fmt.Sprintf("%d record(s) in %s", assertion.Count, assertion.Bucket),
			Actual:   fmt.Sprintf("%d record(s)", len(ids)),
		}
	}
	return nil
}

// assertChain checks the depth and relationship count of a response chain.
func assertChain(actx *AssertionContext, assertion Assertion) error {
	root, err := resolveAlias(actx.Aliases, assertion.Root)
	if err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	chain, err := actx.Service.Chain(actx.Ctx, root)
	if err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	if chain.Depth != assertion.Depth || len(chain.Relationships) != assertion.Count {
		return &AssertionError{
			Type:     AssertChain,
			Expected: fmt.Sprintf("depth %d with %d relationship(s) from %s", assertion.Depth, assertion.Count, assertion.Root),
			Actual:   fmt.Sprintf("depth %d with %d relationship(s)", chain.Depth, len(chain.Relationships)),
		}
	}
	return nil
}

// assertAudit checks the number of cycles in a session.
func assertAudit(actx *AssertionContext, assertion Assertion) error {
	session, err := resolveAlias(actx.Aliases, assertion.Session)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	cycles, err := actx.Service.Audit(actx.Ctx, session)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if len(cycles) != assertion.Count {
		actual := make([]string, len(cycles))
		for i, c := range cycles {
			actual[i] = c.Message
		}
		return &AssertionError{
			Type:     AssertAudit,
			Expected: fmt.Sprintf("%d cycle(s) in %s", assertion.Count, assertion.Session),
			Actual:   fmt.Sprintf("%d cycle(s) %v", len(cycles), actual),
		}
	}
	return nil
}

// assertActive checks the active session; an empty session means none.
func assertActive(actx *AssertionContext, assertion Assertion) error {
	want, err := resolveAlias(actx.Aliases, assertion.Session)
	if err != nil {
		return fmt.Errorf("active: %w", err)
	}
	got, _, err := actx.Service.Active(actx.Ctx)
	if err != nil && !errs.IsNotFound(err) {
		return fmt.Errorf("active: %w", err)
	}
	if got != want {
		return &AssertionError{
			Type:     AssertActive,
			Expected: fmt.Sprintf("active session %q (%s)", want, assertion.Session),
			Actual:   fmt.Sprintf("active session %q", got),
		}
	}
	return nil
}

// matchArgs checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values as payload values, so that YAML's int
// and a result's int64, or []any and []string, compare equal.
func valuesEqual(actual, expected any) bool {
	a, errA := payload.FromAny(actual)
	e, errE := payload.FromAny(expected)
	if errA != nil || errE != nil {
		return reflect.DeepEqual(actual, expected)
	}
	return reflect.DeepEqual(a, e)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for the store assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertRecords, AssertChain, AssertAudit, AssertActive:
			if actx == nil || actx.Service == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertRecords:
				err = assertRecords(actx, assertion)
			case AssertChain:
				err = assertChain(actx, assertion)
			case AssertAudit:
				err = assertAudit(actx, assertion)
			default:
				err = assertActive(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
