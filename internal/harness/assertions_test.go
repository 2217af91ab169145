package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace(ActionStart, map[string]any{"topic": "X"}, 1)
	r.AddCompletionTrace(CaseOK, map[string]any{"id": "$session"}, 2)
	r.AddInvocationTrace(ActionArgue, map[string]any{"agent": "a1", "kind": "claim"}, 3)
	r.AddCompletionTrace(CaseOK, map[string]any{"id": "$claim"}, 4)
	r.AddInvocationTrace(ActionArgue, map[string]any{"agent": "b2", "kind": "rebuttal", "target": "$claim"}, 5)
	r.AddCompletionTrace(CaseOK, map[string]any{"id": "$rebuttal", "strength_pct": 70}, 6)
	r.AddInvocationTrace(ActionClose, nil, 7)
	r.AddCompletionTrace(CaseOK, nil, 8)
	return r.Trace
}

func TestTraceAssertions(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "contains with subset args",
			assertion: Assertion{Type: AssertTraceContains, Action: ActionArgue, Args: map[string]any{"target": "$claim"}},
		},
		{
			name:      "contains missing",
			assertion: Assertion{Type: AssertTraceContains, Action: ActionArgue, Args: map[string]any{"agent": "c3"}},
			wantErr:   "not found in trace",
		},
		{
			name:      "contains ignores completions",
			assertion: Assertion{Type: AssertTraceContains, Action: ActionArgue, Args: map[string]any{"id": "$claim"}},
			wantErr:   "not found in trace",
		},
		{
			name:      "order with gaps",
			assertion: Assertion{Type: AssertTraceOrder, Actions: []string{ActionStart, ActionClose}},
		},
		{
			name:      "order reversed",
			assertion: Assertion{Type: AssertTraceOrder, Actions: []string{ActionClose, ActionArgue}},
			wantErr:   "close (pos 7) should be before argue (pos 3)",
		},
		{
			name:      "order missing action",
			assertion: Assertion{Type: AssertTraceOrder, Actions: []string{ActionStart, ActionCheckout}},
			wantErr:   "missing action: checkout",
		},
		{
			name:      "count",
			assertion: Assertion{Type: AssertTraceCount, Action: ActionArgue, Count: 2},
		},
		{
			name:      "count zero",
			assertion: Assertion{Type: AssertTraceCount, Action: ActionReindex},
		},
		{
			name:      "count mismatch",
			assertion: Assertion{Type: AssertTraceCount, Action: ActionArgue, Count: 3},
			wantErr:   "3 occurrences of argue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := EvaluateAssertions(&Result{Trace: trace}, []Assertion{tt.assertion}, nil)
			if tt.wantErr == "" {
				assert.Empty(t, errors)
				return
			}
			require.Len(t, errors, 1)
			assert.Contains(t, errors[0], tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_StoreAssertionsNeedContext(t *testing.T) {
	errors := EvaluateAssertions(&Result{}, []Assertion{
		{Type: AssertRecords, Bucket: "arguments"},
		{Type: "bogus"},
	}, &AssertionContext{})

	require.Len(t, errors, 2)
	assert.Equal(t, "assertion[0]: records requires store context", errors[0])
	assert.Equal(t, `assertion[1]: unknown assertion type "bogus"`, errors[1])
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of argue",
		Actual:   "1 occurrences",
		Trace:    sampleTrace()[:4],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count\n")
	assert.Contains(t, msg, "  Expected: 2 occurrences of argue\n")
	assert.Contains(t, msg, "  Actual: 1 occurrences\n")
	assert.Contains(t, msg, "Full trace:\n")
	assert.Contains(t, msg, "[1] start map[topic:X]")
	assert.Contains(t, msg, "[3] argue map[agent:a1 kind:claim]")
	assert.NotContains(t, msg, "[2]", "completions are left out")
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{
		"id":           "$claim",
		"strength_pct": int64(70),
		"participants": []string{"a1", "b2"},
	}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"strength_pct": 70}))
	assert.True(t, matchArgs(actual, map[string]any{"participants": []any{"a1", "b2"}}))
	assert.False(t, matchArgs(actual, map[string]any{"strength_pct": 60}))
	assert.False(t, matchArgs(actual, map[string]any{"target": "$claim"}))
	assert.False(t, matchArgs(actual, map[string]any{"participants": []any{"b2", "a1"}}))
}

func TestValuesEqual_Fallback(t *testing.T) {
	type opaque struct{ N int }

	assert.True(t, valuesEqual(opaque{1}, opaque{1}))
	assert.False(t, valuesEqual(opaque{1}, opaque{2}))
	assert.False(t, valuesEqual(opaque{1}, 1))
}
