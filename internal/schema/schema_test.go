package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/payload"
)

const (
	sessionID = "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
	agentID   = "6c784b845a9d85f5fe5fd29e2636e8453c9683c7ca8f8d0dbecdfa46f23a4103"
	targetID  = "abcdef0123456789"
)

func mustPayload(t *testing.T, v any) payload.Value {
	t.Helper()
	p, err := payload.FromAny(v)
	require.NoError(t, err)
	return p
}

func argument(overrides map[string]any) map[string]any {
	base := map[string]any{
		"session_id": sessionID,
		"agent_id":   agentID,
		"kind":       "claim",
		"structure":  "deductive",
		"content":    "All debates end.",
	}
	for k, v := range overrides {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return base
}

func TestNew(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{"agents", "arguments", "simulations"}, v.Buckets())
}

func TestValidate_Accepts(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name   string
		bucket string
		value  any
	}{
		{"agent", objects.BucketAgents, map[string]any{"name": "Socrates"}},
		{"agent with position", objects.BucketAgents, map[string]any{"name": "Socrates", "position": "for"}},
		{"bare simulation", objects.BucketSimulations, map[string]any{"topic": "X"}},
		{"full simulation", objects.BucketSimulations, map[string]any{
			"topic":        "Is virtue teachable?",
			"participants": []any{agentID, "0a1b"},
			"token":        sessionID,
		}},
		{"claim", objects.BucketArguments, argument(nil)},
		{"logical rebuttal", objects.BucketArguments, argument(map[string]any{
			"kind": "rebuttal", "target_id": targetID, "subtype": "logical",
		})},
		{"partial concession", objects.BucketArguments, argument(map[string]any{
			"kind": "concession", "target_id": targetID, "subtype": "partial", "structure": "empirical",
		})},
		{"support without subtype", objects.BucketArguments, argument(map[string]any{
			"kind": "support", "target_id": targetID,
		})},
		{"support with evidence", objects.BucketArguments, argument(map[string]any{
			"kind": "support", "target_id": targetID, "subtype": "evidence",
		})},
		{"unschematized bucket", "notes", []any{int64(1), "anything", nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, v.Validate(tt.bucket, mustPayload(t, tt.value)))
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name   string
		bucket string
		value  any
	}{
		{"agent without name", objects.BucketAgents, map[string]any{"position": "for"}},
		{"agent with blank name", objects.BucketAgents, map[string]any{"name": "   "}},
		{"agent with unknown field", objects.BucketAgents, map[string]any{"name": "A", "role": "judge"}},
		{"agent as string", objects.BucketAgents, "Socrates"},
		{"simulation without topic", objects.BucketSimulations, map[string]any{"participants": []any{}}},
		{"simulation with uppercase participant", objects.BucketSimulations, map[string]any{
			"topic": "X", "participants": []any{"ABC"},
		}},
		{"simulation with malformed token", objects.BucketSimulations, map[string]any{"topic": "X", "token": "nope"}},
		{"argument with unknown kind", objects.BucketArguments, argument(map[string]any{"kind": "insult"})},
		{"argument with unknown structure", objects.BucketArguments, argument(map[string]any{"structure": "poetic"})},
		{"argument without content", objects.BucketArguments, argument(map[string]any{"content": nil})},
		{"argument with traversal session", objects.BucketArguments, argument(map[string]any{"session_id": "../x"})},
		{"claim with target", objects.BucketArguments, argument(map[string]any{"target_id": targetID})},
		{"rebuttal without target", objects.BucketArguments, argument(map[string]any{
			"kind": "rebuttal", "subtype": "logical",
		})},
		{"rebuttal without subtype", objects.BucketArguments, argument(map[string]any{
			"kind": "rebuttal", "target_id": targetID,
		})},
		{"concession with rebuttal subtype", objects.BucketArguments, argument(map[string]any{
			"kind": "concession", "target_id": targetID, "subtype": "logical",
		})},
		{"support with unknown subtype", objects.BucketArguments, argument(map[string]any{
			"kind": "support", "target_id": targetID, "subtype": "vibes",
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.bucket, mustPayload(t, tt.value))
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err), "%v", err)

			var e *errs.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, "validate_schema", e.Op)
			assert.Equal(t, tt.bucket, e.Bucket)
			assert.NotEmpty(t, e.Message)
			assert.Error(t, errors.Unwrap(err), "the CUE error stays reachable")
		})
	}
}

func TestValidate_UnknownFieldNamed(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Validate(objects.BucketAgents, mustPayload(t, map[string]any{"name": "A", "role": "judge"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role")
	assert.Contains(t, err.Error(), "field not allowed")
}
