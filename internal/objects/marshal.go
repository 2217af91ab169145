package objects

import (
	"fmt"
	"time"

	"github.com/roach88/agora/internal/payload"
)

// Envelope keys. Canonical order is alphabetical, so this is also the
// on-disk order.
const (
	keyBucket   = "bucket"
	keyID       = "id"
	keyPayload  = "payload"
	keyStoredAt = "stored_at"
)

// marshalEnvelope serializes a StoredObject to canonical JSON.
// stored_at is RFC 3339 with nanoseconds in UTC.
func marshalEnvelope(obj StoredObject) ([]byte, error) {
	env := payload.Object{
		keyBucket:   payload.String(obj.Bucket),
		keyID:       payload.String(obj.ID),
		keyPayload:  obj.Payload,
		keyStoredAt: payload.String(obj.StoredAt.UTC().Format(time.RFC3339Nano)),
	}
	data, err := payload.MarshalCanonical(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// unmarshalEnvelope parses an envelope. maxDepth bounds the payload; the
// envelope itself adds one level. It checks shape only: the caller verifies
// the bucket/id match and the payload's structural safety.
func unmarshalEnvelope(data []byte, maxDepth int) (StoredObject, error) {
	v, err := payload.Parse(data, maxDepth+1)
	if err != nil {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	env, ok := v.(payload.Object)
	if !ok {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: not an object")
	}
	if len(env) != 4 {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: expected 4 keys, got %d", len(env))
	}

	bucket, ok := env.GetString(keyBucket)
	if !ok {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: missing %s", keyBucket)
	}
	id, ok := env.GetString(keyID)
	if !ok {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: missing %s", keyID)
	}
	body, ok := env[keyPayload]
	if !ok {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: missing %s", keyPayload)
	}
	ts, ok := env.GetString(keyStoredAt)
	if !ok {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: missing %s", keyStoredAt)
	}
	storedAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return StoredObject{}, fmt.Errorf("unmarshal envelope: %s: %w", keyStoredAt, err)
	}

	return StoredObject{
		ID:       id,
		Bucket:   bucket,
		Payload:  body,
		StoredAt: storedAt.UTC(),
	}, nil
}
