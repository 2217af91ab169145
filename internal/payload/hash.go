package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ContentID computes the content-addressed id of a value:
// lowercase hex SHA-256 of its canonical JSON.
// The id is stable across processes and machines given the same value.
func ContentID(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("content id: %w", err)
	}
	return HashBytes(canonical), nil
}

// HashBytes returns the lowercase hex SHA-256 of already-canonical bytes.
func HashBytes(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// MustContentID is like ContentID but panics on error.
// Use only in tests or when the value is known to be valid.
func MustContentID(v Value) string {
	id, err := ContentID(v)
	if err != nil {
		panic(err)
	}
	return id
}
