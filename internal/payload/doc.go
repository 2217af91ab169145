// Package payload provides the constrained value model for stored records.
//
// This package depends on nothing internal. The object store, the schema
// validator and the debate records all exchange payload.Value.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64, floats are rejected on
//     decode and on canonical encode, because they break byte-determinism of
//     the content address
//   - Content ids are hex(SHA-256(MarshalCanonical(v))) with no domain prefix
//   - Canonical JSON follows RFC 8785: UTF-16 key order, no HTML escaping,
//     NFC-normalized strings
//   - Structural safety (nesting depth, reserved keys) is checked before any
//     serialization and again after every read
package payload
