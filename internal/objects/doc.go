// Package objects provides the content-addressed object store.
//
// Records live on disk as one canonical JSON envelope per file:
//
//	root/objects/<bucket>/<id>.json   {"bucket","id","payload","stored_at"}
//
// The id is the lowercase hex SHA-256 of the payload's canonical JSON unless
// the caller supplies an explicit id with WithID. Ids are write-once: storing
// identical content again is a no-op, and an explicit id that already holds
// different content is a CONFLICT.
//
// # Ordering of checks
//
// Every operation validates bucket and id before touching the filesystem.
// Store additionally rejects payloads that are too deep, that carry a
// reserved key, or whose canonical form is too large, all before any
// directory or file is created. Every path is passed through
// ident.ResolveWithinRoot immediately before the syscall that uses it.
//
// # Durability
//
//   - Directories are created 0700, files 0600
//   - Writes go to a temp file in the target directory, are fsynced, then
//     renamed over the target
//   - Reads are bounded: files larger than the configured limit are
//     rejected before they are read
//
// Errors are *errs.Error values whose messages name the bucket and id, never
// a filesystem path.
package objects
