// Package ident validates the two untrusted strings that reach the
// filesystem (bucket names and record ids) and confines every derived path
// to the store root.
//
// The allow-lists are deliberately narrow. Ids are lowercase hex plus hyphen
// only, which excludes path separators, NUL bytes, dot sequences and the
// uppercase letters that alias lowercase ones on case-insensitive
// filesystems. ResolveWithinRoot still runs as the final gate before every
// syscall, after the allow-lists have passed.
package ident

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/roach88/agora/internal/errs"
)

// Length bounds. SHA-256 hex ids are 64 characters and UUIDs 36.
const (
	MaxBucketLength = 64
	MaxIDLength     = 128
)

var (
	bucketPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	idPattern     = regexp.MustCompile(`^[a-f0-9-]+$`)
)

// ValidateBucket checks a bucket name against ^[a-z0-9-]+$.
func ValidateBucket(name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.Validation("validate_bucket", "bucket is empty")
	}
	if len(name) > MaxBucketLength {
		return errs.Validation("validate_bucket", fmt.Sprintf("bucket longer than %d characters", MaxBucketLength))
	}
	if !bucketPattern.MatchString(name) {
		return errs.Validation("validate_bucket", "bucket must match ^[a-z0-9-]+$")
	}
	return nil
}

// ValidateID checks a record id against ^[a-f0-9-]+$.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errs.Validation("validate_id", "id is empty")
	}
	if len(id) > MaxIDLength {
		return errs.Validation("validate_id", fmt.Sprintf("id longer than %d characters", MaxIDLength))
	}
	if !idPattern.MatchString(id) {
		return errs.Validation("validate_id", "id must match ^[a-f0-9-]+$")
	}
	return nil
}

// ResolveWithinRoot canonicalizes candidate and verifies that it lies inside
// root. It returns the canonical candidate path.
//
// Both paths are made absolute and cleaned, and symlinks in their deepest
// existing ancestor are resolved. The candidate is rejected when its path
// relative to root is "..", starts with "../" or "..\", is absolute, or does
// not reproduce the canonical candidate when joined back onto root.
func ResolveWithinRoot(root, candidate string) (string, error) {
	if strings.ContainsRune(root, 0) || strings.ContainsRune(candidate, 0) {
		return "", errs.Security("resolve", "path contains NUL byte")
	}

	canonRoot, err := canonicalize(root)
	if err != nil {
		return "", &errs.Error{Code: errs.CodeSecurity, Op: "resolve", Message: "cannot resolve store root", Err: err}
	}
	canonCandidate, err := canonicalize(candidate)
	if err != nil {
		return "", &errs.Error{Code: errs.CodeSecurity, Op: "resolve", Message: "cannot resolve path", Err: err}
	}

	rel, err := filepath.Rel(canonRoot, canonCandidate)
	if err != nil {
		return "", errs.Security("resolve", "path is not relative to store root")
	}
	if rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, `..\`) || filepath.IsAbs(rel) {
		return "", errs.Security("resolve", "path escapes store root")
	}
	if filepath.Join(canonRoot, rel) != canonCandidate {
		return "", errs.Security("resolve", "path does not round-trip under store root")
	}

	return canonCandidate, nil
}

// Join builds a path under root from elems. The join is symlink-scoped (a
// link inside root can never lead out of it) and the result is passed
// through ResolveWithinRoot.
func Join(root string, elems ...string) (string, error) {
	joined, err := securejoin.SecureJoin(root, filepath.Join(elems...))
	if err != nil {
		return "", &errs.Error{Code: errs.CodeSecurity, Op: "join", Message: "cannot join path under store root", Err: err}
	}
	return ResolveWithinRoot(root, joined)
}

// canonicalize returns an absolute, clean path whose deepest existing
// ancestor has all symlinks resolved. Components that do not exist yet are
// appended unchanged.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := abs
	var missing []string
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !securejoin.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		missing = append(missing, filepath.Base(existing))
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}

	parts := []string{resolved}
	for i := len(missing) - 1; i >= 0; i-- {
		parts = append(parts, missing[i])
	}
	return filepath.Join(parts...), nil
}
