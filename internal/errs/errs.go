// Package errs defines the error taxonomy shared by the store, reference and
// graph packages.
//
// Every failure that crosses a package boundary is an *Error carrying a Code.
// Messages are built from the operation name and the logical bucket/id pair
// only. Filesystem paths never appear in Error() output; the underlying cause
// is still reachable through errors.Unwrap for programmatic inspection.
package errs

import (
	"errors"
	"io/fs"
	"os"
	"strings"
)

// Code categorizes errors.
type Code string

const (
	// CodeValidation indicates a malformed bucket/id, an oversized or too-deep
	// payload, a reserved-key payload, or an invalid edge request.
	CodeValidation Code = "VALIDATION"

	// CodeSecurity indicates a path that resolves outside the store root.
	CodeSecurity Code = "SECURITY"

	// CodeNotFound indicates a missing object or an absent/stale reference.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict indicates a reference already set, or an explicit id that
	// already holds different content.
	CodeConflict Code = "CONFLICT"

	// CodeStorage indicates an I/O failure not classified above.
	CodeStorage Code = "STORAGE"

	// CodeCorruption indicates an on-disk object that failed re-validation.
	CodeCorruption Code = "CORRUPTION"

	// CodeCircularReference indicates an edge that would close a cycle.
	CodeCircularReference Code = "CIRCULAR_REFERENCE"
)

// Error is the single error type returned across package boundaries.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op is the operation that failed ("store", "retrieve", "set_active", ...).
	Op string

	// Bucket and ID qualify the message when known.
	Bucket string
	ID     string

	// Message is a human-readable description, free of filesystem paths.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if ref := e.ref(); ref != "" {
		b.WriteString(" ")
		b.WriteString(ref)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) ref() string {
	switch {
	case e.Bucket != "" && e.ID != "":
		return e.Bucket + "/" + e.ID
	case e.Bucket != "":
		return e.Bucket
	default:
		return e.ID
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a CodeValidation error.
func Validation(op, message string) *Error {
	return &Error{Code: CodeValidation, Op: op, Message: message}
}

// Security creates a CodeSecurity error.
func Security(op, message string) *Error {
	return &Error{Code: CodeSecurity, Op: op, Message: message}
}

// NotFound creates a CodeNotFound error for a bucket/id pair.
func NotFound(op, bucket, id string) *Error {
	return &Error{Code: CodeNotFound, Op: op, Bucket: bucket, ID: id, Message: "not found"}
}

// Conflict creates a CodeConflict error.
func Conflict(op, bucket, id, message string) *Error {
	return &Error{Code: CodeConflict, Op: op, Bucket: bucket, ID: id, Message: message}
}

// Corruption creates a CodeCorruption error.
func Corruption(op, bucket, id, message string, cause error) *Error {
	return &Error{Code: CodeCorruption, Op: op, Bucket: bucket, ID: id, Message: message, Err: cause}
}

// Circular creates a CodeCircularReference error for the given cycle path.
func Circular(op string, path []string) *Error {
	return &Error{
		Code:    CodeCircularReference,
		Op:      op,
		Message: "circular reference: " + strings.Join(path, " -> "),
	}
}

// Storage wraps an I/O failure. The cause is kept for errors.Is/As, but only
// its scrubbed reason reaches the message.
func Storage(op, bucket, id string, cause error) *Error {
	return &Error{
		Code:    CodeStorage,
		Op:      op,
		Bucket:  bucket,
		ID:      id,
		Message: Scrub(cause),
		Err:     cause,
	}
}

// WithRef returns a copy of e qualified by bucket and id.
func (e *Error) WithRef(bucket, id string) *Error {
	c := *e
	c.Bucket = bucket
	c.ID = id
	return &c
}

// Scrub reduces an I/O error to a reason without path information.
// *fs.PathError and *os.LinkError messages embed absolute paths; only the
// operation and the syscall reason are kept.
func Scrub(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Op + ": " + pe.Err.Error()
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Op + ": " + le.Err.Error()
	}
	return "i/o failure"
}

// CodeOf returns the Code of err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsSecurity reports whether err is a security error.
func IsSecurity(err error) bool { return CodeOf(err) == CodeSecurity }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool { return CodeOf(err) == CodeStorage }

// IsCorruption reports whether err is a corruption error.
func IsCorruption(err error) bool { return CodeOf(err) == CodeCorruption }

// IsCircular reports whether err is a circular-reference error.
func IsCircular(err error) bool { return CodeOf(err) == CodeCircularReference }
