// Package refs maintains HEAD, the single mutable pointer naming the active
// session.
//
// HEAD is Unset (no file) or Set(id) (root/refs/HEAD holds the id and a
// newline). SetActive only moves Unset → Set and refuses to replace another
// session; SwitchActive moves unconditionally. Both require the target to
// exist in the object store. GetActive re-checks existence on every read, so
// a HEAD left pointing at a deleted session reads as NOT_FOUND.
//
// An in-process mutex serializes the check-then-write sequences. Across
// processes the last writer wins.
package refs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/ident"
	"github.com/roach88/agora/internal/objects"
)

const (
	refsDir  = "refs"
	headName = "HEAD"

	// maxHeadBytes bounds the HEAD read; a valid id plus newline is far
	// shorter.
	maxHeadBytes = ident.MaxIDLength + 2

	defaultBucket = objects.BucketSimulations
)

// Exister reports whether an object is stored. *objects.Store satisfies it.
type Exister interface {
	Exists(ctx context.Context, bucket, id string) (bool, error)
}

// Store is the HEAD reference store.
type Store struct {
	root    string
	objects Exister
	bucket  string
	logger  *slog.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithBucket sets the bucket HEAD ids are resolved in.
//
// Default: "simulations"
func WithBucket(bucket string) Option {
	return func(s *Store) {
		s.bucket = bucket
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a reference store rooted at root that checks ids against
// exister.
func New(root string, exister Exister, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errs.Validation("refs", "store root is empty")
	}
	if exister == nil {
		return nil, errs.Validation("refs", "object store is nil")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &errs.Error{Code: errs.CodeValidation, Op: "refs", Message: "cannot resolve store root", Err: err}
	}

	s := &Store{
		root:    abs,
		objects: exister,
		bucket:  defaultBucket,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := ident.ValidateBucket(s.bucket); err != nil {
		return nil, err
	}
	return s, nil
}

// SetActive makes id the active session when none is set.
//
// Errors:
//   - VALIDATION if id is malformed
//   - NOT_FOUND if id is not stored
//   - CONFLICT if HEAD already names a different id, even a stale one
//   - CORRUPTION if HEAD holds something that is not an id
//
// Setting the id that is already active succeeds without writing.
func (s *Store) SetActive(ctx context.Context, id string) error {
	const op = "set_active"
	if err := s.validate(op, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireObject(ctx, op, id); err != nil {
		return err
	}

	current, present, err := s.readHead(ctx, op)
	if err != nil {
		return err
	}
	if present {
		if current == id {
			return nil
		}
		return errs.Conflict(op, s.bucket, current, "another session is already active; switch to replace it")
	}

	if err := s.writeHead(ctx, op, id); err != nil {
		return err
	}
	s.logger.Info("active session set", "session_id", id)
	return nil
}

// SwitchActive makes id the active session regardless of the current state.
func (s *Store) SwitchActive(ctx context.Context, id string) error {
	const op = "switch_active"
	if err := s.validate(op, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireObject(ctx, op, id); err != nil {
		return err
	}
	if err := s.writeHead(ctx, op, id); err != nil {
		return err
	}
	s.logger.Info("active session switched", "session_id", id)
	return nil
}

// GetActive returns the active session id.
//
// It is NOT_FOUND when HEAD is unset or names an object that no longer
// exists, and CORRUPTION when HEAD does not hold a valid id.
func (s *Store) GetActive(ctx context.Context) (string, error) {
	const op = "get_active"

	s.mu.Lock()
	defer s.mu.Unlock()

	id, present, err := s.readHead(ctx, op)
	if err != nil {
		return "", err
	}
	if !present {
		return "", &errs.Error{Code: errs.CodeNotFound, Op: op, Message: "no active session"}
	}

	ok, err := s.objects.Exists(ctx, s.bucket, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &errs.Error{Code: errs.CodeNotFound, Op: op, Bucket: s.bucket, ID: id, Message: "active session no longer exists"}
	}
	return id, nil
}

// ClearActive removes HEAD. Clearing an unset HEAD succeeds.
func (s *Store) ClearActive(ctx context.Context) error {
	const op = "clear_active"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errs.Storage(op, "", headName, err)
	}
	path, err := s.headPath()
	if err != nil {
		return qualify(err, op)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Storage(op, "", headName, err)
	}
	s.logger.Info("active session cleared")
	return nil
}

func (s *Store) validate(op, id string) error {
	if err := ident.ValidateID(id); err != nil {
		return qualify(err, op)
	}
	return nil
}

func (s *Store) requireObject(ctx context.Context, op, id string) error {
	ok, err := s.objects.Exists(ctx, s.bucket, id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound(op, s.bucket, id)
	}
	return nil
}

func (s *Store) headPath() (string, error) {
	return ident.Join(s.root, refsDir, headName)
}

// readHead returns the id in HEAD and whether HEAD exists.
func (s *Store) readHead(ctx context.Context, op string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, errs.Storage(op, "", headName, err)
	}
	path, err := s.headPath()
	if err != nil {
		return "", false, qualify(err, op)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, errs.Storage(op, "", headName, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxHeadBytes+1))
	if err != nil {
		return "", false, errs.Storage(op, "", headName, err)
	}
	if len(data) > maxHeadBytes {
		return "", false, errs.Corruption(op, "", headName, "HEAD exceeds size bound", nil)
	}

	id := strings.TrimSuffix(string(data), "\n")
	if err := ident.ValidateID(id); err != nil {
		return "", false, errs.Corruption(op, "", headName, "HEAD does not hold a valid id", err)
	}
	return id, true, nil
}

// writeHead replaces HEAD atomically.
func (s *Store) writeHead(ctx context.Context, op, id string) error {
	if err := ctx.Err(); err != nil {
		return errs.Storage(op, "", headName, err)
	}
	path, err := s.headPath()
	if err != nil {
		return qualify(err, op)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errs.Storage(op, "", headName, err)
	}
	if _, err := ident.ResolveWithinRoot(s.root, path); err != nil {
		return qualify(err, op)
	}
	if err := objects.WriteFileAtomic(path, []byte(id+"\n"), 0o600); err != nil {
		return errs.Storage(op, "", headName, err)
	}
	return nil
}

func qualify(err error, op string) error {
	var e *errs.Error
	if !errors.As(err, &e) {
		return err
	}
	c := *e
	c.Op = op
	return &c
}
