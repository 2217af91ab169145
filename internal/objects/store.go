package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/ident"
	"github.com/roach88/agora/internal/payload"
)

// Known buckets, created by Initialize.
const (
	BucketAgents      = "agents"
	BucketArguments   = "arguments"
	BucketSimulations = "simulations"
)

// DefaultBuckets is the bucket set created by Initialize unless WithBuckets
// overrides it. Other buckets may be used without being listed here.
var DefaultBuckets = []string{BucketAgents, BucketArguments, BucketSimulations}

const (
	objectsDir = "objects"
	refsDir    = "refs"
	fileExt    = ".json"

	dirPerm  = 0o700
	filePerm = 0o600

	// envelopeOverhead bounds the bytes the envelope adds around a payload
	// (keys, bucket, id, timestamp).
	envelopeOverhead = 4 << 10
)

// StoredObject is a record as persisted. It is never modified after creation.
type StoredObject struct {
	ID       string        `json:"id"`
	Bucket   string        `json:"bucket"`
	Payload  payload.Value `json:"payload"`
	StoredAt time.Time     `json:"stored_at"`
}

// Store is a filesystem-backed content-addressed object store.
// Methods are safe for concurrent use: every write is a single atomic
// rename and nothing is cached in memory.
type Store struct {
	root    string
	buckets []string
	limits  payload.Limits
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxDepth sets the maximum payload nesting depth.
//
// Default: 32 (payload.DefaultMaxDepth)
func WithMaxDepth(depth int) Option {
	return func(s *Store) {
		s.limits.MaxDepth = depth
	}
}

// WithMaxBytes sets the maximum canonical payload size in bytes.
//
// Default: 10 MiB (payload.DefaultMaxBytes)
func WithMaxBytes(n int) Option {
	return func(s *Store) {
		s.limits.MaxBytes = n
	}
}

// WithClock sets the time source used for stored_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBuckets replaces the bucket set created by Initialize.
func WithBuckets(buckets ...string) Option {
	return func(s *Store) {
		s.buckets = slices.Clone(buckets)
	}
}

// Open returns a Store rooted at root. It validates configuration but does
// not touch the filesystem; call Initialize to create the directory layout.
func Open(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errs.Validation("open", "store root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &errs.Error{Code: errs.CodeValidation, Op: "open", Message: "cannot resolve store root", Err: err}
	}

	s := &Store{
		root:    abs,
		buckets: slices.Clone(DefaultBuckets),
		limits:  payload.DefaultLimits(),
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.limits.MaxDepth <= 0 {
		return nil, errs.Validation("open", "max depth must be positive")
	}
	if s.limits.MaxBytes <= 0 {
		return nil, errs.Validation("open", "max bytes must be positive")
	}
	for _, b := range s.buckets {
		if err := ident.ValidateBucket(b); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string {
	return s.root
}

// Limits returns the payload bounds enforced by the store.
func (s *Store) Limits() payload.Limits {
	return s.limits
}

// Initialize creates root/, root/objects/<bucket>/ for every configured
// bucket, and root/refs/. It is idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Storage("initialize", "", "", err)
	}

	if err := os.MkdirAll(s.root, dirPerm); err != nil {
		return errs.Storage("initialize", "", "", err)
	}

	dirs := []string{refsDir}
	for _, b := range s.buckets {
		dirs = append(dirs, filepath.Join(objectsDir, b))
	}
	for _, d := range dirs {
		path, err := ident.Join(s.root, d)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(path, dirPerm); err != nil {
			return errs.Storage("initialize", "", "", err)
		}
	}

	s.logger.Debug("store initialized", "buckets", s.buckets)
	return nil
}

// bucketDir returns the resolved directory for bucket.
func (s *Store) bucketDir(bucket string) (string, error) {
	return ident.Join(s.root, objectsDir, bucket)
}

// objectPath returns the resolved file path for bucket/id.
// Both must already be validated.
func (s *Store) objectPath(bucket, id string) (string, error) {
	return ident.Join(s.root, objectsDir, bucket, id+fileExt)
}

// validateRef runs the identifier allow-lists for op.
func validateRef(op, bucket, id string) error {
	if err := ident.ValidateBucket(bucket); err != nil {
		return qualify(err, op, "", "")
	}
	if err := ident.ValidateID(id); err != nil {
		return qualify(err, op, bucket, "")
	}
	return nil
}

// qualify rewrites the op of an *errs.Error and attaches the bucket/id.
func qualify(err error, op, bucket, id string) error {
	var e *errs.Error
	if !errors.As(err, &e) {
		return fmt.Errorf("%s: %w", op, err)
	}
	c := e.WithRef(bucket, id)
	c.Op = op
	return c
}
