// Package debate wires the object store, the active-session reference, the
// record catalog, the record schemas and the relationship graph into debate
// operations.
//
// Records are written to the object store first and catalogued second. The
// catalog is derived data: a crash between the two leaves it lagging, and
// Reindex rebuilds it from the store.
//
// Thread-safety: Service methods are safe for concurrent use within one
// process. Submit serializes on an internal mutex so that the graph it
// validates against cannot change before the argument is written.
package debate

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/index"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/payload"
	"github.com/roach88/agora/internal/refs"
	"github.com/roach88/agora/internal/schema"
)

// TokenGenerator produces the tokens that keep simulations on the same topic
// distinct. Implemented by UUIDv7Generator (production) and the testutil
// generators (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Service orchestrates debate operations.
type Service struct {
	objects *objects.Store
	refs    *refs.Store
	index   *index.Index
	schema  *schema.Validator
	cache   *objects.Cache
	tokens  TokenGenerator
	logger  *slog.Logger

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithTokenGenerator replaces the UUIDv7 token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Service) {
		s.tokens = g
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service over the given components.
func New(store *objects.Store, head *refs.Store, catalog *index.Index, validator *schema.Validator, opts ...Option) *Service {
	s := &Service{
		objects: store,
		refs:    head,
		index:   catalog,
		schema:  validator,
		cache:   objects.NewCache(store),
		tokens:  UUIDv7Generator{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates the store layout.
func (s *Service) Initialize(ctx context.Context) error {
	return s.objects.Initialize(ctx)
}

// Put schema-validates v, stores it in bucket and catalogs it. An explicit
// id, when non-empty, replaces the content id.
func (s *Service) Put(ctx context.Context, bucket string, v payload.Value, explicitID string) (string, error) {
	// Bound the payload before handing it to the schema evaluator.
	if err := payload.CheckStructure(v, s.objects.Limits()); err != nil {
		return "", &errs.Error{Code: errs.CodeValidation, Op: "put", Bucket: bucket, Message: err.Error(), Err: err}
	}
	if err := s.schema.Validate(bucket, v); err != nil {
		return "", err
	}
	var opts []objects.StoreOption
	if explicitID != "" {
		opts = append(opts, objects.WithID(explicitID))
	}
	id, err := s.objects.Store(ctx, bucket, v, opts...)
	if err != nil {
		return "", err
	}
	if err := s.catalog(ctx, "put", bucket, id); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the object stored under bucket/id.
func (s *Service) Get(ctx context.Context, bucket, id string) (objects.StoredObject, error) {
	return s.cache.Get(ctx, bucket, id)
}

// List returns the ids in bucket, sorted.
func (s *Service) List(ctx context.Context, bucket string) ([]string, error) {
	return s.objects.List(ctx, bucket)
}

// Remove deletes bucket/id from the store and the catalog. Removing a
// missing record succeeds.
func (s *Service) Remove(ctx context.Context, bucket, id string) error {
	const op = "remove"
	if err := s.objects.Delete(ctx, bucket, id); err != nil {
		return err
	}
	if _, err := s.cache.Refresh(ctx, bucket); err != nil {
		return err
	}
	if err := s.index.DeleteRecord(ctx, bucket, id); err != nil {
		return catalogError(op, err)
	}
	s.logger.Info("record removed", "bucket", bucket, "id", id)
	return nil
}

// RegisterAgent stores an agent and returns its id.
func (s *Service) RegisterAgent(ctx context.Context, a Agent) (string, error) {
	id, err := s.Put(ctx, objects.BucketAgents, a.Payload(), "")
	if err != nil {
		return "", err
	}
	s.logger.Info("agent registered", "id", id, "name", a.Name)
	return id, nil
}

// StartSimulation stores a new simulation on topic and makes it the active
// session.
//
// Every participant must be a registered agent. Starting fails with CONFLICT
// when another session is active; the simulation record is still stored and
// can be activated later with Checkout.
func (s *Service) StartSimulation(ctx context.Context, topic string, participants []string) (string, error) {
	const op = "start_simulation"

	sim := Simulation{Topic: topic, Token: s.tokens.Generate()}
	for _, p := range participants {
		if err := s.requireAgent(ctx, op, p); err != nil {
			return "", err
		}
		sim = sim.WithParticipant(p)
	}

	id, err := s.Put(ctx, objects.BucketSimulations, sim.Payload(), "")
	if err != nil {
		return "", err
	}
	if err := s.refs.SetActive(ctx, id); err != nil {
		return id, err
	}
	s.logger.Info("simulation started", "session_id", id, "participants", len(sim.Participants))
	return id, nil
}

// Checkout makes id the active session, replacing any other.
func (s *Service) Checkout(ctx context.Context, id string) error {
	return s.refs.SwitchActive(ctx, id)
}

// Active returns the active session and its simulation record.
func (s *Service) Active(ctx context.Context) (string, Simulation, error) {
	id, err := s.refs.GetActive(ctx)
	if err != nil {
		return "", Simulation{}, err
	}
	sim, err := s.simulation(ctx, id)
	if err != nil {
		return "", Simulation{}, err
	}
	return id, sim, nil
}

// Close ends the active session. Closing with no active session succeeds.
func (s *Service) Close(ctx context.Context) error {
	return s.refs.ClearActive(ctx)
}

func (s *Service) simulation(ctx context.Context, id string) (Simulation, error) {
	obj, err := s.cache.Get(ctx, objects.BucketSimulations, id)
	if err != nil {
		return Simulation{}, err
	}
	sim, err := SimulationFromPayload(obj.Payload)
	if err != nil {
		return Simulation{}, corrupt(err, obj)
	}
	return sim, nil
}

func (s *Service) requireAgent(ctx context.Context, op, id string) error {
	ok, err := s.objects.Exists(ctx, objects.BucketAgents, id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound(op, objects.BucketAgents, id)
	}
	return nil
}

// corrupt reclassifies a decode failure of a stored record.
func corrupt(err error, obj objects.StoredObject) error {
	return errs.Corruption("decode", obj.Bucket, obj.ID, errs.Scrub(err), err)
}

// catalogError gives catalog failures a STORAGE code. SQLite messages are
// kept as the cause only.
func catalogError(op string, err error) error {
	if errs.CodeOf(err) != "" {
		return err
	}
	return &errs.Error{Code: errs.CodeStorage, Op: op, Message: "catalog unavailable", Err: err}
}
