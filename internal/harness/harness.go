package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/agora/internal/debate"
	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/graph"
	"github.com/roach88/agora/internal/index"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/payload"
	"github.com/roach88/agora/internal/refs"
	"github.com/roach88/agora/internal/schema"
	"github.com/roach88/agora/internal/testutil"
)

// errStep marks a step the harness cannot run: an unknown alias or an
// argument of the wrong type. It fails the scenario rather than the step.
var errStep = errors.New("invalid step")

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and simulation tokens.
type Harness struct {
	svc     *debate.Service
	catalog *index.Index
	logger  *slog.Logger

	seq     int64
	aliases map[string]string // alias -> id
	names   map[string]string // id -> alias
}

// outcome is what one step produced.
type outcome struct {
	Case   string
	Result map[string]any
	Err    error
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh store in a temporary directory, which
// is removed afterwards.
//
// Execution flow:
// 1. Create a fresh store, catalog and debate service
// 2. Execute setup steps; any failure aborts the run
// 3. Execute flow steps, checking expect clauses
// 4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "agora-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(ctx, filepath.Join(dir, "store"))
	if err != nil {
		return nil, err
	}
	defer h.catalog.Close()

	result := NewResult()

	for i, step := range scenario.Setup {
		oc, err := h.step(ctx, step.Action, step.Args, step.As, result)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if oc.Case != CaseOK {
			return nil, fmt.Errorf("setup[%d] %s failed: %w", i, step.Action, oc.Err)
		}
	}

	for i, step := range scenario.Flow {
		oc, err := h.step(ctx, step.Invoke, step.Args, step.As, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		h.checkExpect(i, step, oc, result)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Service: h.svc,
		Aliases: h.aliases,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(ctx context.Context, root string) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewClock(testutil.Epoch, time.Second)

	store, err := objects.Open(root, objects.WithClock(clock.Now), objects.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	head, err := refs.New(root, store, refs.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open refs: %w", err)
	}
	validator, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}
	catalog, err := index.Open(filepath.Join(root, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	svc := debate.New(store, head, catalog, validator,
		debate.WithTokenGenerator(testutil.NewSequenceTokenGenerator()),
		debate.WithLogger(logger),
	)

	return &Harness{
		svc:     svc,
		catalog: catalog,
		logger:  logger,
		aliases: make(map[string]string),
		names:   make(map[string]string),
	}, nil
}

// step runs one action and records it in the trace. The trace keeps the
// arguments as written, aliases included.
func (h *Harness) step(ctx context.Context, action string, raw map[string]any, as string, result *Result) (outcome, error) {
	args, err := h.resolveArgs(raw)
	if err != nil {
		return outcome{}, err
	}

	h.seq++
	result.AddInvocationTrace(action, nonEmpty(raw), h.seq)

	res, err := h.execute(ctx, action, args)
	if errors.Is(err, errStep) {
		return outcome{}, fmt.Errorf("%s: %w", action, err)
	}

	oc := outcome{Case: CaseOK, Err: err}
	if err != nil {
		oc.Case = caseOf(err)
	}
	if id, ok := res["id"].(string); ok && id != "" && as != "" {
		h.bind(as, id)
	}
	oc.Result = h.aliasResult(res)

	h.seq++
	result.AddCompletionTrace(oc.Case, nonEmpty(oc.Result), h.seq)

	h.logger.Info("step completed",
		"seq", h.seq,
		"action", action,
		"output_case", oc.Case,
	)
	return oc, nil
}

func (h *Harness) checkExpect(i int, step FlowStep, oc outcome, result *Result) {
	want := CaseOK
	if step.Expect != nil {
		want = step.Expect.Case
	}
	if oc.Case != want {
		msg := fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, want, oc.Case)
		if oc.Err != nil {
			msg += ": " + oc.Err.Error()
		}
		result.AddError(msg)
		return
	}
	if step.Expect != nil && !matchArgs(oc.Result, step.Expect.Result) {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Invoke, step.Expect.Result, oc.Result))
	}
}

// execute runs action against the service and returns its result fields.
func (h *Harness) execute(ctx context.Context, action string, args map[string]any) (map[string]any, error) {
	a := argReader{args: args}

	switch action {
	case ActionRegisterAgent:
		agent := debate.Agent{Name: a.str("name"), Position: a.str("position")}
		id := a.str("id")
		if a.err != nil {
			return nil, a.err
		}
		var err error
		if id != "" {
			id, err = h.svc.Put(ctx, objects.BucketAgents, agent.Payload(), id)
		} else {
			id, err = h.svc.RegisterAgent(ctx, agent)
		}
		return idResult(id), err

	case ActionPut:
		bucket, id := a.str("bucket"), a.str("id")
		if a.err != nil {
			return nil, a.err
		}
		v, err := payload.FromAny(args["payload"])
		if err != nil {
			return nil, errs.Validation("put", err.Error())
		}
		id, err = h.svc.Put(ctx, bucket, v, id)
		return idResult(id), err

	case ActionStart:
		topic, participants := a.str("topic"), a.strs("participants")
		if a.err != nil {
			return nil, a.err
		}
		id, err := h.svc.StartSimulation(ctx, topic, participants)
		return idResult(id), err

	case ActionCheckout:
		session := a.str("session")
		if a.err != nil {
			return nil, a.err
		}
		return nil, h.svc.Checkout(ctx, session)

	case ActionClose:
		return nil, h.svc.Close(ctx)

	case ActionArgue:
		arg := debate.Argument{
			SessionID: a.str("session"),
			AgentID:   a.str("agent"),
			Kind:      debate.ArgumentKind(a.str("kind")),
			Structure: graph.Structure(a.str("structure")),
			Content:   a.str("content"),
			TargetID:  a.str("target"),
			Subtype:   a.str("subtype"),
		}
		if a.err != nil {
			return nil, a.err
		}
		id, edge, err := h.svc.Submit(ctx, arg)
		res := idResult(id)
		if edge != nil {
			res["kind"] = string(edge.Kind)
			res["target"] = edge.ToID
			res["strength_pct"] = int(math.Round(edge.Strength * 100))
		}
		return res, err

	case ActionRemove:
		bucket, id := a.str("bucket"), a.str("id")
		if a.err != nil {
			return nil, a.err
		}
		return nil, h.svc.Remove(ctx, bucket, id)

	case ActionReindex:
		r, err := h.svc.Reindex(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"indexed": r.Indexed, "skipped": r.Skipped}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", errStep, action)
	}
}

func (h *Harness) bind(alias, id string) {
	h.aliases[alias] = id
	if _, taken := h.names[id]; !taken {
		h.names[id] = alias
	}
}

// resolveArgs copies args, replacing "$alias" strings with bound ids.
func (h *Harness) resolveArgs(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		rv, err := h.resolveValue(v)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func (h *Harness) resolveValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return resolveAlias(h.aliases, val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			rv, err := h.resolveValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case map[string]any:
		return h.resolveArgs(val)
	default:
		return v, nil
	}
}

// resolveAlias maps "$alias" to its bound id. Other strings pass through.
func resolveAlias(aliases map[string]string, s string) (string, error) {
	name, ok := strings.CutPrefix(s, "$")
	if !ok {
		return s, nil
	}
	id, bound := aliases[name]
	if !bound {
		return "", fmt.Errorf("%w: unbound alias %q", errStep, s)
	}
	return id, nil
}

// aliasResult replaces bound ids in result values with "$alias".
func (h *Harness) aliasResult(res map[string]any) map[string]any {
	out := make(map[string]any, len(res))
	for k, v := range res {
		if s, ok := v.(string); ok {
			if name, bound := h.names[s]; bound {
				v = "$" + name
			}
		}
		out[k] = v
	}
	return out
}

func idResult(id string) map[string]any {
	if id == "" {
		return map[string]any{}
	}
	return map[string]any{"id": id}
}

func nonEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// caseOf names the outcome of a failed step by its error code.
func caseOf(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

// argReader extracts typed step arguments, remembering the first error.
type argReader struct {
	args map[string]any
	err  error
}

func (r *argReader) str(key string) string {
	v, ok := r.args[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("%w: arg %q must be a string, got %T", errStep, key, v)
	}
	return s
}

func (r *argReader) strs(key string) []string {
	v, ok := r.args[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		if r.err == nil {
			r.err = fmt.Errorf("%w: arg %q must be a list, got %T", errStep, key, v)
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, elem := range list {
		s, ok := elem.(string)
		if !ok {
			if r.err == nil {
				r.err = fmt.Errorf("%w: arg %q must list strings, got %T", errStep, key, elem)
			}
			return nil
		}
		out = append(out, s)
	}
	return out
}
