// Package schema validates record payloads against per-bucket CUE
// definitions.
//
// The definitions are embedded from schema.cue and compiled once. Each is a
// closed struct, so unknown fields are rejected along with missing or
// mistyped ones. Buckets without a definition accept any payload.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/payload"
)

//go:embed schema.cue
var source string

// definitions maps each bucket to the CUE definition its payloads unify with.
var definitions = map[string]string{
	objects.BucketAgents:      "#Agent",
	objects.BucketSimulations: "#Simulation",
	objects.BucketArguments:   "#Argument",
}

// Validator checks payloads against the compiled definitions.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so Validate
// serializes on an internal mutex.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]cue.Value
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile record schemas: %w", err)
	}

	defs := make(map[string]cue.Value, len(definitions))
	for bucket, name := range definitions {
		def := root.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("record schema %s not defined", name)
		}
		defs[bucket] = def
	}
	return &Validator{ctx: ctx, defs: defs}, nil
}

// Buckets returns the buckets that carry a schema, sorted.
func (v *Validator) Buckets() []string {
	out := make([]string, 0, len(v.defs))
	for b := range v.defs {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Validate checks p against the schema for bucket. The returned error is a
// VALIDATION error carrying the first CUE error; the full CUE error list is
// reachable through errors.Unwrap.
func (v *Validator) Validate(bucket string, p payload.Value) error {
	const op = "validate_schema"

	def, ok := v.defs[bucket]
	if !ok {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.Encode(payload.ToAny(p))
	if err := val.Err(); err != nil {
		return &errs.Error{Code: errs.CodeValidation, Op: op, Bucket: bucket, Message: firstError(err), Err: err}
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return &errs.Error{Code: errs.CodeValidation, Op: op, Bucket: bucket, Message: firstError(err), Err: err}
	}
	return nil
}

// firstError reduces a CUE error list to its first message.
func firstError(err error) string {
	list := errors.Errors(err)
	if len(list) == 0 {
		return err.Error()
	}
	return list[0].Error()
}
