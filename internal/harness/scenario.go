package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a debate scenario.
// Scenarios execute a flow of store operations and assert on the resulting
// trace and store contents.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup contains actions run before the main flow.
	// Setup actions must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the main test flow - invocations with expected outcomes.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and store.
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep represents a single setup action.
type ActionStep struct {
	// Action is one of the harness actions (e.g., "register_agent").
	Action string `yaml:"action"`

	// Args contains the action arguments as a map.
	Args map[string]any `yaml:"args"`

	// As binds the id the action returns to an alias.
	As string `yaml:"as,omitempty"`
}

// FlowStep represents a step in the main test flow.
type FlowStep struct {
	// Invoke is the action to run.
	Invoke string `yaml:"invoke"`

	// Args contains the action arguments.
	Args map[string]any `yaml:"args"`

	// As binds the id the action returns to an alias.
	As string `yaml:"as,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Case is "OK" or the expected error code (e.g., "CONFLICT").
	Case string `yaml:"case"`

	// Result contains expected result field values.
	// This is a subset match - only specified fields are validated.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the store.
type Assertion struct {
	// Type specifies the assertion type; see the Assert* constants.
	Type string `yaml:"type"`

	// Action is the action name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action arguments (trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number of invocations (trace_count), records
	// (records), relationships (chain) or cycles (audit).
	Count int `yaml:"count,omitempty"`

	// Bucket is the bucket counted by records.
	Bucket string `yaml:"bucket,omitempty"`

	// Root is the argument a chain starts from (chain).
	Root string `yaml:"root,omitempty"`

	// Depth is the expected chain depth (chain).
	Depth int `yaml:"depth,omitempty"`

	// Session is the audited session (audit) or the expected active
	// session (active).
	Session string `yaml:"session,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRecords       = "records"
	AssertChain         = "chain"
	AssertAudit         = "audit"
	AssertActive        = "active"
)

// Harness actions.
const (
	ActionRegisterAgent = "register_agent"
	ActionPut           = "put"
	ActionStart         = "start"
	ActionCheckout      = "checkout"
	ActionClose         = "close"
	ActionArgue         = "argue"
	ActionRemove        = "remove"
	ActionReindex       = "reindex"
)

var actions = []string{
	ActionRegisterAgent, ActionPut, ActionStart, ActionCheckout,
	ActionClose, ActionArgue, ActionRemove, ActionReindex,
}

// CaseOK is the outcome case of a step that succeeded.
const CaseOK = "OK"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step.Action, step.As); err != nil {
			return err
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step.Invoke, step.As); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(where, action, as string) error {
	if action == "" {
		return fmt.Errorf("%s: action is required", where)
	}
	if !slices.Contains(actions, action) {
		return fmt.Errorf("%s: unknown action %q", where, action)
	}
	if strings.HasPrefix(as, "$") {
		return fmt.Errorf("%s: alias %q must not start with $", where, as)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
	case AssertRecords:
		if a.Bucket == "" {
			return fmt.Errorf("assertions[%d]: bucket is required for records", index)
		}
	case AssertChain:
		if a.Root == "" {
			return fmt.Errorf("assertions[%d]: root is required for chain", index)
		}
	case AssertAudit:
		if a.Session == "" {
			return fmt.Errorf("assertions[%d]: session is required for audit", index)
		}
	case AssertActive:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
