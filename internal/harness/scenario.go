package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/store"
)

// Scenario defines an end-to-end ledger scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Coordinator is the peer serving writes. Empty means none is online
	// at the start.
	Coordinator string `yaml:"coordinator"`

	// Documents are registered in the store before the flow runs.
	Documents []DocumentSpec `yaml:"documents"`

	// Flow is executed in order, one operation per step.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and ledgers.
	Assertions []Assertion `yaml:"assertions"`
}

// DocumentSpec registers one host document.
type DocumentSpec struct {
	Ref  string             `yaml:"ref"`
	Kind store.DocumentKind `yaml:"kind"`
}

// Step is one operation in the flow.
type Step struct {
	Op       string `yaml:"op"`
	Document string `yaml:"document,omitempty"`

	// Targets are used by attach and check_initiated.
	Targets []ledger.Target `yaml:"targets,omitempty"`

	// Patch is used by attach. Keys and typing follow the wire form.
	Patch map[string]any `yaml:"patch,omitempty"`

	// Ref is the record removed by delete.
	Ref string `yaml:"ref,omitempty"`

	// Target, Total and Success are used by check_resolved.
	Target  *ledger.Target `yaml:"target,omitempty"`
	Total   *float64       `yaml:"total,omitempty"`
	Success *bool          `yaml:"success,omitempty"`

	// Threshold and CheckKind are used by both check events.
	Threshold *float64 `yaml:"threshold,omitempty"`
	CheckKind *string  `yaml:"check_kind,omitempty"`

	// Peer is the new coordinator for set_coordinator.
	Peer string `yaml:"peer,omitempty"`

	// StaleRoute keeps routing requests for Peer to the original
	// coordinator, which no longer holds authority.
	StaleRoute bool `yaml:"stale_route,omitempty"`

	// Expect checks the step's outcome. If nil, any outcome is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Outcome is one of ok, noop, failed.
	Outcome string `yaml:"outcome"`

	// Reason is the expected failure reason (failed outcomes only).
	Reason string `yaml:"reason,omitempty"`
}

// Assertion validates trace or final ledger state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_ledger": check a document's ledger
	// - "commit_count": check a document's commit log length
	// - "trace_order": check committed ops appear in order
	// - "trace_count": check how many steps of an op had an outcome
	Type string `yaml:"type"`

	// Document is used by final_ledger and commit_count.
	Document string `yaml:"document,omitempty"`

	// Refs is the exact expected ref order (final_ledger).
	Refs []string `yaml:"refs,omitempty"`

	// Threshold and CheckKind are expected metadata (final_ledger).
	Threshold *float64 `yaml:"threshold,omitempty"`
	CheckKind *string  `yaml:"check_kind,omitempty"`

	// Records are subset expectations per ref (final_ledger).
	Records map[string]RecordExpect `yaml:"records,omitempty"`

	// Count is used by commit_count and trace_count.
	Count int `yaml:"count,omitempty"`

	// Op and Outcome are used by trace_count. Outcome defaults to ok.
	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Ops is the expected order of committed ops (trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// RecordExpect is a subset match on one participant record.
type RecordExpect struct {
	DisplayName    *string  `yaml:"display_name,omitempty"`
	OutcomeValue   *float64 `yaml:"outcome_value,omitempty"`
	OutcomeSuccess *bool    `yaml:"outcome_success,omitempty"`

	// Unresolved asserts the record has no outcome value.
	Unresolved bool `yaml:"unresolved,omitempty"`

	// SuccessUnknown asserts the record's success is null.
	SuccessUnknown bool `yaml:"success_unknown,omitempty"`
}

// Operation names.
const (
	OpAttach         = "attach"
	OpDelete         = "delete"
	OpClear          = "clear"
	OpCheckInitiated = "check_initiated"
	OpCheckResolved  = "check_resolved"
	OpSetCoordinator = "set_coordinator"
)

// Assertion type constants.
const (
	AssertFinalLedger = "final_ledger"
	AssertCommitCount = "commit_count"
	AssertTraceOrder  = "trace_order"
	AssertTraceCount  = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
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

	for i, doc := range s.Documents {
		if doc.Ref == "" {
			return fmt.Errorf("documents[%d]: ref is required", i)
		}
		if !doc.Kind.Valid() {
			return fmt.Errorf("documents[%d]: unknown kind %q", i, doc.Kind)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case OpAttach, OpCheckInitiated, OpClear:
		if st.Document == "" {
			return fmt.Errorf("flow[%d]: document is required for %s", index, st.Op)
		}
	case OpDelete:
		if st.Document == "" || st.Ref == "" {
			return fmt.Errorf("flow[%d]: document and ref are required for delete", index)
		}
	case OpCheckResolved:
		if st.Document == "" || st.Target == nil {
			return fmt.Errorf("flow[%d]: document and target are required for check_resolved", index)
		}
	case OpSetCoordinator:
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, st.Op)
	}

	if st.Expect != nil {
		switch st.Expect.Outcome {
		case OutcomeOK, OutcomeNoop, OutcomeFailed:
		default:
			return fmt.Errorf("flow[%d].expect: outcome must be ok, noop or failed", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFinalLedger:
		if a.Document == "" {
			return fmt.Errorf("assertions[%d]: document is required for final_ledger", index)
		}
	case AssertCommitCount:
		if a.Document == "" {
			return fmt.Errorf("assertions[%d]: document is required for commit_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
