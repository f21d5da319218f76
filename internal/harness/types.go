package harness

// Step outcomes recorded in the trace.
const (
	OutcomeOK     = "ok"
	OutcomeNoop   = "noop"
	OutcomeFailed = "failed"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step     int    `json:"step"`
	Op       string `json:"op"`
	Document string `json:"document,omitempty"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`

	// Refs are the document's ledger refs after the step.
	Refs []string `json:"refs"`

	// Seq is the coordinator clock after the step. It advances only when a
	// write was handled.
	Seq int64 `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Ledgers holds each registered document's final ledger in wire form.
	Ledgers map[string]any `json:"ledgers,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Ledgers: make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	if ev.Refs == nil {
		ev.Refs = []string{}
	}
	r.Trace = append(r.Trace, ev)
}
