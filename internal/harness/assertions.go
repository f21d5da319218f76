package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/store"
)

// AssertionContext provides what assertions need beyond the trace.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	Namespace string
	Key       string
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		line := fmt.Sprintf("  [%d] %s %s -> %s", event.Step, event.Op, event.Document, event.Outcome)
		if event.Reason != "" {
			line += " (" + event.Reason + ")"
		}
		fmt.Fprintf(&buf, "%s %v\n", line, event.Refs)
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalLedger:
			err = assertFinalLedger(result.Trace, a, actx)
		case AssertCommitCount:
			err = assertCommitCount(result.Trace, a, actx)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertFinalLedger(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	l, err := actx.Store.ReadLedger(actx.Ctx, a.Document, actx.Namespace, actx.Key)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "readable ledger for " + a.Document, Actual: err.Error(), Trace: trace}
	}

	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: trace}
	}

	if a.Refs != nil {
		got := make([]string, 0, l.Len())
		for _, ref := range l.Refs() {
			got = append(got, string(ref))
		}
		if !slices.Equal(got, a.Refs) {
			return fail(fmt.Sprintf("%s refs %v", a.Document, a.Refs), fmt.Sprintf("%v", got))
		}
	}
	if a.Threshold != nil && !floatEqual(l.Threshold, a.Threshold) {
		return fail(fmt.Sprintf("%s threshold %v", a.Document, *a.Threshold), describeFloat(l.Threshold))
	}
	if a.CheckKind != nil && (l.CheckKind == nil || *l.CheckKind != *a.CheckKind) {
		return fail(fmt.Sprintf("%s check kind %q", a.Document, *a.CheckKind), describeString(l.CheckKind))
	}

	refs := make([]string, 0, len(a.Records))
	for ref := range a.Records {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	for _, ref := range refs {
		want := a.Records[ref]
		rec, ok := l.Get(ledger.EntityRef(ref))
		if !ok {
			return fail(fmt.Sprintf("record %s in %s", ref, a.Document), "no such record")
		}
		if want.DisplayName != nil && rec.DisplayName != *want.DisplayName {
			return fail(fmt.Sprintf("%s display name %q", ref, *want.DisplayName), fmt.Sprintf("%q", rec.DisplayName))
		}
		if want.OutcomeValue != nil && !floatEqual(rec.OutcomeValue, want.OutcomeValue) {
			return fail(fmt.Sprintf("%s outcome value %v", ref, *want.OutcomeValue), describeFloat(rec.OutcomeValue))
		}
		if want.Unresolved && rec.OutcomeValue != nil {
			return fail(fmt.Sprintf("%s unresolved", ref), describeFloat(rec.OutcomeValue))
		}
		if want.OutcomeSuccess != nil && (rec.OutcomeSuccess == nil || *rec.OutcomeSuccess != *want.OutcomeSuccess) {
			return fail(fmt.Sprintf("%s outcome success %v", ref, *want.OutcomeSuccess), describeBool(rec.OutcomeSuccess))
		}
		if want.SuccessUnknown && rec.OutcomeSuccess != nil {
			return fail(fmt.Sprintf("%s success unknown", ref), describeBool(rec.OutcomeSuccess))
		}
	}
	return nil
}

func assertCommitCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	history, err := actx.Store.History(actx.Ctx, a.Document)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "readable history for " + a.Document, Actual: err.Error(), Trace: trace}
	}
	if len(history) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d commit(s) on %s", a.Count, a.Document),
			Actual:   fmt.Sprintf("%d commit(s)", len(history)),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that committed steps of the given ops appear in
// order. Intervening steps are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Ops) && ev.Outcome == OutcomeOK && ev.Op == a.Ops[next] {
			next++
		}
	}
	if next < len(a.Ops) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("committed ops in order: %v", a.Ops),
			Actual:   fmt.Sprintf("no committed %s after %v", a.Ops[next], a.Ops[:next]),
			Trace:    trace,
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	outcome := a.Outcome
	if outcome == "" {
		outcome = OutcomeOK
	}
	count := 0
	for _, ev := range trace {
		if ev.Op == a.Op && ev.Outcome == outcome {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s with outcome %s exactly %d time(s)", a.Op, outcome, a.Count),
			Actual:   fmt.Sprintf("%d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

func floatEqual(got, want *float64) bool {
	return got != nil && want != nil && *got == *want
}

func describeFloat(p *float64) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprintf("%v", *p)
}

func describeBool(p *bool) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprintf("%v", *p)
}

func describeString(p *string) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprintf("%q", *p)
}
