package harness

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/store"
)

const testDoc = "ChatMessage.m1"

func setupAssertionContext(t *testing.T, l *ledger.Ledger) *AssertionContext {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "assert.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.CreateDocument(ctx, testDoc, store.KindMessage))

	if l != nil {
		raw, err := json.Marshal(l)
		require.NoError(t, err)
		doc, err := st.Resolve(ctx, testDoc)
		require.NoError(t, err)
		writer, ok := doc.(delegate.AttachmentWriter)
		require.True(t, ok)
		require.NoError(t, writer.SetAttachment(ctx, delegate.Write{
			RequestID: "req-1",
			Namespace: "ns",
			Key:       "k",
			Value:     raw,
			Seq:       1,
		}))
	}

	return &AssertionContext{Store: st, Ctx: ctx, Namespace: "ns", Key: "k"}
}

func sampleLedger() *ledger.Ledger {
	l, _ := ledger.Merge(ledger.Empty(),
		[]ledger.Target{{EntityRef: "Actor.a", TokenName: "Alyx"}, {EntityRef: "Actor.b", EntityName: "Brom"}},
		ledger.MetaPatch{Threshold: ledger.Float(13), CheckKind: ledger.String("str")},
	)
	l, _ = ledger.Merge(l,
		[]ledger.Target{{EntityRef: "Actor.a", TokenName: "Alyx"}},
		ledger.MetaPatch{OutcomeValue: ledger.Float(15), OutcomeSuccess: ledger.Bool(true)},
	)
	return &l
}

func TestAssertFinalLedger_Passes(t *testing.T) {
	actx := setupAssertionContext(t, sampleLedger())

	err := assertFinalLedger(nil, Assertion{
		Type:      AssertFinalLedger,
		Document:  testDoc,
		Refs:      []string{"Actor.a", "Actor.b"},
		Threshold: ledger.Float(13),
		CheckKind: ledger.String("str"),
		Records: map[string]RecordExpect{
			"Actor.a": {DisplayName: ledger.String("Alyx"), OutcomeValue: ledger.Float(15), OutcomeSuccess: ledger.Bool(true)},
			"Actor.b": {DisplayName: ledger.String("Brom"), Unresolved: true, SuccessUnknown: true},
		},
	}, actx)
	assert.NoError(t, err)
}

func TestAssertFinalLedger_Failures(t *testing.T) {
	actx := setupAssertionContext(t, sampleLedger())

	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "ref order",
			assertion: Assertion{Refs: []string{"Actor.b", "Actor.a"}},
			want:      "refs [Actor.b Actor.a]",
		},
		{
			name:      "threshold",
			assertion: Assertion{Threshold: ledger.Float(10)},
			want:      "threshold 10",
		},
		{
			name:      "check kind",
			assertion: Assertion{CheckKind: ledger.String("dex")},
			want:      `check kind "dex"`,
		},
		{
			name:      "missing record",
			assertion: Assertion{Records: map[string]RecordExpect{"Actor.z": {}}},
			want:      "no such record",
		},
		{
			name:      "success unknown vs false",
			assertion: Assertion{Records: map[string]RecordExpect{"Actor.b": {OutcomeSuccess: ledger.Bool(false)}}},
			want:      "Actual: null",
		},
		{
			name:      "resolved",
			assertion: Assertion{Records: map[string]RecordExpect{"Actor.a": {Unresolved: true}}},
			want:      "Actor.a unresolved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.assertion
			a.Type = AssertFinalLedger
			a.Document = testDoc

			err := assertFinalLedger(nil, a, actx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAssertFinalLedger_UnknownDocument(t *testing.T) {
	actx := setupAssertionContext(t, nil)

	err := assertFinalLedger(nil, Assertion{Type: AssertFinalLedger, Document: "ChatMessage.gone"}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readable ledger")
}

func TestAssertCommitCount(t *testing.T) {
	actx := setupAssertionContext(t, sampleLedger())

	assert.NoError(t, assertCommitCount(nil, Assertion{Type: AssertCommitCount, Document: testDoc, Count: 1}, actx))

	err := assertCommitCount(nil, Assertion{Type: AssertCommitCount, Document: testDoc, Count: 2}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 commit(s)")
}

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 1, Op: OpAttach, Document: testDoc, Outcome: OutcomeOK},
		{Step: 2, Op: OpDelete, Document: testDoc, Outcome: OutcomeFailed, Reason: "no-authority"},
		{Step: 3, Op: OpDelete, Document: testDoc, Outcome: OutcomeOK},
		{Step: 4, Op: OpClear, Document: testDoc, Outcome: OutcomeNoop},
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Ops: []string{OpAttach, OpDelete}}))

	// The clear was a no-op, so it never committed.
	err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Ops: []string{OpAttach, OpClear}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no committed clear")

	err = assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Ops: []string{OpDelete, OpAttach}})
	require.Error(t, err)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpDelete, Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpDelete, Outcome: OutcomeFailed, Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpClear, Outcome: OutcomeNoop, Count: 1}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: OpAttach, Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 2 time(s)")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "something",
		Actual:   "nothing",
		Trace:    sampleTrace(),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[2] delete ChatMessage.m1 -> failed (no-authority)")
}

func TestEvaluateAssertions_CollectsAllFailures(t *testing.T) {
	actx := setupAssertionContext(t, nil)
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: OpAttach, Count: 5},
		{Type: AssertCommitCount, Document: testDoc, Count: 3},
		{Type: AssertTraceOrder, Ops: []string{OpAttach}},
	}, actx)
	assert.Len(t, errs, 2)
}
