package tray

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/testutil"
)

// memReader serves ledgers from memory.
type memReader struct {
	mu      sync.Mutex
	ledgers map[string]ledger.Ledger
	err     error
	reads   int
}

func newMemReader() *memReader {
	return &memReader{ledgers: map[string]ledger.Ledger{}}
}

func (r *memReader) ReadLedger(_ context.Context, documentRef, _, _ string) (ledger.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return ledger.Ledger{}, r.err
	}
	l, ok := r.ledgers[documentRef]
	if !ok {
		return ledger.Empty(), nil
	}
	return l.Clone(), nil
}

type commitCall struct {
	documentRef string
	namespace   string
	key         string
	value       ledger.Ledger
}

// recordingCommitter records commits and applies successful ones to its
// reader, so sequential operations observe earlier writes.
type recordingCommitter struct {
	mu     sync.Mutex
	reader *memReader
	result delegate.Result
	calls  []commitCall
}

func newRecordingCommitter(reader *memReader) *recordingCommitter {
	return &recordingCommitter{reader: reader, result: delegate.Succeeded()}
}

func (c *recordingCommitter) Commit(_ context.Context, documentRef, namespace, key string, value any) delegate.Result {
	// Round-trip like the wire does.
	data, err := json.Marshal(value)
	if err != nil {
		return delegate.Fail(delegate.ReasonBadRequest)
	}
	l, err := ledger.Decode(data)
	if err != nil {
		return delegate.Fail(delegate.ReasonBadRequest)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, commitCall{documentRef: documentRef, namespace: namespace, key: key, value: l})
	if c.result.OK {
		c.reader.mu.Lock()
		c.reader.ledgers[documentRef] = l
		c.reader.mu.Unlock()
	}
	return c.result
}

func (c *recordingCommitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *recordingCommitter) last() commitCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[len(c.calls)-1]
}

type rollCall struct {
	documentRef string
	ref         ledger.EntityRef
	threshold   *float64
	checkKind   string
}

type fakeRoller struct {
	calls []rollCall
	err   error
}

func (r *fakeRoller) RequestRoll(_ context.Context, documentRef string, ref ledger.EntityRef, threshold *float64, checkKind string) error {
	r.calls = append(r.calls, rollCall{documentRef: documentRef, ref: ref, threshold: threshold, checkKind: checkKind})
	return r.err
}

func newTestService(opts ...Option) (*Service, *memReader, *recordingCommitter) {
	reader := newMemReader()
	committer := newRecordingCommitter(reader)
	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)
	return NewService(reader, committer, opts...), reader, committer
}

func target(ref, name string) ledger.Target {
	return ledger.Target{EntityRef: ledger.EntityRef(ref), TokenName: name}
}
