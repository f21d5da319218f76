package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticLookup always reports the same coordinator (or none).
type staticLookup struct {
	peer PeerRef
}

func (s staticLookup) CurrentCoordinator(context.Context) (PeerRef, bool) {
	return s.peer, s.peer != ""
}

// flagAuthority is a switchable coordinator flag.
type flagAuthority struct {
	on atomic.Bool
}

func newFlagAuthority(on bool) *flagAuthority {
	a := &flagAuthority{}
	a.on.Store(on)
	return a
}

func (a *flagAuthority) IsCoordinator(context.Context) bool {
	return a.on.Load()
}

// recordingTransport counts calls and replies with a scripted result.
type recordingTransport struct {
	mu     sync.Mutex
	calls  []Request
	peers  []PeerRef
	result Result
	err    error
	delay  time.Duration
	done   chan struct{} // closed when a delayed Send returns, if non-nil
}

func (t *recordingTransport) Send(ctx context.Context, peer PeerRef, req Request) (Result, error) {
	t.mu.Lock()
	t.calls = append(t.calls, req)
	t.peers = append(t.peers, peer)
	t.mu.Unlock()

	if t.delay > 0 {
		// Deliberately ignores ctx to model a transport that replies late.
		time.Sleep(t.delay)
		if t.done != nil {
			defer close(t.done)
		}
	}
	return t.result, t.err
}

func (t *recordingTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// memDocument is an attachable in-memory document.
type memDocument struct {
	mu          sync.Mutex
	ref         string
	attachments map[string]json.RawMessage
	writes      []Write
	failWith    error
	panicWith   any
}

func newMemDocument(ref string) *memDocument {
	return &memDocument{ref: ref, attachments: make(map[string]json.RawMessage)}
}

func (d *memDocument) Ref() string { return d.ref }

func (d *memDocument) SetAttachment(_ context.Context, w Write) error {
	if d.panicWith != nil {
		panic(d.panicWith)
	}
	if d.failWith != nil {
		return d.failWith
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attachments[w.Namespace+"/"+w.Key] = w.Value
	d.writes = append(d.writes, w)
	return nil
}

func (d *memDocument) attachment(ns, key string) (json.RawMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.attachments[ns+"/"+key]
	return v, ok
}

// readonlyDocument cannot hold attachments.
type readonlyDocument struct{ ref string }

func (d readonlyDocument) Ref() string { return d.ref }

// memResolver resolves documents from a map.
type memResolver struct {
	docs map[string]Document
	err  error
}

func (r memResolver) Resolve(_ context.Context, ref string) (Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	doc, ok := r.docs[ref]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

var errDisk = errors.New("disk full")
