package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/savetray/internal/delegate"
)

// Submitter accepts requests on a peer. *delegate.Loop implements it.
type Submitter interface {
	Submit(ctx context.Context, req delegate.Request) (delegate.Result, error)
}

// LocalTransport delivers requests to in-process peers.
//
// Requests are round-tripped through JSON and delegate.DecodeRequest so
// handlers see exactly what a network peer would send. Unknown peers fail
// with delegate.ErrUnreachable.
type LocalTransport struct {
	mu    sync.Mutex
	peers map[delegate.PeerRef]Submitter
	sent  []delegate.Request
}

// NewLocalTransport creates a transport with no peers.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{peers: make(map[delegate.PeerRef]Submitter)}
}

// Register routes requests for peer to s.
func (t *LocalTransport) Register(peer delegate.PeerRef, s Submitter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[peer] = s
}

// Send implements delegate.Transport.
func (t *LocalTransport) Send(ctx context.Context, peer delegate.PeerRef, req delegate.Request) (delegate.Result, error) {
	t.mu.Lock()
	t.sent = append(t.sent, req)
	s, ok := t.peers[peer]
	t.mu.Unlock()

	if !ok {
		return delegate.Result{}, fmt.Errorf("send to %s: %w", peer, delegate.ErrUnreachable)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return delegate.Result{}, fmt.Errorf("encode request: %w", err)
	}
	wire, ok := delegate.DecodeRequest(data)
	if !ok {
		wire = delegate.Request{}
	}
	return s.Submit(ctx, wire)
}

// Sent returns a copy of every request passed to Send, in order.
func (t *LocalTransport) Sent() []delegate.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]delegate.Request, len(t.sent))
	copy(out, t.sent)
	return out
}

// SendCount returns how many requests were passed to Send.
func (t *LocalTransport) SendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}
