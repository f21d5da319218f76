package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/store"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Network is an in-process session: one coordinator peer serving writes
// from a temp-dir SQLite store, reachable through a LocalTransport.
type Network struct {
	Coordinator delegate.PeerRef
	Store       *store.Store
	Directory   *Directory
	Transport   *LocalTransport
	Handler     *delegate.Handler
	Loop        *delegate.Loop
	IDs         *SequentialIDs
}

// NewNetwork starts a session whose coordinator is peer coordinator.
// The write loop and store are shut down by t.Cleanup.
func NewNetwork(t testing.TB, coordinator delegate.PeerRef) *Network {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "savetray.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	dir := NewDirectory(coordinator)
	handler := delegate.NewHandler(dir.AuthorityFor(coordinator), st,
		delegate.WithHandlerLogger(DiscardLogger()),
	)
	loop := delegate.NewLoop(handler)
	transport := NewLocalTransport()
	transport.Register(coordinator, loop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		st.Close()
	})

	return &Network{
		Coordinator: coordinator,
		Store:       st,
		Directory:   dir,
		Transport:   transport,
		Handler:     handler,
		Loop:        loop,
		IDs:         NewSequentialIDs("req"),
	}
}

// Requester returns a Requester wired to the network's directory and
// transport, with sequential ids and discarded logs.
func (n *Network) Requester(opts ...delegate.RequesterOption) *delegate.Requester {
	base := []delegate.RequesterOption{
		delegate.WithIDGenerator(n.IDs),
		delegate.WithRequesterLogger(DiscardLogger()),
	}
	return delegate.NewRequester(n.Directory, n.Transport, append(base, opts...)...)
}

// CreateMessage registers a document that accepts attachments.
func (n *Network) CreateMessage(t testing.TB, ref string) {
	t.Helper()
	if err := n.Store.CreateDocument(context.Background(), ref, store.KindMessage); err != nil {
		t.Fatalf("create document %q: %v", ref, err)
	}
}
