package testutil

import (
	"context"
	"sync"

	"github.com/roach88/savetray/internal/delegate"
)

// Directory is a mutable fake of the host's coordinator lookup.
// Tests move coordinator status around to simulate handoffs.
type Directory struct {
	mu          sync.RWMutex
	coordinator delegate.PeerRef
}

// NewDirectory creates a directory. An empty coordinator means none online.
func NewDirectory(coordinator delegate.PeerRef) *Directory {
	return &Directory{coordinator: coordinator}
}

// SetCoordinator makes peer the coordinator.
func (d *Directory) SetCoordinator(peer delegate.PeerRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coordinator = peer
}

// ClearCoordinator takes every coordinator offline.
func (d *Directory) ClearCoordinator() {
	d.SetCoordinator("")
}

// CurrentCoordinator implements delegate.CoordinatorLookup.
func (d *Directory) CurrentCoordinator(context.Context) (delegate.PeerRef, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.coordinator, d.coordinator != ""
}

// AuthorityFor returns the Authority of peer self as seen through d.
func (d *Directory) AuthorityFor(self delegate.PeerRef) delegate.Authority {
	return peerAuthority{dir: d, self: self}
}

type peerAuthority struct {
	dir  *Directory
	self delegate.PeerRef
}

func (a peerAuthority) IsCoordinator(ctx context.Context) bool {
	current, ok := a.dir.CurrentCoordinator(ctx)
	return ok && current == a.self
}
