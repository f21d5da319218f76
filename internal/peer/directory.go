package peer

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/savetray/internal/delegate"
)

// StaticDirectory is a peer list loaded from configuration.
//
// It implements delegate.CoordinatorLookup for every peer and
// delegate.Authority for the local one. The coordinator can be changed at
// runtime by whatever mechanism the host uses to elect one.
type StaticDirectory struct {
	self delegate.PeerRef

	mu          sync.RWMutex
	coordinator delegate.PeerRef
	urls        map[delegate.PeerRef]string
}

// NewStaticDirectory creates a directory for the local peer self.
// An empty coordinator means none is online.
func NewStaticDirectory(self, coordinator delegate.PeerRef, urls map[delegate.PeerRef]string) *StaticDirectory {
	return &StaticDirectory{
		self:        self,
		coordinator: coordinator,
		urls:        maps.Clone(urls),
	}
}

// Self returns the local peer.
func (d *StaticDirectory) Self() delegate.PeerRef {
	return d.self
}

// SetCoordinator records a coordinator change. Empty means none online.
func (d *StaticDirectory) SetCoordinator(peer delegate.PeerRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coordinator = peer
}

// CurrentCoordinator implements delegate.CoordinatorLookup.
func (d *StaticDirectory) CurrentCoordinator(context.Context) (delegate.PeerRef, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.coordinator, d.coordinator != ""
}

// IsCoordinator implements delegate.Authority for the local peer.
func (d *StaticDirectory) IsCoordinator(ctx context.Context) bool {
	current, ok := d.CurrentCoordinator(ctx)
	return ok && current == d.self
}

// URL returns the base URL of peer.
func (d *StaticDirectory) URL(peer delegate.PeerRef) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.urls[peer]
	return u, ok
}

// Peers returns all known peers, sorted.
func (d *StaticDirectory) Peers() []delegate.PeerRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.urls))
}
