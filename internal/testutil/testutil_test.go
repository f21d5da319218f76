package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/savetray/internal/delegate"
)

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("")
	assert.Equal(t, "req-0001", ids.Generate())
	assert.Equal(t, "req-0002", ids.Generate())
	assert.Equal(t, 2, ids.Count())

	ids.Reset()
	assert.Equal(t, "req-0001", ids.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("x")
	const n = 200

	var wg sync.WaitGroup
	seen := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- ids.Generate()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[string]bool{}
	for id := range seen {
		require.False(t, unique[id], "duplicate id %s", id)
		unique[id] = true
	}
	assert.Len(t, unique, n)
}

func TestDirectory_Handoff(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory("gm")
	gm := dir.AuthorityFor("gm")
	player := dir.AuthorityFor("player")

	assert.True(t, gm.IsCoordinator(ctx))
	assert.False(t, player.IsCoordinator(ctx))

	dir.SetCoordinator("player")
	assert.False(t, gm.IsCoordinator(ctx))
	assert.True(t, player.IsCoordinator(ctx))

	dir.ClearCoordinator()
	_, ok := dir.CurrentCoordinator(ctx)
	assert.False(t, ok)
	assert.False(t, player.IsCoordinator(ctx))
}

func TestLocalTransport_UnknownPeer(t *testing.T) {
	tr := NewLocalTransport()
	_, err := tr.Send(context.Background(), "ghost", delegate.Request{DocumentRef: "d", Namespace: "n", Key: "k"})
	assert.ErrorIs(t, err, delegate.ErrUnreachable)
	assert.Equal(t, 1, tr.SendCount())
}

func TestNetwork_CommitLandsInStore(t *testing.T) {
	net := NewNetwork(t, "gm")
	net.CreateMessage(t, "ChatMessage.a")
	ctx := context.Background()

	res := net.Requester().Commit(ctx, "ChatMessage.a", "ns", "k", map[string]int{"v": 1})
	require.True(t, res.OK, "reason: %s", res.Reason)
	assert.True(t, res.Changed)

	raw, err := net.Store.ReadAttachment(ctx, "ChatMessage.a", "ns", "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(raw))

	sent := net.Transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "req-0001", sent[0].ID)
}
