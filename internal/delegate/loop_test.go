package delegate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, h *Handler) *Loop {
	t.Helper()
	l := NewLoop(h)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestLoop_SubmitReturnsHandlerResult(t *testing.T) {
	doc := newMemDocument("Message.1")
	l := startLoop(t, newTestHandler(true, doc))

	res, err := l.Submit(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, Succeeded(), res)
	assert.Len(t, doc.writes, 1)
}

func TestLoop_SerializesWrites(t *testing.T) {
	doc := newMemDocument("Message.1")
	l := startLoop(t, newTestHandler(true, doc))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := validRequest()
			req.ID = fmt.Sprintf("req-%d", i)
			res, err := l.Submit(context.Background(), req)
			assert.NoError(t, err)
			assert.True(t, res.OK)
		}(i)
	}
	wg.Wait()

	require.Len(t, doc.writes, 20)
	for i, w := range doc.writes {
		assert.Equal(t, int64(i+1), w.Seq, "seq must follow processing order")
	}
}

func TestLoop_SubmitHonorsContext(t *testing.T) {
	l := NewLoop(newTestHandler(true)) // never run

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.Submit(ctx, validRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_SubmitAfterStop(t *testing.T) {
	l := NewLoop(newTestHandler(true))
	l.Stop()

	_, err := l.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrLoopStopped)
}

func TestLoop_RunReturnsOnStop(t *testing.T) {
	l := NewLoop(newTestHandler(true))
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	l.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestLoop_RunReturnsOnCancel(t *testing.T) {
	l := NewLoop(newTestHandler(true))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	assert.True(t, c.Advance(3))
	assert.False(t, c.Advance(3))
	assert.False(t, c.Advance(5))
	assert.Equal(t, int64(3), c.Current())

	resumed := NewClockAt(10)
	assert.Equal(t, int64(11), resumed.Next())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, UUIDv7Generator{}.Generate())
}
