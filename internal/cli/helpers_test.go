package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/peer"
	"github.com/roach88/savetray/internal/store"
)

// testPeer is a running coordinator "gm" behind an httptest server.
type testPeer struct {
	store  *store.Store
	dbPath string
	url    string
}

func startPeer(t *testing.T) *testPeer {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "gm.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := peer.NewStaticDirectory("gm", "gm", nil)
	handler := delegate.NewHandler(dir, st, delegate.WithHandlerLogger(logger))
	loop := delegate.NewLoop(handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	ts := httptest.NewServer(peer.NewServer(loop, st, dir, peer.WithServerLogger(logger)).Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		st.Close()
	})
	return &testPeer{store: st, dbPath: dbPath, url: ts.URL}
}

// flags points the CLI at p as both self and coordinator.
func (p *testPeer) flags() []string {
	return []string{"--self", "gm", "--coordinator", "gm", "--peer", "gm=" + p.url}
}

// execute runs the root command and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
