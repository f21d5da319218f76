package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/savetray/internal/delegate"
)

const (
	testNamespace = "save-tray-5e"
	testKey       = "saveTray"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestDocument(t *testing.T, s *Store, ref string, kind DocumentKind) {
	t.Helper()
	if err := s.CreateDocument(context.Background(), ref, kind); err != nil {
		t.Fatalf("CreateDocument(%q) failed: %v", ref, err)
	}
}

// writeTestAttachment writes through the resolver path, as the handler does.
func writeTestAttachment(t *testing.T, s *Store, ref, value string, seq int64) {
	t.Helper()
	ctx := context.Background()

	doc, err := s.Resolve(ctx, ref)
	if err != nil {
		t.Fatalf("Resolve(%q) failed: %v", ref, err)
	}
	w, ok := doc.(delegate.AttachmentWriter)
	if !ok {
		t.Fatalf("document %q does not accept attachments", ref)
	}
	err = w.SetAttachment(ctx, delegate.Write{
		RequestID: fmt.Sprintf("req-%d", seq),
		Namespace: testNamespace,
		Key:       testKey,
		Value:     json.RawMessage(value),
		Seq:       seq,
	})
	if err != nil {
		t.Fatalf("SetAttachment() failed: %v", err)
	}
}
