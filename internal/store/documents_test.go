package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/savetray/internal/delegate"
)

func TestCreateDocument_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, "ChatMessage.a", KindMessage))
	require.NoError(t, s.CreateDocument(ctx, "ChatMessage.a", KindMessage))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DocumentInfo{{Ref: "ChatMessage.a", Kind: KindMessage}}, docs)
}

func TestCreateDocument_KindConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, "ChatMessage.a", KindMessage))
	err := s.CreateDocument(ctx, "ChatMessage.a", KindReadOnly)
	assert.ErrorContains(t, err, "exists with kind")
}

func TestCreateDocument_Invalid(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.CreateDocument(ctx, "", KindMessage))
	assert.Error(t, s.CreateDocument(ctx, "ChatMessage.a", DocumentKind("actor")))
}

func TestListDocuments_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestListDocuments_OrderedByRef(t *testing.T) {
	s := createTestStore(t)
	createTestDocument(t, s, "ChatMessage.b", KindMessage)
	createTestDocument(t, s, "Actor.z", KindReadOnly)
	createTestDocument(t, s, "ChatMessage.a", KindMessage)

	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)

	var refs []string
	for _, d := range docs {
		refs = append(refs, d.Ref)
	}
	assert.Equal(t, []string{"Actor.z", "ChatMessage.a", "ChatMessage.b"}, refs)
}

func TestResolve_UnknownDocument(t *testing.T) {
	s := createTestStore(t)

	doc, err := s.Resolve(context.Background(), "ChatMessage.missing")
	assert.ErrorIs(t, err, delegate.ErrDocumentNotFound)
	assert.Nil(t, doc)
}

func TestResolve_MessageAcceptsAttachments(t *testing.T) {
	s := createTestStore(t)
	createTestDocument(t, s, "ChatMessage.a", KindMessage)

	doc, err := s.Resolve(context.Background(), "ChatMessage.a")
	require.NoError(t, err)
	assert.Equal(t, "ChatMessage.a", doc.Ref())
	_, ok := doc.(delegate.AttachmentWriter)
	assert.True(t, ok, "message documents should implement AttachmentWriter")
}

func TestResolve_ReadOnlyRefusesAttachments(t *testing.T) {
	s := createTestStore(t)
	createTestDocument(t, s, "Actor.a", KindReadOnly)

	doc, err := s.Resolve(context.Background(), "Actor.a")
	require.NoError(t, err)
	_, ok := doc.(delegate.AttachmentWriter)
	assert.False(t, ok, "read-only documents should not implement AttachmentWriter")
}

func TestDeleteDocument_CascadesAttachments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestDocument(t, s, "ChatMessage.a", KindMessage)
	writeTestAttachment(t, s, "ChatMessage.a", `{"records":[]}`, 1)

	require.NoError(t, s.DeleteDocument(ctx, "ChatMessage.a"))
	require.NoError(t, s.DeleteDocument(ctx, "ChatMessage.a"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM attachments`).Scan(&count))
	assert.Zero(t, count)

	// The commit log outlives the document.
	history, err := s.History(ctx, "ChatMessage.a")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
