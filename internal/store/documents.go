package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/savetray/internal/delegate"
)

// DocumentKind controls whether a document accepts attachments.
type DocumentKind string

const (
	// KindMessage documents (chat cards) accept attachments.
	KindMessage DocumentKind = "message"

	// KindReadOnly documents resolve but refuse attachment writes.
	KindReadOnly DocumentKind = "readonly"
)

// Valid reports whether k is a known kind.
func (k DocumentKind) Valid() bool {
	return k == KindMessage || k == KindReadOnly
}

// DocumentInfo describes a stored document.
type DocumentInfo struct {
	Ref  string
	Kind DocumentKind
}

// CreateDocument registers a document. Idempotent: re-creating an existing
// ref with the same kind is a no-op. Re-creating with a different kind is
// an error.
func (s *Store) CreateDocument(ctx context.Context, ref string, kind DocumentKind) error {
	if ref == "" {
		return fmt.Errorf("create document: empty ref")
	}
	if !kind.Valid() {
		return fmt.Errorf("create document %q: unknown kind %q", ref, kind)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (ref, kind) VALUES (?, ?)
		ON CONFLICT(ref) DO NOTHING
	`, ref, string(kind))
	if err != nil {
		return fmt.Errorf("create document %q: %w", ref, err)
	}

	info, err := s.GetDocument(ctx, ref)
	if err != nil {
		return err
	}
	if info.Kind != kind {
		return fmt.Errorf("create document %q: exists with kind %q", ref, info.Kind)
	}
	return nil
}

// GetDocument loads a document's metadata.
// Returns delegate.ErrDocumentNotFound for unknown refs.
func (s *Store) GetDocument(ctx context.Context, ref string) (DocumentInfo, error) {
	var kind string
	err := s.db.QueryRowContext(ctx, `SELECT kind FROM documents WHERE ref = ?`, ref).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentInfo{}, fmt.Errorf("document %q: %w", ref, delegate.ErrDocumentNotFound)
	}
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("get document %q: %w", ref, err)
	}
	return DocumentInfo{Ref: ref, Kind: DocumentKind(kind)}, nil
}

// ListDocuments returns all documents ordered by ref.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, kind FROM documents
		ORDER BY ref COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []DocumentInfo{}
	for rows.Next() {
		var d DocumentInfo
		var kind string
		if err := rows.Scan(&d.Ref, &kind); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Kind = DocumentKind(kind)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and, via cascade, its attachments.
// The commit log is kept. Deleting an unknown ref is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, ref string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE ref = ?`, ref); err != nil {
		return fmt.Errorf("delete document %q: %w", ref, err)
	}
	return nil
}

// Resolve implements delegate.DocumentResolver.
//
// Message documents resolve to a value that also implements
// delegate.AttachmentWriter; read-only documents do not.
func (s *Store) Resolve(ctx context.Context, ref string) (delegate.Document, error) {
	info, err := s.GetDocument(ctx, ref)
	if err != nil {
		return nil, err
	}
	if info.Kind == KindMessage {
		return &messageDocument{store: s, ref: ref}, nil
	}
	return readonlyDocument{ref: ref}, nil
}

type readonlyDocument struct {
	ref string
}

func (d readonlyDocument) Ref() string { return d.ref }

type messageDocument struct {
	store *Store
	ref   string
}

func (d *messageDocument) Ref() string { return d.ref }

// SetAttachment replaces the attachment and appends to the commit log
// atomically.
func (d *messageDocument) SetAttachment(ctx context.Context, w delegate.Write) error {
	return d.store.putAttachment(ctx, d.ref, w)
}

var _ delegate.AttachmentWriter = (*messageDocument)(nil)
