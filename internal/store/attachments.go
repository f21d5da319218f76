package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
)

// Attachment is a stored attachment value.
type Attachment struct {
	DocumentRef string
	Namespace   string
	Key         string
	Value       json.RawMessage

	// Revision identifies the content. For values that decode as a ledger it
	// is the ledger fingerprint, so semantically equal ledgers share it.
	Revision string

	// Seq is the clock value of the write that produced this value.
	Seq int64
}

// GetAttachment loads an attachment.
//
// Returns delegate.ErrDocumentNotFound if the document does not exist, and
// (nil, nil) if the document exists but has no such attachment.
func (s *Store) GetAttachment(ctx context.Context, documentRef, namespace, key string) (*Attachment, error) {
	if _, err := s.GetDocument(ctx, documentRef); err != nil {
		return nil, err
	}

	a := Attachment{DocumentRef: documentRef, Namespace: namespace, Key: key}
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value, revision, seq FROM attachments
		WHERE document_ref = ? AND namespace = ? AND key = ?
	`, documentRef, namespace, key).Scan(&value, &a.Revision, &a.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment %s/%s/%s: %w", documentRef, namespace, key, err)
	}
	a.Value = json.RawMessage(value)
	return &a, nil
}

// ReadAttachment returns the raw attachment value, or nil if unset.
func (s *Store) ReadAttachment(ctx context.Context, documentRef, namespace, key string) (json.RawMessage, error) {
	a, err := s.GetAttachment(ctx, documentRef, namespace, key)
	if err != nil || a == nil {
		return nil, err
	}
	return a.Value, nil
}

// ReadLedger loads the ledger held in an attachment. An unset attachment
// is the empty ledger.
func (s *Store) ReadLedger(ctx context.Context, documentRef, namespace, key string) (ledger.Ledger, error) {
	raw, err := s.ReadAttachment(ctx, documentRef, namespace, key)
	if err != nil {
		return ledger.Ledger{}, err
	}
	return ledger.Decode(raw)
}

func (s *Store) putAttachment(ctx context.Context, documentRef string, w delegate.Write) error {
	value := w.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	if !json.Valid(value) {
		return fmt.Errorf("put attachment %s/%s/%s: value is not valid JSON", documentRef, w.Namespace, w.Key)
	}
	revision := Revision(value)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attachments (document_ref, namespace, key, value, revision, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_ref, namespace, key) DO UPDATE SET
			value = excluded.value,
			revision = excluded.revision,
			seq = excluded.seq
	`, documentRef, w.Namespace, w.Key, string(value), revision, w.Seq)
	if err != nil {
		return fmt.Errorf("put attachment %s/%s/%s: %w", documentRef, w.Namespace, w.Key, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO commit_log (seq, request_id, document_ref, namespace, key, revision)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.Seq, w.RequestID, documentRef, w.Namespace, w.Key, revision)
	if err != nil {
		return fmt.Errorf("append commit log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Revision computes the content revision of an attachment value.
// Values shaped like a ledger (an object with a records array) are
// fingerprinted as ledgers; anything else is hashed byte-for-byte.
func Revision(value json.RawMessage) string {
	if looksLikeLedger(value) {
		if l, err := ledger.Decode(value); err == nil {
			if fp, err := l.Fingerprint(); err == nil {
				return fp
			}
		}
	}
	h := sha256.New()
	h.Write([]byte("savetray/attachment/v1"))
	h.Write([]byte{0x00})
	h.Write(value)
	return hex.EncodeToString(h.Sum(nil))
}

func looksLikeLedger(value json.RawMessage) bool {
	var probe struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(value, &probe); err != nil {
		return false
	}
	return probe.Records != nil
}
