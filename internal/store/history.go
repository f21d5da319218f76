package store

import (
	"context"
	"fmt"
)

// CommitEntry is one row of the commit log.
type CommitEntry struct {
	ID          int64  `json:"id"`
	Seq         int64  `json:"seq"`
	RequestID   string `json:"request_id"`
	DocumentRef string `json:"document_ref"`
	Namespace   string `json:"namespace"`
	Key         string `json:"key"`
	Revision    string `json:"revision"`
}

// History returns the commit log for a document in commit order.
// Returns an empty slice (not nil) when nothing was committed.
//
// CRITICAL: Ordered by seq ASC, id ASC. Never by wall-clock time.
func (s *Store) History(ctx context.Context, documentRef string) ([]CommitEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, request_id, document_ref, namespace, key, revision
		FROM commit_log
		WHERE document_ref = ?
		ORDER BY seq ASC, id ASC
	`, documentRef)
	if err != nil {
		return nil, fmt.Errorf("query history for %q: %w", documentRef, err)
	}
	defer rows.Close()

	entries := []CommitEntry{}
	for rows.Next() {
		var e CommitEntry
		if err := rows.Scan(&e.ID, &e.Seq, &e.RequestID, &e.DocumentRef, &e.Namespace, &e.Key, &e.Revision); err != nil {
			return nil, fmt.Errorf("scan commit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}
