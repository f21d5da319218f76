// Package store provides SQLite-backed durable storage for host documents
// and their attachments.
//
// The store holds:
//   - Documents: host documents identified by an opaque ref
//   - Attachments: one opaque JSON value per (document, namespace, key)
//   - Commit log: an append-only record of every attachment write
//
// # Write Model
//
// Attachments are only ever replaced wholesale. There is no field-level
// update path; all merging happens before a value reaches the store. Writes
// are performed by the coordinator's write loop (internal/delegate), which
// stamps each one with a logical seq.
//
// # Critical Patterns
//
// Logical time: commit log ordering uses the seq column (logical clock),
// never timestamps. History queries ORDER BY seq ASC, id ASC.
//
// Atomic replace: the attachment upsert and its commit log entry are written
// in one transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Attachments die with their document
package store
