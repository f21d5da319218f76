// Package ledger provides the participant ledger attached to a host document
// and the merge engine that combines partial updates into it.
//
// This package contains the data model and pure functions only. It performs
// no I/O; persistence goes through the delegated write channel
// (internal/delegate), and orchestration lives in internal/tray.
//
// Key design constraints:
//   - Records are keyed by EntityRef; no two records share a ref
//   - Records keep insertion order, which carries no meaning beyond display
//   - Outcome fields are tri-state: nil means unresolved/unknown, and a
//     false OutcomeSuccess is a real negative outcome
//   - Ledger metadata (Threshold, CheckKind) is ledger-wide and survives
//     every merge unless a patch explicitly overwrites it
//   - Merge never mutates its input; every mutation yields a full
//     replacement value (the store only supports whole-value writes)
package ledger
