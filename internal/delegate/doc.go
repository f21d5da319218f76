// Package delegate implements the delegated write channel: the only path by
// which a document attachment is ever persisted.
//
// Every peer runs a Requester. Only the peer currently acting as coordinator
// may write; every other peer ships its full replacement value to the
// coordinator and waits, with a bounded timeout, for the coordinator's reply.
//
// ARCHITECTURE:
//
//	Requester.Commit ──Transport.Send──▶ Loop.Submit ──▶ Handler.Handle ──▶ AttachmentWriter
//	      ▲                                                     │
//	      └──────────────────────── Result ◀────────────────────┘
//
// Who the coordinator is (CoordinatorLookup), how bytes move between peers
// (Transport), whether the local peer is the coordinator (Authority) and how
// documents are found (DocumentResolver) are all injected. The package never
// elects a coordinator.
//
// ERROR MODEL:
//
// Nothing crosses the component boundary as an error or panic. Every failure
// is a Result with OK=false and one of the Reason values. Only
// ReasonTransportFailure is worth retrying, and this package never retries.
//
// Single-Writer Loop:
//
// On the coordinator, Loop serializes incoming requests through one goroutine
// so writes to the store happen in arrival order, each stamped with a
// monotonic sequence number from Clock.
package delegate
