// Package tray implements the save tray's ledger mutation operations.
//
// Each operation is a fetch-merge-commit cycle: read the current ledger from
// any peer, compute the replacement with the ledger package, and ship the
// whole value to the coordinator through a delegate.Requester.
//
// CONCURRENCY:
//
// Operations hold no locks and are safe to call from many goroutines. The
// three steps are not atomic; two operations on the same document that
// interleave may lose one update. The last commit to land wins.
//
// RESULTS:
//
// Operations return a *delegate.Result. A nil result means the operation was
// a no-op and nothing was committed. Failures to read the current ledger are
// reported as results too, never as errors.
package tray
