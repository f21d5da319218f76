// Package harness runs save tray scenarios end to end.
//
// A scenario registers host documents, then drives ledger mutation
// operations through a real coordinator: an in-memory SQLite store behind a
// delegate.Loop, reached through an in-process transport. Every step's
// outcome is recorded in a trace, and assertions check the trace and the
// final ledgers.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	coordinator: gm
//	documents:
//	  - ref: ChatMessage.card1
//	    kind: message
//	flow:
//	  - op: attach
//	    document: ChatMessage.card1
//	    targets:
//	      - { ref: Actor.a, token_name: Goblin }
//	    patch: { threshold: 15, checkKind: dex }
//	    expect: { outcome: ok }
//	  - op: delete
//	    document: ChatMessage.card1
//	    ref: Actor.a
//	    expect: { outcome: noop }
//	assertions:
//	  - type: final_ledger
//	    document: ChatMessage.card1
//	    refs: [Actor.a]
//	  - type: commit_count
//	    document: ChatMessage.card1
//	    count: 1
//
// Patches use the wire field names and the wire's typing rules, so a patch
// of { outcomeSuccess: "true" } carries no outcome.
//
// # Operations
//
//   - attach, delete, clear: the tray mutation operations
//   - check_initiated, check_resolved: the event-source adapters
//   - set_coordinator: move (or, with an empty peer, remove) write authority
//
// # Assertion Types
//
//   - final_ledger: refs, metadata and per-record fields of a document's ledger
//   - commit_count: number of commit log entries for a document
//   - trace_order: ops whose commits landed in this order
//   - trace_count: number of steps of an op with a given outcome
//
// # Deterministic Testing
//
// Request ids come from testutil.SequentialIDs and writes are stamped by the
// handler's logical clock, so a scenario produces the same trace on every
// run and can be compared against a golden snapshot.
package harness
