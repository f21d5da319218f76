package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/store"
	"github.com/roach88/savetray/internal/testutil"
	"github.com/roach88/savetray/internal/tray"
)

// Harness holds one scenario's session.
type Harness struct {
	store     *store.Store
	dir       *testutil.Directory
	transport *testutil.LocalTransport
	loop      *delegate.Loop
	clock     *delegate.Clock
	service   *tray.Service
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database and start the coordinator loop
//  2. Register the scenario's documents
//  3. Execute flow steps, checking expect clauses
//  4. Evaluate assertions and collect final ledgers
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := testutil.DiscardLogger()
	coordinator := delegate.PeerRef(scenario.Coordinator)
	dir := testutil.NewDirectory(coordinator)
	clock := delegate.NewClock()
	handler := delegate.NewHandler(dir.AuthorityFor(coordinator), st,
		delegate.WithClock(clock),
		delegate.WithHandlerLogger(logger),
	)
	loop := delegate.NewLoop(handler)
	transport := testutil.NewLocalTransport()
	if coordinator != "" {
		transport.Register(coordinator, loop)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	requester := delegate.NewRequester(dir, transport,
		delegate.WithIDGenerator(testutil.NewSequentialIDs("req")),
		delegate.WithRequesterLogger(logger),
	)

	h := &Harness{
		store:     st,
		dir:       dir,
		transport: transport,
		loop:      loop,
		clock:     clock,
		service:   tray.NewService(st, requester, tray.WithLogger(logger)),
		logger:    logger,
	}

	for _, doc := range scenario.Documents {
		if err := st.CreateDocument(ctx, doc.Ref, doc.Kind); err != nil {
			return nil, fmt.Errorf("failed to register document: %w", err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for _, doc := range scenario.Documents {
		wire, err := h.ledgerWire(ctx, doc.Ref)
		if err != nil {
			return nil, err
		}
		result.Ledgers[doc.Ref] = wire
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Namespace: h.service.Namespace(), Key: h.service.Key()}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	var res *delegate.Result

	switch step.Op {
	case OpAttach:
		patch, err := decodePatch(step.Patch)
		if err != nil {
			return err
		}
		res = h.service.Attach(ctx, step.Document, step.Targets, patch)

	case OpDelete:
		res = h.service.DeleteOne(ctx, step.Document, ledger.EntityRef(step.Ref))

	case OpClear:
		res = h.service.ClearAll(ctx, step.Document)

	case OpCheckInitiated:
		res = h.service.OnCheckInitiated(ctx, tray.CheckInitiated{
			DocumentRef: step.Document,
			Targets:     step.Targets,
			Threshold:   step.Threshold,
			CheckKind:   step.CheckKind,
		})

	case OpCheckResolved:
		res = h.service.OnCheckResolved(ctx, tray.CheckResolved{
			DocumentRef: step.Document,
			Target:      *step.Target,
			Total:       step.Total,
			Threshold:   step.Threshold,
			CheckKind:   step.CheckKind,
			Success:     step.Success,
		})

	case OpSetCoordinator:
		peer := delegate.PeerRef(step.Peer)
		if step.StaleRoute && peer != "" {
			h.transport.Register(peer, h.loop)
		}
		h.dir.SetCoordinator(peer)
		result.AddTrace(TraceEvent{Step: n, Op: step.Op, Outcome: OutcomeOK, Seq: h.clock.Current()})
		return nil
	}

	ev := TraceEvent{Step: n, Op: step.Op, Document: step.Document, Seq: h.clock.Current()}
	switch {
	case res == nil:
		ev.Outcome = OutcomeNoop
	case res.OK:
		ev.Outcome = OutcomeOK
	default:
		ev.Outcome = OutcomeFailed
		ev.Reason = string(res.Reason)
	}
	ev.Refs = h.refs(ctx, step.Document)
	result.AddTrace(ev)

	if step.Expect != nil {
		if step.Expect.Outcome != ev.Outcome {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected outcome %s, got %s (reason %q)",
				n-1, step.Op, step.Expect.Outcome, ev.Outcome, ev.Reason))
		} else if step.Expect.Reason != "" && step.Expect.Reason != ev.Reason {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected reason %s, got %s",
				n-1, step.Op, step.Expect.Reason, ev.Reason))
		}
	}
	return nil
}

// refs lists the document's ledger refs, or nothing if it cannot be read.
func (h *Harness) refs(ctx context.Context, documentRef string) []string {
	l, err := h.service.Snapshot(ctx, documentRef)
	if err != nil {
		return []string{}
	}
	out := make([]string, 0, l.Len())
	for _, ref := range l.Refs() {
		out = append(out, string(ref))
	}
	return out
}

// ledgerWire returns the document's ledger as generic JSON values.
func (h *Harness) ledgerWire(ctx context.Context, documentRef string) (any, error) {
	l, err := h.service.Snapshot(ctx, documentRef)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", documentRef, err)
	}
	data, err := ledger.Encode(l)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", documentRef, err)
	}
	return v, nil
}

// decodePatch converts a scenario patch through the wire form, so the
// wire's typing rules apply.
func decodePatch(raw map[string]any) (ledger.MetaPatch, error) {
	var patch ledger.MetaPatch
	if len(raw) == 0 {
		return patch, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return patch, fmt.Errorf("encode patch: %w", err)
	}
	if err := json.Unmarshal(data, &patch); err != nil {
		return patch, fmt.Errorf("decode patch: %w", err)
	}
	return patch, nil
}
