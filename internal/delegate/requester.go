package delegate

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// DefaultTimeout bounds the wait for the coordinator's reply.
const DefaultTimeout = 8 * time.Second

// Requester ships replacement values to the current coordinator.
// It runs on every peer, including the coordinator itself.
//
// Thread-safety: Commit may be called concurrently from any goroutine.
type Requester struct {
	lookup    CoordinatorLookup
	transport Transport
	timeout   time.Duration
	ids       IDGenerator
	logger    *slog.Logger
}

// RequesterOption configures a Requester.
type RequesterOption func(*Requester)

// WithTimeout sets the bounded wait for the coordinator's reply.
// Non-positive durations are ignored.
func WithTimeout(d time.Duration) RequesterOption {
	return func(r *Requester) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithIDGenerator overrides the request id generator (default UUIDv7).
func WithIDGenerator(g IDGenerator) RequesterOption {
	return func(r *Requester) {
		r.ids = g
	}
}

// WithRequesterLogger sets the logger (default slog.Default()).
func WithRequesterLogger(l *slog.Logger) RequesterOption {
	return func(r *Requester) {
		r.logger = l
	}
}

// NewRequester creates a Requester.
func NewRequester(lookup CoordinatorLookup, transport Transport, opts ...RequesterOption) *Requester {
	r := &Requester{
		lookup:    lookup,
		transport: transport,
		timeout:   DefaultTimeout,
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured reply wait.
func (r *Requester) Timeout() time.Duration {
	return r.timeout
}

type reply struct {
	result Result
	err    error
}

// Commit asks the coordinator to replace the (namespace, key) attachment of
// documentRef with value.
//
// Outcomes:
//   - no coordinator online: ReasonNoAuthority, no transport call is made
//   - value cannot be marshaled: ReasonBadRequest, no transport call is made
//   - coordinator replied in time: its Result, verbatim
//   - transport error or timeout: ReasonTransportFailure
//
// Commit resolves exactly once. A reply arriving after the timeout is
// discarded. Commit never retries.
func (r *Requester) Commit(ctx context.Context, documentRef, namespace, key string, value any) Result {
	coordinator, ok := r.lookup.CurrentCoordinator(ctx)
	if !ok {
		r.logger.Warn("no coordinator online",
			"document", documentRef,
			"namespace", namespace,
			"key", key,
		)
		return Fail(ReasonNoAuthority)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("marshal attachment value",
			"document", documentRef,
			"error", err,
		)
		return Fail(ReasonBadRequest)
	}

	req := Request{
		ID:          r.ids.Generate(),
		DocumentRef: documentRef,
		Namespace:   namespace,
		Key:         key,
		Value:       raw,
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Buffered so a late Send never blocks after Commit has given up.
	replies := make(chan reply, 1)
	go func() {
		res, err := r.transport.Send(ctx, coordinator, req)
		replies <- reply{result: res, err: err}
	}()

	select {
	case rep := <-replies:
		if rep.err != nil {
			r.logger.Warn("coordinator query failed",
				"request_id", req.ID,
				"coordinator", coordinator,
				"document", documentRef,
				"error", rep.err,
			)
			return Fail(ReasonTransportFailure)
		}
		r.logger.Debug("coordinator replied",
			"request_id", req.ID,
			"coordinator", coordinator,
			"ok", rep.result.OK,
			"reason", rep.result.Reason,
		)
		return rep.result

	case <-ctx.Done():
		r.logger.Warn("coordinator query timed out",
			"request_id", req.ID,
			"coordinator", coordinator,
			"document", documentRef,
			"timeout", r.timeout,
		)
		return Fail(ReasonTransportFailure)
	}
}
