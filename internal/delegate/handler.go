package delegate

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
)

// Handler serves write requests on behalf of the coordinator.
//
// It is installed on every peer so that whichever one holds coordinator
// status can serve requests; on any other peer it answers ReasonNotAuthorized.
// Handle is called from one goroutine at a time; Loop provides that.
type Handler struct {
	authority Authority
	resolver  DocumentResolver
	clock     *Clock
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithClock sets the clock used to stamp writes (default NewClock()).
func WithClock(c *Clock) HandlerOption {
	return func(h *Handler) {
		h.clock = c
	}
}

// WithHandlerLogger sets the logger (default slog.Default()).
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a Handler.
func NewHandler(authority Authority, resolver DocumentResolver, opts ...HandlerOption) *Handler {
	h := &Handler{
		authority: authority,
		resolver:  resolver,
		clock:     NewClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clock returns the handler's write clock.
func (h *Handler) Clock() *Clock {
	return h.clock
}

// Handle validates and performs one attachment write.
//
// Checks run in order: coordinator status, request shape, document
// resolution, attachment support. Any failure past validation, including a
// panic in the resolver or writer, is reported as ReasonInternalError and
// logged with the request; Handle itself never panics.
func (h *Handler) Handle(ctx context.Context, req Request) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("write handler panicked",
				"request_id", req.ID,
				"document", req.DocumentRef,
				"namespace", req.Namespace,
				"key", req.Key,
				"panic", p,
			)
			res = Fail(ReasonInternalError)
		}
	}()

	if !h.authority.IsCoordinator(ctx) {
		h.logger.Warn("write refused: not the coordinator",
			"request_id", req.ID,
			"document", req.DocumentRef,
		)
		return Fail(ReasonNotAuthorized)
	}

	if !req.wellFormed() {
		h.logger.Warn("write refused: malformed request",
			"request_id", req.ID,
			"document", req.DocumentRef,
			"namespace", req.Namespace,
			"key", req.Key,
		)
		return Fail(ReasonBadRequest)
	}

	doc, err := h.resolver.Resolve(ctx, req.DocumentRef)
	if errors.Is(err, ErrDocumentNotFound) || (err == nil && isNilDocument(doc)) {
		return Fail(ReasonNotFound)
	}
	if err != nil {
		h.logger.Error("resolve document",
			"request_id", req.ID,
			"document", req.DocumentRef,
			"error", err,
		)
		return Fail(ReasonInternalError)
	}

	writer, ok := doc.(AttachmentWriter)
	if !ok {
		return Fail(ReasonUnsupportedTarget)
	}

	seq := h.clock.Current() + 1
	if err := writer.SetAttachment(ctx, Write{
		RequestID: req.ID,
		Namespace: req.Namespace,
		Key:       req.Key,
		Value:     req.Value,
		Seq:       seq,
	}); err != nil {
		h.logger.Error("write attachment",
			"request_id", req.ID,
			"document", req.DocumentRef,
			"namespace", req.Namespace,
			"key", req.Key,
			"seq", seq,
			"error", err,
		)
		return Fail(ReasonInternalError)
	}
	h.clock.Advance(seq)

	h.logger.Info("attachment written",
		"request_id", req.ID,
		"document", req.DocumentRef,
		"namespace", req.Namespace,
		"key", req.Key,
		"seq", seq,
	)
	return Succeeded()
}

// isNilDocument also catches a nil pointer held in a non-nil interface.
func isNilDocument(doc Document) bool {
	if doc == nil {
		return true
	}
	v := reflect.ValueOf(doc)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
