package tray

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
)

const (
	// DefaultNamespace is the attachment namespace the ledger lives under.
	DefaultNamespace = "save-tray-5e"

	// DefaultKey is the attachment key the ledger lives under.
	DefaultKey = "saveTray"
)

// LedgerReader fetches the current ledger of a document. Reads need no
// coordination and may be served by any peer.
type LedgerReader interface {
	ReadLedger(ctx context.Context, documentRef, namespace, key string) (ledger.Ledger, error)
}

// Committer ships a replacement value to the coordinator.
// *delegate.Requester implements it.
type Committer interface {
	Commit(ctx context.Context, documentRef, namespace, key string, value any) delegate.Result
}

// Service runs ledger mutation operations for one attachment slot.
type Service struct {
	reader    LedgerReader
	committer Committer
	namespace string
	key       string
	roller    Roller
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSlot overrides the attachment namespace and key. Empty values keep
// the defaults.
func WithSlot(namespace, key string) Option {
	return func(s *Service) {
		if namespace != "" {
			s.namespace = namespace
		}
		if key != "" {
			s.key = key
		}
	}
}

// WithRoller sets the handler for roll intents.
func WithRoller(r Roller) Option {
	return func(s *Service) {
		s.roller = r
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service.
func NewService(reader LedgerReader, committer Committer, opts ...Option) *Service {
	s := &Service{
		reader:    reader,
		committer: committer,
		namespace: DefaultNamespace,
		key:       DefaultKey,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the attachment namespace.
func (s *Service) Namespace() string { return s.namespace }

// Key returns the attachment key.
func (s *Service) Key() string { return s.key }

// Snapshot returns the current ledger of documentRef.
func (s *Service) Snapshot(ctx context.Context, documentRef string) (ledger.Ledger, error) {
	return s.reader.ReadLedger(ctx, documentRef, s.namespace, s.key)
}

// Attach merges targets and patch into the document's ledger and commits it.
// Returns nil without reading or committing when targets is empty.
func (s *Service) Attach(ctx context.Context, documentRef string, targets []ledger.Target, patch ledger.MetaPatch) *delegate.Result {
	if len(targets) == 0 {
		return nil
	}

	current, failed := s.fetch(ctx, documentRef)
	if failed != nil {
		return failed
	}

	next, changed := ledger.Merge(current, targets, patch)
	if !changed {
		return nil
	}
	return s.commit(ctx, "attach", documentRef, next)
}

// DeleteOne removes ref from the document's ledger and commits it.
// Returns nil if the ledger has no record for ref.
func (s *Service) DeleteOne(ctx context.Context, documentRef string, ref ledger.EntityRef) *delegate.Result {
	current, failed := s.fetch(ctx, documentRef)
	if failed != nil {
		return failed
	}

	next, changed := ledger.Remove(current, ref)
	if !changed {
		s.logger.Debug("delete skipped: no such record",
			"document", documentRef,
			"entity", ref,
		)
		return nil
	}
	return s.commit(ctx, "delete", documentRef, next)
}

// ClearAll removes every record from the document's ledger, keeping its
// threshold and check kind, and commits it. Returns nil if the ledger is
// already empty.
func (s *Service) ClearAll(ctx context.Context, documentRef string) *delegate.Result {
	current, failed := s.fetch(ctx, documentRef)
	if failed != nil {
		return failed
	}

	next, changed := ledger.Clear(current)
	if !changed {
		s.logger.Debug("clear skipped: ledger empty", "document", documentRef)
		return nil
	}
	return s.commit(ctx, "clear", documentRef, next)
}

// fetch reads the current ledger. On failure it returns the Result the
// operation should report instead.
func (s *Service) fetch(ctx context.Context, documentRef string) (ledger.Ledger, *delegate.Result) {
	l, err := s.reader.ReadLedger(ctx, documentRef, s.namespace, s.key)
	if err == nil {
		return l, nil
	}

	reason := readFailureReason(err)
	s.logger.Warn("read ledger failed",
		"document", documentRef,
		"namespace", s.namespace,
		"key", s.key,
		"reason", reason,
		"error", err,
	)
	res := delegate.Fail(reason)
	return ledger.Ledger{}, &res
}

func (s *Service) commit(ctx context.Context, op, documentRef string, next ledger.Ledger) *delegate.Result {
	res := s.committer.Commit(ctx, documentRef, s.namespace, s.key, next)
	if !res.OK {
		s.logger.Warn("commit failed",
			"op", op,
			"document", documentRef,
			"reason", res.Reason,
			"retryable", res.Reason.Retryable(),
		)
	} else {
		s.logger.Debug("committed",
			"op", op,
			"document", documentRef,
			"records", next.Len(),
		)
	}
	return &res
}

func readFailureReason(err error) delegate.Reason {
	switch {
	case errors.Is(err, delegate.ErrDocumentNotFound):
		return delegate.ReasonNotFound
	case errors.Is(err, delegate.ErrUnreachable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return delegate.ReasonTransportFailure
	default:
		return delegate.ReasonInternalError
	}
}
