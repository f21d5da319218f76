package tray

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
)

// IntentKind names what the presentation layer asked for.
type IntentKind string

const (
	IntentRoll   IntentKind = "roll"
	IntentDelete IntentKind = "delete"
	IntentClear  IntentKind = "clear"
)

// Intent is a user action emitted by a presentation layer.
// EntityRef is unused for IntentClear.
type Intent struct {
	Kind      IntentKind       `json:"kind"`
	EntityRef ledger.EntityRef `json:"entityRef,omitempty"`
}

// Roller performs a check on behalf of one participant. Rolling does not
// mutate the ledger; the resulting CheckResolved event does.
type Roller interface {
	RequestRoll(ctx context.Context, documentRef string, ref ledger.EntityRef, threshold *float64, checkKind string) error
}

// ErrNoRoller is returned for roll intents when no Roller is configured.
var ErrNoRoller = errors.New("no roller configured")

// ErrNoCheckKind is returned for roll intents on a ledger without a check kind.
var ErrNoCheckKind = errors.New("ledger has no check kind")

// HandleIntent routes a presentation intent.
//
// Delete and clear intents run DeleteOne and ClearAll and return their
// result. Roll intents return a nil result and an error if the roll could
// not be requested.
func (s *Service) HandleIntent(ctx context.Context, documentRef string, in Intent) (*delegate.Result, error) {
	switch in.Kind {
	case IntentDelete:
		return s.DeleteOne(ctx, documentRef, in.EntityRef), nil
	case IntentClear:
		return s.ClearAll(ctx, documentRef), nil
	case IntentRoll:
		return nil, s.roll(ctx, documentRef, in.EntityRef)
	default:
		return nil, fmt.Errorf("unknown intent %q", in.Kind)
	}
}

func (s *Service) roll(ctx context.Context, documentRef string, ref ledger.EntityRef) error {
	if s.roller == nil {
		return ErrNoRoller
	}

	current, err := s.Snapshot(ctx, documentRef)
	if err != nil {
		return fmt.Errorf("roll for %s: %w", ref, err)
	}
	if current.CheckKind == nil || *current.CheckKind == "" {
		s.logger.Warn("roll refused: no check kind", "document", documentRef, "entity", ref)
		return ErrNoCheckKind
	}

	if err := s.roller.RequestRoll(ctx, documentRef, ref, current.Threshold, *current.CheckKind); err != nil {
		return fmt.Errorf("roll for %s: %w", ref, err)
	}
	return nil
}

// CanClear reports whether a "clear all" action should be offered for l.
func CanClear(l ledger.Ledger) bool {
	return !l.IsEmpty()
}
