package tray

import (
	"context"
	"math"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/ledger"
)

// CheckInitiated is emitted when a check is requested against targets,
// before anyone has rolled.
type CheckInitiated struct {
	DocumentRef string
	Targets     []ledger.Target
	Threshold   *float64
	CheckKind   *string
}

// CheckResolved is emitted when one participant's check produced a total.
type CheckResolved struct {
	DocumentRef string
	Target      ledger.Target
	Total       *float64
	Threshold   *float64
	CheckKind   *string

	// Success is the source's own verdict, if it had one.
	Success *bool
}

// OnCheckInitiated records bare participants and the check's metadata.
// Returns nil when the event names no targets.
func (s *Service) OnCheckInitiated(ctx context.Context, ev CheckInitiated) *delegate.Result {
	if len(ev.Targets) == 0 {
		return nil
	}
	return s.Attach(ctx, ev.DocumentRef, ev.Targets, ledger.MetaPatch{
		Threshold: ev.Threshold,
		CheckKind: ev.CheckKind,
	})
}

// OnCheckResolved records one participant's outcome.
//
// Events without a finite total are ignored. When the source gave no
// verdict, success is derived as total >= threshold if the threshold is
// known, and left unknown otherwise.
func (s *Service) OnCheckResolved(ctx context.Context, ev CheckResolved) *delegate.Result {
	if ev.Total == nil || math.IsNaN(*ev.Total) || math.IsInf(*ev.Total, 0) {
		return nil
	}

	success := ev.Success
	if success == nil && ev.Threshold != nil {
		success = ledger.Bool(*ev.Total >= *ev.Threshold)
	}

	return s.Attach(ctx, ev.DocumentRef, []ledger.Target{ev.Target}, ledger.MetaPatch{
		Threshold:      ev.Threshold,
		CheckKind:      ev.CheckKind,
		OutcomeValue:   ev.Total,
		OutcomeSuccess: success,
	})
}
