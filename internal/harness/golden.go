package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/savetray/internal/ledger"
)

// TraceSnapshot captures a scenario's trace and final ledgers.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Trace        []TraceEvent   `json:"trace"`
	Ledgers      map[string]any `json:"ledgers"`
}

// toCanonicalMap converts a TraceSnapshot to generic values for canonical
// JSON, since ledger.MarshalCanonical only handles primitives, slices and maps.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		refs := make([]any, len(event.Refs))
		for j, ref := range event.Refs {
			refs[j] = ref
		}
		eventMap := map[string]any{
			"step":    event.Step,
			"op":      event.Op,
			"outcome": event.Outcome,
			"refs":    refs,
			"seq":     event.Seq,
		}
		if event.Document != "" {
			eventMap["document"] = event.Document
		}
		if event.Reason != "" {
			eventMap["reason"] = event.Reason
		}
		traceList[i] = eventMap
	}

	ledgers := make(map[string]any, len(s.Ledgers))
	for ref, l := range s.Ledgers {
		ledgers[ref] = l
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"ledgers":       ledgers,
	}
}

// RunWithGolden executes a scenario and compares its trace and final
// ledgers against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Ledgers:      result.Ledgers,
	}

	data, err := ledger.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
