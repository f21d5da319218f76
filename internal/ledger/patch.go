package ledger

import (
	"bytes"
	"encoding/json"
	"math"
)

// Target is one participant named by an event source.
type Target struct {
	EntityRef EntityRef `json:"entityRef" yaml:"ref"`

	// TokenName is the name the participant is shown under in the session.
	TokenName string `json:"tokenName,omitempty" yaml:"token_name,omitempty"`

	// EntityName is the owning entity's own name, used when TokenName is empty.
	EntityName string `json:"entityName,omitempty" yaml:"entity_name,omitempty"`
}

// DisplayName returns the freshest human-readable label for the target.
func (t Target) DisplayName() string {
	if t.TokenName != "" {
		return t.TokenName
	}
	return t.EntityName
}

// MetaPatch carries the fields an event source knows about. Nil fields are
// absent and leave the corresponding ledger or record value untouched.
type MetaPatch struct {
	Threshold      *float64 `json:"threshold,omitempty"`
	CheckKind      *string  `json:"checkKind,omitempty"`
	OutcomeValue   *float64 `json:"outcomeValue,omitempty"`
	OutcomeSuccess *bool    `json:"outcomeSuccess,omitempty"`
}

// UnmarshalJSON decodes a patch with strict field typing: an outcomeValue
// that is not a finite number, an outcomeSuccess that is not a boolean, a
// threshold that is not a number or a checkKind that is not a string are
// treated as absent rather than rejected.
func (p *MetaPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = MetaPatch{
		Threshold:      finiteNumber(raw["threshold"]),
		CheckKind:      stringValue(raw["checkKind"]),
		OutcomeValue:   finiteNumber(raw["outcomeValue"]),
		OutcomeSuccess: boolValue(raw["outcomeSuccess"]),
	}
	return nil
}

// outcomeValue returns the patch outcome if it is a finite number.
func (p MetaPatch) outcomeValue() (float64, bool) {
	if p.OutcomeValue == nil || !isFinite(*p.OutcomeValue) {
		return 0, false
	}
	return *p.OutcomeValue, true
}

// Float returns a pointer to v. Handy for building patches.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// finiteNumber decodes raw as a finite JSON number.
// Strings, booleans, null and out-of-range numbers yield nil.
func finiteNumber(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || !isFinite(v) {
		return nil
	}
	return &v
}

// boolValue decodes raw as a JSON boolean; anything else yields nil.
func boolValue(raw json.RawMessage) *bool {
	if isNull(raw) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}

// stringValue decodes raw as a JSON string; anything else yields nil.
func stringValue(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}
