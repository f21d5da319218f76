package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedSchema is returned by Decode for ledgers written by a newer
// schema than this package understands.
var ErrUnsupportedSchema = errors.New("unsupported ledger schema version")

// MarshalJSON writes the persisted wire form. Records is always an array
// (never null) and schemaVersion is always present.
func (l Ledger) MarshalJSON() ([]byte, error) {
	type wire Ledger
	w := wire(l)
	if w.SchemaVersion == 0 {
		w.SchemaVersion = SchemaVersion
	}
	if w.Records == nil {
		w.Records = []Record{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form with the normalisation rules of Decode.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*l = decoded
	return nil
}

// Encode returns the persisted wire form of l.
func Encode(l Ledger) ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}

type wireLedger struct {
	SchemaVersion json.RawMessage   `json:"schemaVersion"`
	Threshold     json.RawMessage   `json:"threshold"`
	CheckKind     json.RawMessage   `json:"checkKind"`
	Records       []json.RawMessage `json:"records"`
}

type wireRecord struct {
	EntityRef      json.RawMessage `json:"entityRef"`
	DisplayName    json.RawMessage `json:"displayName"`
	OutcomeValue   json.RawMessage `json:"outcomeValue"`
	OutcomeSuccess json.RawMessage `json:"outcomeSuccess"`
}

// Decode parses a persisted ledger. A nil or JSON-null input yields Empty.
//
// Decoding is tolerant of values written by older or looser writers:
//   - a missing schemaVersion is treated as the current version
//   - records without a valid string entityRef are dropped
//   - duplicate refs collapse into the first position, holding the last value
//   - outcome and metadata fields of the wrong type decode as nil
//
// A schemaVersion newer than SchemaVersion returns ErrUnsupportedSchema.
func Decode(data []byte) (Ledger, error) {
	if isNull(data) {
		return Empty(), nil
	}

	var w wireLedger
	if err := json.Unmarshal(data, &w); err != nil {
		return Ledger{}, fmt.Errorf("decode ledger: %w", err)
	}

	if v := finiteNumber(w.SchemaVersion); v != nil && *v > SchemaVersion {
		return Ledger{}, fmt.Errorf("decode ledger: version %v: %w", *v, ErrUnsupportedSchema)
	}

	l := Empty()
	l.Threshold = finiteNumber(w.Threshold)
	l.CheckKind = stringValue(w.CheckKind)

	idx := make(map[EntityRef]int, len(w.Records))
	for i, raw := range w.Records {
		var wr wireRecord
		if err := json.Unmarshal(raw, &wr); err != nil {
			return Ledger{}, fmt.Errorf("decode ledger: records[%d]: %w", i, err)
		}
		ref := stringValue(wr.EntityRef)
		if ref == nil || !EntityRef(*ref).Valid() {
			continue
		}
		rec := Record{
			EntityRef:      EntityRef(*ref),
			OutcomeValue:   finiteNumber(wr.OutcomeValue),
			OutcomeSuccess: boolValue(wr.OutcomeSuccess),
		}
		if name := stringValue(wr.DisplayName); name != nil {
			rec.DisplayName = *name
		}
		if pos, dup := idx[rec.EntityRef]; dup {
			l.Records[pos] = rec
			continue
		}
		idx[rec.EntityRef] = len(l.Records)
		l.Records = append(l.Records, rec)
	}

	return l, nil
}
