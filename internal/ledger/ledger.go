package ledger

import "strings"

// SchemaVersion is the current version of the persisted ledger shape.
const SchemaVersion = 1

// EntityRef is an opaque, globally unique identifier for a participant's
// owning entity or for a host document. Equality is string equality.
type EntityRef string

// Valid reports whether the ref can key a ledger record.
func (r EntityRef) Valid() bool {
	return strings.TrimSpace(string(r)) != ""
}

// Record is one participant row of the ledger.
type Record struct {
	EntityRef   EntityRef `json:"entityRef"`
	DisplayName string    `json:"displayName"`

	// OutcomeValue is the numeric result of a resolved check.
	// Nil means the check has not been resolved for this participant.
	OutcomeValue *float64 `json:"outcomeValue"`

	// OutcomeSuccess reports whether the outcome met the threshold.
	// Nil means unknown, which is distinct from false.
	OutcomeSuccess *bool `json:"outcomeSuccess"`
}

// Resolved reports whether the record carries an outcome value.
func (r Record) Resolved() bool {
	return r.OutcomeValue != nil
}

func (r Record) clone() Record {
	out := Record{EntityRef: r.EntityRef, DisplayName: r.DisplayName}
	if r.OutcomeValue != nil {
		v := *r.OutcomeValue
		out.OutcomeValue = &v
	}
	if r.OutcomeSuccess != nil {
		b := *r.OutcomeSuccess
		out.OutcomeSuccess = &b
	}
	return out
}

// Ledger is the mergeable payload attached to one document.
//
// INVARIANTS:
//   - Every record's EntityRef is Valid
//   - No two records share an EntityRef
//   - Records is never nil on values produced by this package
type Ledger struct {
	SchemaVersion int      `json:"schemaVersion"`
	Threshold     *float64 `json:"threshold"`
	CheckKind     *string  `json:"checkKind"`
	Records       []Record `json:"records"`
}

// Empty returns the ledger of a document that has no attachment yet.
func Empty() Ledger {
	return Ledger{SchemaVersion: SchemaVersion, Records: []Record{}}
}

// Len returns the number of records.
func (l Ledger) Len() int {
	return len(l.Records)
}

// IsEmpty reports whether the ledger has no records. Metadata is ignored.
func (l Ledger) IsEmpty() bool {
	return len(l.Records) == 0
}

// Get returns the record for ref.
func (l Ledger) Get(ref EntityRef) (Record, bool) {
	for _, r := range l.Records {
		if r.EntityRef == ref {
			return r, true
		}
	}
	return Record{}, false
}

// Refs returns record refs in insertion order.
func (l Ledger) Refs() []EntityRef {
	refs := make([]EntityRef, len(l.Records))
	for i, r := range l.Records {
		refs[i] = r.EntityRef
	}
	return refs
}

// Clone returns a deep copy. The result never shares pointers with l.
func (l Ledger) Clone() Ledger {
	out := Ledger{
		SchemaVersion: l.SchemaVersion,
		Records:       make([]Record, len(l.Records)),
	}
	if out.SchemaVersion == 0 {
		out.SchemaVersion = SchemaVersion
	}
	if l.Threshold != nil {
		v := *l.Threshold
		out.Threshold = &v
	}
	if l.CheckKind != nil {
		s := *l.CheckKind
		out.CheckKind = &s
	}
	for i, r := range l.Records {
		out.Records[i] = r.clone()
	}
	return out
}

// index maps each ref to its position in Records.
func (l Ledger) index() map[EntityRef]int {
	idx := make(map[EntityRef]int, len(l.Records))
	for i, r := range l.Records {
		idx[r.EntityRef] = i
	}
	return idx
}
