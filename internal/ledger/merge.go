package ledger

// Merge combines existing with targets and patch into a new ledger.
//
// The policy is fill-if-present, else-preserve:
//   - an existing record always takes the target's fresh display name
//   - its OutcomeValue is replaced only when the patch carries a finite number
//   - its OutcomeSuccess is replaced only when the patch carries a boolean
//   - a new record takes its outcome fields from the patch (nil if absent)
//   - Threshold and CheckKind come from the patch if set, else from existing;
//     a NaN or infinite threshold counts as unset since JSON cannot carry it
//
// Targets with an invalid ref are skipped. An empty targets slice is a no-op:
// Merge returns existing unchanged and false. existing is never mutated.
func Merge(existing Ledger, targets []Target, patch MetaPatch) (Ledger, bool) {
	if len(targets) == 0 {
		return existing, false
	}

	next := existing.Clone()
	if next.Records == nil {
		next.Records = []Record{}
	}
	idx := next.index()

	value, hasValue := patch.outcomeValue()

	for _, t := range targets {
		if !t.EntityRef.Valid() {
			continue
		}

		if i, ok := idx[t.EntityRef]; ok {
			rec := &next.Records[i]
			rec.DisplayName = t.DisplayName()
			if hasValue {
				rec.OutcomeValue = Float(value)
			}
			if patch.OutcomeSuccess != nil {
				rec.OutcomeSuccess = Bool(*patch.OutcomeSuccess)
			}
			continue
		}

		rec := Record{EntityRef: t.EntityRef, DisplayName: t.DisplayName()}
		if hasValue {
			rec.OutcomeValue = Float(value)
		}
		if patch.OutcomeSuccess != nil {
			rec.OutcomeSuccess = Bool(*patch.OutcomeSuccess)
		}
		idx[t.EntityRef] = len(next.Records)
		next.Records = append(next.Records, rec)
	}

	if patch.Threshold != nil && isFinite(*patch.Threshold) {
		next.Threshold = Float(*patch.Threshold)
	}
	if patch.CheckKind != nil {
		next.CheckKind = String(*patch.CheckKind)
	}
	next.SchemaVersion = SchemaVersion

	return next, true
}

// Remove returns a copy of l without the record for ref.
// Returns l and false if no such record exists.
func Remove(l Ledger, ref EntityRef) (Ledger, bool) {
	i, ok := l.index()[ref]
	if !ok {
		return l, false
	}
	next := l.Clone()
	next.Records = append(next.Records[:i:i], next.Records[i+1:]...)
	return next, true
}

// Clear returns a copy of l with the same metadata and no records.
// Returns l and false if l is already empty.
func Clear(l Ledger) (Ledger, bool) {
	if l.IsEmpty() {
		return l, false
	}
	next := l.Clone()
	next.Records = []Record{}
	return next, true
}

// SucceededRefs returns the refs whose outcome is a known success,
// in insertion order.
func SucceededRefs(l Ledger) []EntityRef {
	var refs []EntityRef
	for _, r := range l.Records {
		if r.OutcomeSuccess != nil && *r.OutcomeSuccess {
			refs = append(refs, r.EntityRef)
		}
	}
	return refs
}
