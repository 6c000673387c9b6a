package record

// Entry tracks one field's value together with its provenance. At most one of
// Bootstrap and Decrypted is true at a time; a user edit clears both and sets
// Dirty instead.
type Entry struct {
	Value Value

	// Bootstrap marks a value pre-filled from an external hint and not yet
	// edited.
	Bootstrap bool

	// Decrypted marks a value retrieved from prior encrypted storage and not
	// yet edited.
	Decrypted bool

	// Disabled marks a field immutable for this session (verified upstream).
	Disabled bool

	// Scrubbed marks a field that exists in storage but whose value was
	// withheld pending an explicit reveal.
	Scrubbed bool

	// Dirty marks a field whose current value differs from the value known at
	// screen entry. Only dirty or bootstrap fields are submitted.
	Dirty bool
}

// Populated reports whether the field counts as "already handled" for screen
// requirements. Any provenance flag satisfies, value or not: a disabled or
// scrubbed field must not cause its screen to be asked again.
func (e Entry) Populated() bool {
	return !e.Value.IsEmpty() || e.Bootstrap || e.Decrypted || e.Disabled || e.Scrubbed
}

// Submittable reports whether the field belongs in an outbound payload.
// Decrypted-but-unedited and scrubbed fields are never re-transmitted.
func (e Entry) Submittable() bool {
	return e.Dirty || e.Bootstrap
}

// Record maps field identifiers to entries. It is not safe for concurrent
// mutation; the flow controller serializes all access.
type Record struct {
	entries map[FieldID]Entry
}

// New returns an empty record.
func New() *Record {
	return &Record{entries: make(map[FieldID]Entry)}
}

// FromBootstrap builds a record from caller-supplied hints. Empty values are
// skipped so a blank hint cannot mark a field handled.
func FromBootstrap(values map[FieldID]Value) *Record {
	r := New()
	for id, v := range values {
		if v.IsEmpty() {
			continue
		}
		r.entries[id] = Entry{Value: v, Bootstrap: true}
	}
	return r
}

// Get returns the entry for a field, if present.
func (r *Record) Get(id FieldID) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Value returns the field's value, zero if absent.
func (r *Record) Value(id FieldID) Value {
	return r.entries[id].Value
}

// Len returns the number of entries.
func (r *Record) Len() int {
	return len(r.entries)
}

// FieldIDs returns the keys currently present, in no particular order.
func (r *Record) FieldIDs() []FieldID {
	out := make([]FieldID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	return out
}

// Set overwrites an entry wholesale. Intended for construction and tests;
// user edits go through Merge.
func (r *Record) Set(id FieldID, e Entry) {
	r.entries[id] = e
}

// ApplyDecrypted merges values retrieved from encrypted storage into the
// record. A conflicting bootstrap value wins and the decrypted value is
// discarded: the caller's hint is more authoritative than stale stored
// state. Scrubbed identifiers mark fields that exist but were withheld.
func (r *Record) ApplyDecrypted(values map[FieldID]Value, scrubbed []FieldID) {
	for id, v := range values {
		if v.IsEmpty() {
			continue
		}
		if existing, ok := r.entries[id]; ok && existing.Bootstrap {
			continue
		}
		r.entries[id] = Entry{Value: v, Decrypted: true}
	}
	for _, id := range scrubbed {
		if existing, ok := r.entries[id]; ok && existing.Populated() {
			continue
		}
		r.entries[id] = Entry{Scrubbed: true}
	}
}

// ApplyDisabled marks fields immutable for this session.
func (r *Record) ApplyDisabled(ids ...FieldID) {
	for _, id := range ids {
		e := r.entries[id]
		e.Disabled = true
		r.entries[id] = e
	}
}

// Merge applies one user-entered value. If the value differs from the stored
// one, provenance flags drop and the entry turns dirty. If it is unchanged,
// all flags carry over: an earlier dirty mark survives a no-op resubmit, and
// bootstrap/decrypted provenance is not lost just because the user confirmed
// the same value.
func (r *Record) Merge(id FieldID, incoming Value) {
	existing := r.entries[id]
	if incoming.Equal(existing.Value) {
		return
	}
	r.entries[id] = Entry{
		Value:    incoming,
		Disabled: existing.Disabled,
		Dirty:    true,
	}
}

// MergeAll applies a screen submission field by field.
func (r *Record) MergeAll(values map[FieldID]Value) {
	for id, v := range values {
		r.Merge(id, v)
	}
}

// MarkSubmitted clears the submission-eligibility flags after the backend
// has acknowledged a write, so an unedited re-submit sends nothing.
func (r *Record) MarkSubmitted(ids ...FieldID) {
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok {
			continue
		}
		e.Dirty = false
		e.Bootstrap = false
		r.entries[id] = e
	}
}

// Snapshot returns a deep copy. The flow captures one immediately after the
// startup decrypt merge; backward navigation consults only that copy.
func (r *Record) Snapshot() *Record {
	out := New()
	for id, e := range r.entries {
		e.Value = copyValue(e.Value)
		out.entries[id] = e
	}
	return out
}

func copyValue(v Value) Value {
	if !v.isList {
		return v
	}
	items := make([]string, len(v.list))
	copy(items, v.list)
	return Value{list: items, isList: true}
}
