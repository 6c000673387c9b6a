package record

import (
	"sort"
	"time"

	dErrors "idv/pkg/domain-errors"
)

// Legal status values that imply a nationality must accompany them.
const (
	LegalStatusCitizen           = "citizen"
	LegalStatusPermanentResident = "permanent_resident"
	LegalStatusVisa              = "visa"
)

// dateFields are normalized to ISO-8601 dates before transmission.
var dateFields = map[FieldID]bool{
	FieldDOB: true,
}

// acceptedDateLayouts are the input shapes the UI layer is allowed to hand
// us. Output is always time.DateOnly.
var acceptedDateLayouts = []string{
	time.DateOnly,
	"01/02/2006",
	time.RFC3339,
}

// BuildPayload produces the outbound submission payload: every field that is
// dirty or bootstrap, date-like values normalized to ISO format. Fields that
// are merely decrypted or scrubbed never appear; re-submitting an unedited
// screen yields an empty payload and therefore no network write.
func (r *Record) BuildPayload() (map[FieldID]Value, error) {
	payload := make(map[FieldID]Value)
	for id, e := range r.entries {
		if !e.Submittable() {
			continue
		}
		v := e.Value
		if dateFields[id] && !v.IsEmpty() {
			iso, err := normalizeDate(v.Scalar())
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid date value for "+string(id))
			}
			v = String(iso)
		}
		payload[id] = v
	}
	if err := r.checkPayloadInvariants(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// checkPayloadInvariants enforces cross-field contracts the backend relies
// on. Violations are configuration errors: a correctly configured deployment
// never produces them at runtime.
func (r *Record) checkPayloadInvariants(payload map[FieldID]Value) error {
	status, ok := payload[FieldUSLegalStatus]
	if !ok {
		return nil
	}
	switch status.Scalar() {
	case LegalStatusPermanentResident, LegalStatusVisa:
		if r.Value(FieldNationality).IsEmpty() {
			return dErrors.New(dErrors.CodeInvariantViolation,
				"legal status "+status.Scalar()+" requires a nationality")
		}
	}
	if status.Scalar() == LegalStatusVisa && r.Value(FieldVisaKind).IsEmpty() {
		return dErrors.New(dErrors.CodeInvariantViolation, "visa legal status requires a visa kind")
	}
	return nil
}

func normalizeDate(raw string) (string, error) {
	var lastErr error
	for _, layout := range acceptedDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.Format(time.DateOnly), nil
		}
		lastErr = err
	}
	return "", lastErr
}

// PayloadFieldIDs returns the payload's keys sorted for deterministic
// logging and tests.
func PayloadFieldIDs(payload map[FieldID]Value) []FieldID {
	out := make([]FieldID, 0, len(payload))
	for id := range payload {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
