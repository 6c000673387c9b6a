package record

import (
	"sort"

	stringsutil "idv/pkg/platform/strings"
)

// FieldID names one logical data item collected during onboarding. The
// identifiers double as backend payload keys, so they must stay stable.
type FieldID string

const (
	FieldEmail         FieldID = "id.email"
	FieldPhoneNumber   FieldID = "id.phone_number"
	FieldFirstName     FieldID = "id.first_name"
	FieldLastName      FieldID = "id.last_name"
	FieldDOB           FieldID = "id.dob"
	FieldAddressLine1  FieldID = "id.address_line1"
	FieldAddressLine2  FieldID = "id.address_line2"
	FieldCity          FieldID = "id.city"
	FieldState         FieldID = "id.state"
	FieldZip           FieldID = "id.zip"
	FieldCountry       FieldID = "id.country"
	FieldSSN9          FieldID = "id.ssn9"
	FieldSSN4          FieldID = "id.ssn4"
	FieldUSLegalStatus FieldID = "id.us_legal_status"
	FieldNationality   FieldID = "id.nationality"
	FieldCitizenships  FieldID = "id.citizenships"
	FieldVisaKind      FieldID = "id.visa_kind"
)

// Value is the wire value of a field: a scalar string or a string list
// (citizenships). The zero Value means "no value".
type Value struct {
	scalar string
	list   []string
	isList bool
}

// String wraps a scalar value.
func String(s string) Value {
	return Value{scalar: s}
}

// List wraps a list value. Items are trimmed and deduplicated; order is not
// significant for equality.
func List(items ...string) Value {
	return Value{list: stringsutil.DedupeAndTrim(items), isList: true}
}

// IsEmpty reports whether the value carries no data. An empty string and an
// empty list both count as no data.
func (v Value) IsEmpty() bool {
	if v.isList {
		return len(v.list) == 0
	}
	return v.scalar == ""
}

// Scalar returns the scalar form, empty for list values.
func (v Value) Scalar() string {
	return v.scalar
}

// Items returns a copy of the list form, nil for scalar values.
func (v Value) Items() []string {
	if len(v.list) == 0 {
		return nil
	}
	out := make([]string, len(v.list))
	copy(out, v.list)
	return out
}

// IsList reports whether the value is list-shaped.
func (v Value) IsList() bool {
	return v.isList
}

// Equal compares two values. Absent and empty are the same thing, so
// clearing a field that never had a value is not a change. List values
// compare as sets: order and duplicates do not matter.
func (v Value) Equal(o Value) bool {
	if v.IsEmpty() && o.IsEmpty() {
		return true
	}
	if v.isList != o.isList {
		return false
	}
	if !v.isList {
		return v.scalar == o.scalar
	}
	return sameSet(v.list, o.list)
}

func sameSet(a, b []string) bool {
	as := dedupeSorted(a)
	bs := dedupeSorted(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func dedupeSorted(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i == 0 || s != out[i-1] {
			out[n] = s
			n++
		}
	}
	return out[:n]
}
