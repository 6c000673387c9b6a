package plan

import (
	"idv/internal/flow/record"
	dErrors "idv/pkg/domain-errors"
)

// Category names a group of fields that are collected and validated
// together. A category is satisfied only when every constituent field is
// populated.
type Category string

const (
	CategoryEmail         Category = "email"
	CategoryPhone         Category = "phone"
	CategoryName          Category = "name"
	CategoryDOB           Category = "dob"
	CategoryAddress       Category = "address"
	CategorySSN9          Category = "ssn9"
	CategorySSN4          Category = "ssn4"
	CategoryUSLegalStatus Category = "us_legal_status"
	CategoryNationality   Category = "nationality"
	CategoryCitizenships  Category = "citizenships"
)

// categoryFields is the single source of truth for category membership.
// Address line 2 is deliberately absent: it is optional and must not keep
// the address category unsatisfied.
var categoryFields = map[Category][]record.FieldID{
	CategoryEmail:         {record.FieldEmail},
	CategoryPhone:         {record.FieldPhoneNumber},
	CategoryName:          {record.FieldFirstName, record.FieldLastName},
	CategoryDOB:           {record.FieldDOB},
	CategoryAddress:       {record.FieldAddressLine1, record.FieldCity, record.FieldState, record.FieldZip, record.FieldCountry},
	CategorySSN9:          {record.FieldSSN9},
	CategorySSN4:          {record.FieldSSN4},
	CategoryUSLegalStatus: {record.FieldUSLegalStatus},
	CategoryNationality:   {record.FieldNationality},
	CategoryCitizenships:  {record.FieldCitizenships},
}

// Fields returns the constituent fields of a category. A requirement naming
// an unmapped category is a caller contract violation and fails fast.
func Fields(c Category) ([]record.FieldID, error) {
	fields, ok := categoryFields[c]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "no field mapping for category "+string(c))
	}
	return fields, nil
}

// Missing reports whether any constituent field of the category lacks a
// populated entry in the record. Any provenance counts as populated, not
// just a literal value: disabled and scrubbed fields silently satisfy.
func Missing(c Category, r *record.Record) (bool, error) {
	fields, err := Fields(c)
	if err != nil {
		return false, err
	}
	for _, f := range fields {
		e, ok := r.Get(f)
		if !ok || !e.Populated() {
			return true, nil
		}
	}
	return false, nil
}
