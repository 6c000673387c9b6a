package plan

import "idv/internal/flow/record"

// ScreenID names one UI screen the engine can route to. The identification
// and challenge screens are owned by the identification sub-flow machine;
// the rest are requirement-driven collection screens.
type ScreenID string

const (
	ScreenEmailIdentification     ScreenID = "emailIdentification"
	ScreenPhoneIdentification     ScreenID = "phoneIdentification"
	ScreenChallengeSelectOrPasskey ScreenID = "challengeSelectOrPasskey"
	ScreenSMSChallenge            ScreenID = "smsChallenge"
	ScreenEmailChallenge          ScreenID = "emailChallenge"
	ScreenPasskeyChallenge        ScreenID = "passkeyChallenge"
	ScreenBasicInformation        ScreenID = "basicInformation"
	ScreenResidentialAddress      ScreenID = "residentialAddress"
	ScreenUSLegalStatus           ScreenID = "usLegalStatus"
	ScreenSSN                     ScreenID = "ssn"
	ScreenConfirm                 ScreenID = "confirm"
)

// Variant selects which kind of flow is running. A small number of
// predicates branch on it.
type Variant string

const (
	VariantAuth               Variant = "auth"
	VariantUpdateLoginMethods Variant = "update_login_methods"
	VariantVerify             Variant = "verify"
)

// Env is the input to screen predicates. Predicates read the live working
// record, not the initial snapshot, because an upstream screen in the same
// flow can change the answer (country edits gate the SSN screens).
type Env struct {
	Record         *record.Record
	PasskeyCapable bool
	Variant        Variant
}

// Screen declares what one collection screen needs. Requirement resolution
// and forward navigation both consult the same declaration.
type Screen struct {
	ID          ScreenID
	Categories  []Category
	AlwaysShown bool

	// Predicate gates applicability against the live record at decision
	// time. Nil means always applicable.
	Predicate func(Env) bool
}

// usAndTerritories are the country codes that trigger US-specific screens.
var usAndTerritories = map[string]bool{
	"US": true,
	"AS": true,
	"GU": true,
	"MP": true,
	"PR": true,
	"VI": true,
}

func countryIsUS(env Env) bool {
	country := env.Record.Value(record.FieldCountry).Scalar()
	// An unknown country keeps US-specific screens in play until the user
	// answers; skipping prematurely would drop required data.
	if country == "" {
		return true
	}
	return usAndTerritories[country]
}

// master is the fixed ordering of requirement-driven screens. Both
// navigation directions walk this ordering; it must never be re-sorted.
var master = []Screen{
	{ID: ScreenEmailIdentification, Categories: []Category{CategoryEmail}},
	{ID: ScreenPhoneIdentification, Categories: []Category{CategoryPhone}},
	{ID: ScreenBasicInformation, Categories: []Category{CategoryName, CategoryDOB}},
	{ID: ScreenResidentialAddress, Categories: []Category{CategoryAddress}},
	{ID: ScreenUSLegalStatus, Categories: []Category{CategoryUSLegalStatus, CategoryNationality, CategoryCitizenships}, Predicate: countryIsUS},
	{ID: ScreenSSN, Categories: []Category{CategorySSN9, CategorySSN4}, Predicate: countryIsUS},
	{ID: ScreenConfirm, AlwaysShown: true},
}

// MasterOrdering exposes a copy of the fixed screen ordering for tests.
func MasterOrdering() []Screen {
	out := make([]Screen, len(master))
	copy(out, master)
	return out
}
