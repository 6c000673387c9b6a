package identify

import (
	"context"

	"idv/internal/challenge"
	id "idv/pkg/domain"
)

// ContactKind distinguishes the two identifying contact methods.
type ContactKind string

const (
	ContactEmail ContactKind = "email"
	ContactPhone ContactKind = "phone"
)

// Party is the backend's descriptor of a located user.
type Party struct {
	ID id.PartyID

	// AvailableKinds lists the challenge kinds this party can satisfy.
	AvailableKinds []challenge.Kind

	// MatchedVia records which identifiers actually located the party. A
	// contact we merely hold but did not match on must be displayed
	// redacted, because showing the raw value would imply a confirmation
	// that never happened.
	MatchedVia map[ContactKind]bool

	// Redacted previews returned by the backend, e.g. "a•••@b.com".
	RedactedEmail string
	RedactedPhone string
}

// SupportsPasskey reports whether the party can satisfy a passkey challenge.
func (p *Party) SupportsPasskey() bool {
	for _, k := range p.AvailableKinds {
		if k == challenge.KindPasskey {
			return true
		}
	}
	return false
}

// Query carries exactly one identifier to the backend lookup.
type Query struct {
	Email     string
	Phone     string
	AuthToken string
}

// Locator is the backend boundary for party lookup. A lookup that finds
// nobody returns sentinel.ErrNotFound; a success with no usable party is a
// protocol violation the caller treats as a dead end.
type Locator interface {
	Locate(ctx context.Context, q Query) (*Party, error)
}

// Context is the identification sub-flow's data model: the contact values
// known so far, the values last used to search, and the party found.
type Context struct {
	Email string
	Phone string

	// lastSearched values detect whether a re-submit actually changed the
	// contact. An unchanged re-submit must not invalidate challenge state.
	lastSearchedEmail string
	lastSearchedPhone string

	Party *Party

	// PhoneConfirmed marks a phone number independently confirmed (e.g. via
	// a completed SMS challenge); re-identifying by a new email must not
	// discard it.
	PhoneConfirmed bool

	// AuthToken gates subsequent steps once a challenge is verified.
	AuthToken string
}

// DisplayEmail returns the value safe to show for the email field: raw when
// the party was actually located via email (or nobody was located yet),
// redacted otherwise.
func (c *Context) DisplayEmail() string {
	if c.Party != nil && !c.Party.MatchedVia[ContactEmail] && c.Party.RedactedEmail != "" {
		return c.Party.RedactedEmail
	}
	return c.Email
}

// DisplayPhone is the phone counterpart of DisplayEmail.
func (c *Context) DisplayPhone() string {
	if c.Party != nil && !c.Party.MatchedVia[ContactPhone] && c.Party.RedactedPhone != "" {
		return c.Party.RedactedPhone
	}
	return c.Phone
}
