package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// FlowID identifies one live onboarding flow instance.
type FlowID uuid.UUID

// PartyID identifies the person being verified, once identification succeeds.
type PartyID uuid.UUID

// ChallengeToken is the opaque server-issued handle for a pending challenge.
type ChallengeToken string

func (id FlowID) String() string  { return uuid.UUID(id).String() }
func (id PartyID) String() string { return uuid.UUID(id).String() }

func (id FlowID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id PartyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (t ChallengeToken) IsNil() bool { return t == "" }

// NewFlowID returns a fresh random flow identifier.
func NewFlowID() FlowID {
	return FlowID(uuid.New())
}

// NewPartyID returns a fresh random party identifier.
func NewPartyID() PartyID {
	return PartyID(uuid.New())
}

// ParseFlowID validates and returns a FlowID. The nil UUID is rejected so a
// zero value can never masquerade as a real flow.
func ParseFlowID(s string) (FlowID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return FlowID{}, fmt.Errorf("invalid flow ID %q: %w", s, err)
	}
	if u == uuid.Nil {
		return FlowID{}, fmt.Errorf("flow ID must not be nil UUID")
	}
	return FlowID(u), nil
}

// ParsePartyID validates and returns a PartyID.
func ParsePartyID(s string) (PartyID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PartyID{}, fmt.Errorf("invalid party ID %q: %w", s, err)
	}
	if u == uuid.Nil {
		return PartyID{}, fmt.Errorf("party ID must not be nil UUID")
	}
	return PartyID(u), nil
}
