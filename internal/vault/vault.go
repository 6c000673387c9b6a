package vault

import (
	"context"
	"errors"

	"idv/internal/flow/record"
	"idv/internal/identify"
	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/sentinel"
)

// Result is what a decrypt call yields: plaintext values keyed like the
// data record, plus the identifiers of entries that exist in storage but
// were withheld (scrubbed) pending an explicit reveal.
type Result struct {
	Values   map[record.FieldID]record.Value
	Scrubbed []record.FieldID
}

// Decrypter is the engine's boundary for retrieving a returning party's
// stored field values.
type Decrypter interface {
	Decrypt(ctx context.Context, authToken string, fields []record.FieldID) (*Result, error)
}

// Store holds sealed field entries per party.
//
// Error Contract:
// - Return ErrNotFound when the party has no stored entries
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
type Store interface {
	Load(ctx context.Context, partyID id.PartyID, fields []record.FieldID) (*Result, error)
	Save(ctx context.Context, partyID id.PartyID, fieldID record.FieldID, value record.Value, scrubbed bool) error
}

// Service validates the caller's auth token and serves decrypt requests
// from the store. It is the concrete Decrypter the HTTP host wires in.
type Service struct {
	store  Store
	tokens *identify.TokenService
}

// NewService constructs a vault service.
func NewService(store Store, tokens *identify.TokenService) (*Service, error) {
	if store == nil {
		return nil, errors.New("vault store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	return &Service{store: store, tokens: tokens}, nil
}

// Decrypt resolves the auth token to a party and loads the requested
// fields. A party with nothing stored yields an empty result, not an
// error; first-time users are the common case.
func (s *Service) Decrypt(ctx context.Context, authToken string, fields []record.FieldID) (*Result, error) {
	claims, err := s.tokens.Validate(authToken)
	if err != nil {
		return nil, err
	}
	partyID, err := id.ParsePartyID(claims.PartyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "auth token carries an invalid party ID")
	}
	result, err := s.store.Load(ctx, partyID, fields)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &Result{Values: map[record.FieldID]record.Value{}}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vault entries")
	}
	return result, nil
}
