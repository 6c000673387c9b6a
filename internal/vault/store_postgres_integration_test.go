//go:build integration

package vault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"idv/internal/flow/record"
	"idv/internal/vault"
	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
	"idv/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *vault.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())

	_, err := s.pg.DB.Exec(`
		CREATE TABLE IF NOT EXISTS vault_entries (
			party_id  UUID        NOT NULL,
			field_id  TEXT        NOT NULL,
			value     JSONB,
			scrubbed  BOOLEAN     NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (party_id, field_id)
		)`)
	s.Require().NoError(err)

	s.store = vault.NewPostgresStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.Exec(`TRUNCATE vault_entries`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestSaveLoadRoundTrip() {
	ctx := context.Background()
	partyID := id.NewPartyID()

	s.Require().NoError(s.store.Save(ctx, partyID, record.FieldFirstName, record.String("Jane"), false))
	s.Require().NoError(s.store.Save(ctx, partyID, record.FieldCitizenships, record.List("US", "CA"), false))
	s.Require().NoError(s.store.Save(ctx, partyID, record.FieldSSN9, record.String("123456789"), true))

	result, err := s.store.Load(ctx, partyID, []record.FieldID{
		record.FieldFirstName, record.FieldCitizenships, record.FieldSSN9,
	})
	s.Require().NoError(err)

	s.Equal("Jane", result.Values[record.FieldFirstName].Scalar())
	s.ElementsMatch([]string{"US", "CA"}, result.Values[record.FieldCitizenships].Items())
	s.NotContains(result.Values, record.FieldSSN9, "scrubbed values are withheld")
	s.Equal([]record.FieldID{record.FieldSSN9}, result.Scrubbed)
}

func (s *PostgresStoreSuite) TestSaveUpserts() {
	ctx := context.Background()
	partyID := id.NewPartyID()

	s.Require().NoError(s.store.Save(ctx, partyID, record.FieldCity, record.String("Austin"), false))
	s.Require().NoError(s.store.Save(ctx, partyID, record.FieldCity, record.String("Dallas"), false))

	result, err := s.store.Load(ctx, partyID, []record.FieldID{record.FieldCity})
	s.Require().NoError(err)
	s.Equal("Dallas", result.Values[record.FieldCity].Scalar())
}

func (s *PostgresStoreSuite) TestLoadScopedToRequestedFields() {
	ctx := context.Background()
	partyID := id.NewPartyID()

	s.Require().NoError(s.store.Save(ctx, partyID, record.FieldFirstName, record.String("Jane"), false))
	s.Require().NoError(s.store.Save(ctx, partyID, record.FieldLastName, record.String("Doe"), false))

	result, err := s.store.Load(ctx, partyID, []record.FieldID{record.FieldFirstName})
	s.Require().NoError(err)
	s.Len(result.Values, 1)
}

func (s *PostgresStoreSuite) TestLoadUnknownPartyReturnsNotFound() {
	_, err := s.store.Load(context.Background(), id.NewPartyID(), []record.FieldID{record.FieldFirstName})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPartiesAreIsolated() {
	ctx := context.Background()
	partyA := id.NewPartyID()
	partyB := id.NewPartyID()

	s.Require().NoError(s.store.Save(ctx, partyA, record.FieldFirstName, record.String("Jane"), false))
	s.Require().NoError(s.store.Save(ctx, partyB, record.FieldFirstName, record.String("Lucia"), false))

	result, err := s.store.Load(ctx, partyB, []record.FieldID{record.FieldFirstName})
	s.Require().NoError(err)
	s.Equal("Lucia", result.Values[record.FieldFirstName].Scalar())
}
