package identify_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"idv/internal/challenge"
	challengemocks "idv/internal/challenge/mocks"
	"idv/internal/identify"
	"idv/internal/identify/mocks"
	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/sentinel"
)

//go:generate mockgen -source=models.go -destination=mocks/identify-mocks.go -package=mocks Locator

type MachineSuite struct {
	suite.Suite
	ctx     context.Context
	logger  *slog.Logger
	locator *mocks.MockLocator
	issuer  *challengemocks.MockIssuer
	store   *challenge.InMemoryStore
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *MachineSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.locator = mocks.NewMockLocator(ctrl)
	s.issuer = challengemocks.NewMockIssuer(ctrl)
	s.store = challenge.NewInMemoryStore()
}

func (s *MachineSuite) newMachine(opts ...identify.MachineOption) *identify.Machine {
	s.T().Helper()
	challenges, err := challenge.New(s.store, s.issuer, challenge.WithLogger(s.logger))
	s.Require().NoError(err)

	tokens := identify.NewTokenService("test-signing-key", "idv", "idv-flows")
	m, err := identify.NewMachine("flow-1", s.locator, challenges, tokens,
		append([]identify.MachineOption{identify.WithLogger(s.logger)}, opts...)...)
	s.Require().NoError(err)
	return m
}

func (s *MachineSuite) party(kinds ...challenge.Kind) *identify.Party {
	return &identify.Party{
		ID:             id.NewPartyID(),
		AvailableKinds: kinds,
		MatchedVia:     map[identify.ContactKind]bool{identify.ContactEmail: true},
		RedactedEmail:  "j•••@example.com",
		RedactedPhone:  "+1•••0000",
	}
}

func (s *MachineSuite) issued(kind challenge.Kind) *challenge.Challenge {
	return &challenge.Challenge{
		Token:     id.ChallengeToken("tok-1"),
		Kind:      kind,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
}

func (s *MachineSuite) TestStart() {
	s.Run("no bootstrap contacts enters the email screen", func() {
		m := s.newMachine()
		state, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)
		s.Equal(identify.StateEmail, state)
	})

	s.Run("bootstrap email skips to the phone screen", func() {
		m := s.newMachine()
		state, err := m.Start(s.ctx, "jane@example.com", "", "")
		s.Require().NoError(err)
		s.Equal(identify.StatePhone, state)
		s.Equal("jane@example.com", m.Context().Email)
	})

	s.Run("valid auth token identifies immediately", func() {
		m := s.newMachine()
		tokens := identify.NewTokenService("test-signing-key", "idv", "idv-flows")
		partyID := id.NewPartyID()
		token, err := tokens.Generate(partyID.String(), "jane@example.com", "+15551230000", time.Hour)
		s.Require().NoError(err)

		party := s.party(challenge.KindSMS)
		party.ID = partyID
		s.locator.EXPECT().
			Locate(gomock.Any(), identify.Query{AuthToken: token}).
			Return(party, nil)

		state, err := m.Start(s.ctx, "", "", token)
		s.Require().NoError(err)
		s.Equal(identify.StateSuccess, state)
		s.Equal(token, m.Context().AuthToken)
		s.True(m.Context().PhoneConfirmed, "verified phone claim confirms the number")
		s.Equal("+15551230000", m.Context().Phone)
	})

	s.Run("auth token naming an unfindable party is a dead end", func() {
		m := s.newMachine()
		tokens := identify.NewTokenService("test-signing-key", "idv", "idv-flows")
		token, err := tokens.Generate(id.NewPartyID().String(), "", "", time.Hour)
		s.Require().NoError(err)

		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrNotFound)

		state, err := m.Start(s.ctx, "", "", token)
		s.Require().NoError(err)
		s.Equal(identify.StateFailure, state)
	})

	s.Run("tampered auth token is rejected", func() {
		m := s.newMachine()
		other := identify.NewTokenService("different-key", "idv", "idv-flows")
		token, err := other.Generate(id.NewPartyID().String(), "", "", time.Hour)
		s.Require().NoError(err)

		_, err = m.Start(s.ctx, "", "", token)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *MachineSuite) TestSubmitEmail() {
	s.Run("unknown email falls through to the phone screen", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		s.locator.EXPECT().
			Locate(gomock.Any(), identify.Query{Email: "new@example.com"}).
			Return(nil, sentinel.ErrNotFound)

		state, err := m.SubmitEmail(s.ctx, "new@example.com")
		s.Require().NoError(err)
		s.Equal(identify.StatePhone, state)
	})

	s.Run("located party with one kind skips straight to its challenge", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		s.locator.EXPECT().
			Locate(gomock.Any(), identify.Query{Email: "jane@example.com"}).
			Return(s.party(challenge.KindSMS), nil)
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindSMS, "+1•••0000").
			Return(s.issued(challenge.KindSMS), nil)

		state, err := m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)
		s.Equal(identify.StateSMSChallenge, state, "phone screen is skipped for a located party")
	})

	s.Run("multiple kinds route to the selector", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(s.party(challenge.KindSMS, challenge.KindEmail), nil)

		state, err := m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)
		s.Equal(identify.StateChallengeSelect, state)
	})

	s.Run("party matched via both contacts gets the selector", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		party := s.party(challenge.KindSMS)
		party.MatchedVia = map[identify.ContactKind]bool{
			identify.ContactEmail: true,
			identify.ContactPhone: true,
		}
		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(party, nil)

		state, err := m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)
		s.Equal(identify.StateChallengeSelect, state, "a single kind does not bypass the selector for a multi-contact match")
	})

	s.Run("empty email is a validation error", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		_, err = m.SubmitEmail(s.ctx, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("lookup success without a usable party is an internal error", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(&identify.Party{}, nil)

		_, err = m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *MachineSuite) TestSubmitPhone() {
	s.Run("unknown phone proceeds as a fresh signup", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		gomock.InOrder(
			s.locator.EXPECT().
				Locate(gomock.Any(), identify.Query{Email: "new@example.com"}).
				Return(nil, sentinel.ErrNotFound),
			s.locator.EXPECT().
				Locate(gomock.Any(), identify.Query{Phone: "+15551230000"}).
				Return(nil, sentinel.ErrNotFound),
		)

		_, err = m.SubmitEmail(s.ctx, "new@example.com")
		s.Require().NoError(err)
		state, err := m.SubmitPhone(s.ctx, "+15551230000")
		s.Require().NoError(err)
		s.Equal(identify.StateSuccess, state)
		s.Empty(m.Context().AuthToken, "fresh signups carry no auth token yet")
	})

	s.Run("phone lookup can still locate the party", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		party := s.party(challenge.KindSMS)
		party.MatchedVia = map[identify.ContactKind]bool{identify.ContactPhone: true}
		gomock.InOrder(
			s.locator.EXPECT().
				Locate(gomock.Any(), identify.Query{Email: "new@example.com"}).
				Return(nil, sentinel.ErrNotFound),
			s.locator.EXPECT().
				Locate(gomock.Any(), identify.Query{Phone: "+15551230000"}).
				Return(party, nil),
		)
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindSMS, "+15551230000").
			Return(s.issued(challenge.KindSMS), nil)

		_, err = m.SubmitEmail(s.ctx, "new@example.com")
		s.Require().NoError(err)
		state, err := m.SubmitPhone(s.ctx, "+15551230000")
		s.Require().NoError(err)
		s.Equal(identify.StateSMSChallenge, state)
	})
}

func (s *MachineSuite) TestChallengeInvalidation() {
	// Drives the machine to an SMS challenge issued for the submitted phone.
	toSMSChallenge := func(m *identify.Machine) {
		s.T().Helper()
		party := s.party(challenge.KindSMS)
		party.MatchedVia = map[identify.ContactKind]bool{identify.ContactPhone: true}
		gomock.InOrder(
			s.locator.EXPECT().
				Locate(gomock.Any(), identify.Query{Email: "new@example.com"}).
				Return(nil, sentinel.ErrNotFound),
			s.locator.EXPECT().
				Locate(gomock.Any(), identify.Query{Phone: "+15551230000"}).
				Return(party, nil),
		)
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindSMS, "+15551230000").
			Return(s.issued(challenge.KindSMS), nil)

		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)
		_, err = m.SubmitEmail(s.ctx, "new@example.com")
		s.Require().NoError(err)
		state, err := m.SubmitPhone(s.ctx, "+15551230000")
		s.Require().NoError(err)
		s.Require().Equal(identify.StateSMSChallenge, state)
	}

	s.Run("back and resubmitting the same phone preserves the challenge", func() {
		m := s.newMachine()
		toSMSChallenge(m)

		state, err := m.Back()
		s.Require().NoError(err)
		s.Require().Equal(identify.StatePhone, state)

		// No new locator or issuer calls expected.
		state, err = m.SubmitPhone(s.ctx, "+15551230000")
		s.Require().NoError(err)
		s.Equal(identify.StateSMSChallenge, state)

		active, err := s.store.Get(s.ctx, "flow-1")
		s.Require().NoError(err)
		s.Equal(id.ChallengeToken("tok-1"), active.Token, "pending challenge survives the round trip")
	})

	s.Run("a different phone clears the challenge and issues a new one", func() {
		m := s.newMachine()
		toSMSChallenge(m)

		_, err := m.Back()
		s.Require().NoError(err)

		newIssued := s.issued(challenge.KindSMS)
		newIssued.Token = id.ChallengeToken("tok-2")
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindSMS, "+15559870000").
			Return(newIssued, nil)

		state, err := m.SubmitPhone(s.ctx, "+15559870000")
		s.Require().NoError(err)
		s.Equal(identify.StateSMSChallenge, state)

		active, err := s.store.Get(s.ctx, "flow-1")
		s.Require().NoError(err)
		s.Equal(id.ChallengeToken("tok-2"), active.Token)
		s.Equal("+15559870000", active.Destination)
	})

	s.Run("a changed email resets the identification result", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		s.locator.EXPECT().
			Locate(gomock.Any(), identify.Query{Email: "jane@example.com"}).
			Return(s.party(challenge.KindEmail), nil)
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindEmail, "jane@example.com").
			Return(s.issued(challenge.KindEmail), nil)

		_, err = m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)

		// Back to the email screen and identify as someone else.
		_, err = m.Back()
		s.Require().NoError(err)
		_, err = m.Back()
		s.Require().NoError(err)
		s.Require().Equal(identify.StateEmail, m.State())

		s.locator.EXPECT().
			Locate(gomock.Any(), identify.Query{Email: "other@example.com"}).
			Return(nil, sentinel.ErrNotFound)

		state, err := m.SubmitEmail(s.ctx, "other@example.com")
		s.Require().NoError(err)
		s.Equal(identify.StatePhone, state)
		s.Nil(m.Context().Party)

		_, err = s.store.Get(s.ctx, "flow-1")
		s.Require().ErrorIs(err, sentinel.ErrNotFound, "stale challenge was cleared")
	})
}

func (s *MachineSuite) TestSelectChallenge() {
	toSelector := func(m *identify.Machine, kinds ...challenge.Kind) {
		s.T().Helper()
		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(s.party(kinds...), nil)
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)
		state, err := m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)
		s.Require().Equal(identify.StateChallengeSelect, state)
	}

	s.Run("selecting an available kind enters its challenge", func() {
		m := s.newMachine()
		toSelector(m, challenge.KindSMS, challenge.KindEmail)

		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindEmail, "jane@example.com").
			Return(s.issued(challenge.KindEmail), nil)

		state, err := m.SelectChallenge(s.ctx, challenge.KindEmail)
		s.Require().NoError(err)
		s.Equal(identify.StateEmailChallenge, state)
	})

	s.Run("selecting an unavailable kind is invalid input", func() {
		m := s.newMachine()
		toSelector(m, challenge.KindSMS, challenge.KindEmail)

		_, err := m.SelectChallenge(s.ctx, challenge.KindPasskey)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("passkey is filtered out on an incapable device", func() {
		m := s.newMachine()
		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(s.party(challenge.KindPasskey, challenge.KindSMS), nil)
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindSMS, "+1•••0000").
			Return(s.issued(challenge.KindSMS), nil)

		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)
		state, err := m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)
		s.Equal(identify.StateSMSChallenge, state, "single usable kind needs no selector")
	})

	s.Run("capable device with a passkey party gets the selector", func() {
		m := s.newMachine(identify.WithPasskeyCapability(true))
		toSelector(m, challenge.KindPasskey)
	})
}

func (s *MachineSuite) TestVerifyChallenge() {
	toSMSChallenge := func(m *identify.Machine) {
		s.T().Helper()
		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(s.party(challenge.KindSMS), nil)
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), challenge.KindSMS, gomock.Any()).
			Return(s.issued(challenge.KindSMS), nil)
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)
		state, err := m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)
		s.Require().Equal(identify.StateSMSChallenge, state)
	}

	s.Run("success carries the auth token and confirms the phone", func() {
		m := s.newMachine()
		toSMSChallenge(m)

		s.issuer.EXPECT().
			VerifyChallenge(gomock.Any(), id.ChallengeToken("tok-1"), "123456").
			Return("auth-token", nil)

		state, err := m.VerifyChallenge(s.ctx, "123456")
		s.Require().NoError(err)
		s.Equal(identify.StateSuccess, state)
		s.Equal("auth-token", m.Context().AuthToken)
		s.True(m.Context().PhoneConfirmed)
	})

	s.Run("failure leaves the machine on the challenge screen", func() {
		m := s.newMachine()
		toSMSChallenge(m)

		s.issuer.EXPECT().
			VerifyChallenge(gomock.Any(), id.ChallengeToken("tok-1"), "000000").
			Return("", dErrors.New(dErrors.CodeUnauthorized, "wrong code"))

		state, err := m.VerifyChallenge(s.ctx, "000000")
		s.Require().Error(err)
		s.Equal(identify.StateSMSChallenge, state)
	})

	s.Run("verify outside a challenge state is a no-op", func() {
		m := s.newMachine()
		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)

		state, err := m.VerifyChallenge(s.ctx, "123456")
		s.Require().NoError(err)
		s.Equal(identify.StateEmail, state)
	})
}

func (s *MachineSuite) TestDisplayValues() {
	s.Run("unmatched contact is shown redacted", func() {
		m := s.newMachine()
		party := s.party(challenge.KindSMS)
		party.MatchedVia = map[identify.ContactKind]bool{identify.ContactEmail: true}
		s.locator.EXPECT().
			Locate(gomock.Any(), gomock.Any()).
			Return(party, nil)
		s.issuer.EXPECT().
			RequestChallenge(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(s.issued(challenge.KindSMS), nil)

		_, err := m.Start(s.ctx, "", "", "")
		s.Require().NoError(err)
		_, err = m.SubmitEmail(s.ctx, "jane@example.com")
		s.Require().NoError(err)

		c := m.Context()
		s.Equal("jane@example.com", c.DisplayEmail(), "matched contact shows the raw value")
		s.Equal("+1•••0000", c.DisplayPhone(), "held but unmatched contact stays redacted")
	})
}
