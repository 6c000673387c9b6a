package identify

import (
	"context"
	"errors"
	"log/slog"

	"idv/internal/challenge"
	"idv/internal/flow/plan"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/sentinel"
)

// State is a position in the identification sub-flow.
type State string

const (
	StateInit             State = "init"
	StateEmail            State = State(plan.ScreenEmailIdentification)
	StatePhone            State = State(plan.ScreenPhoneIdentification)
	StateChallengeSelect  State = State(plan.ScreenChallengeSelectOrPasskey)
	StateSMSChallenge     State = State(plan.ScreenSMSChallenge)
	StateEmailChallenge   State = State(plan.ScreenEmailChallenge)
	StatePasskeyChallenge State = State(plan.ScreenPasskeyChallenge)
	StateSuccess          State = "success"

	// StateFailure is the "not possible" terminal notification for protocol
	// dead ends; it is never routed to by ordinary user input.
	StateFailure State = "failure"
)

// Machine runs the identification sub-flow: resolve who the user is via
// email, phone, or a carried-in auth token, then gate progress behind a
// challenge. It is a specialization of the navigation controller with its
// own invalidation rules.
type Machine struct {
	key        string // flow-scoped challenge key
	locator    Locator
	challenges *challenge.Service
	tokens     *TokenService

	variant        plan.Variant
	passkeyCapable bool

	state State
	ctx   Context

	// identifying suppresses duplicate identify triggers while a lookup is
	// outstanding.
	identifying bool

	logger *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) { m.logger = logger }
}

func WithVariant(v plan.Variant) MachineOption {
	return func(m *Machine) { m.variant = v }
}

func WithPasskeyCapability(capable bool) MachineOption {
	return func(m *Machine) { m.passkeyCapable = capable }
}

// NewMachine constructs an identification machine in the init state.
func NewMachine(key string, locator Locator, challenges *challenge.Service, tokens *TokenService, opts ...MachineOption) (*Machine, error) {
	if locator == nil {
		return nil, errors.New("party locator is required")
	}
	if challenges == nil {
		return nil, errors.New("challenge service is required")
	}
	m := &Machine{
		key:        key,
		locator:    locator,
		challenges: challenges,
		tokens:     tokens,
		state:      StateInit,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current sub-flow state.
func (m *Machine) State() State {
	return m.state
}

// Context returns a copy of the identification context.
func (m *Machine) Context() Context {
	return m.ctx
}

// Start enters the sub-flow. Bootstrap contact values pre-fill the context
// but identification still runs when the respective screen submits; a
// carried-in auth token identifies immediately.
func (m *Machine) Start(ctx context.Context, bootstrapEmail, bootstrapPhone, authToken string) (State, error) {
	if m.state != StateInit {
		m.logger.Debug("ignoring start event outside init state", "state", string(m.state))
		return m.state, nil
	}
	m.ctx.Email = bootstrapEmail
	m.ctx.Phone = bootstrapPhone

	if authToken != "" && m.tokens != nil {
		claims, err := m.tokens.Validate(authToken)
		if err != nil {
			return m.state, err
		}
		party, err := m.locate(ctx, Query{AuthToken: authToken})
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return m.state, err
		}
		if party != nil {
			m.ctx.Party = party
			m.ctx.AuthToken = authToken
			if claims.VerifiedPhone != "" {
				m.ctx.Phone = claims.VerifiedPhone
				m.ctx.PhoneConfirmed = true
			}
			if claims.VerifiedEmail != "" && m.ctx.Email == "" {
				m.ctx.Email = claims.VerifiedEmail
			}
			m.state = StateSuccess
			return m.state, nil
		}
		// A valid token naming a party the backend cannot find is a
		// protocol violation, not a retryable condition.
		m.logger.Error("auth token names a party the lookup cannot produce", "party_id", claims.PartyID)
		m.state = StateFailure
		return m.state, nil
	}

	if m.ctx.Email == "" {
		m.state = StateEmail
	} else {
		m.state = StatePhone
	}
	return m.state, nil
}

// SubmitEmail records the email and attempts identification. Submitting a
// value different from the one last searched clears any in-flight challenge
// (its destination may be wrong) and resets the identification result, but
// an independently confirmed phone number survives. Re-submitting the same
// value changes nothing and preserves the challenge.
func (m *Machine) SubmitEmail(ctx context.Context, email string) (State, error) {
	if m.state != StateEmail {
		m.logger.Debug("ignoring email submission", "state", string(m.state))
		return m.state, nil
	}
	if email == "" {
		return m.state, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	changed := email != m.ctx.lastSearchedEmail
	m.ctx.Email = email
	if changed {
		if err := m.invalidateIdentification(ctx); err != nil {
			return m.state, err
		}
		party, err := m.search(ctx, Query{Email: email}, ContactEmail)
		if err != nil {
			return m.state, err
		}
		m.ctx.lastSearchedEmail = email
		if party != nil {
			m.ctx.Party = party
		}
	}
	return m.afterIdentification(ctx)
}

// SubmitPhone is the phone counterpart of SubmitEmail.
func (m *Machine) SubmitPhone(ctx context.Context, phone string) (State, error) {
	if m.state != StatePhone {
		m.logger.Debug("ignoring phone submission", "state", string(m.state))
		return m.state, nil
	}
	if phone == "" {
		return m.state, dErrors.New(dErrors.CodeValidation, "phone number is required")
	}
	changed := phone != m.ctx.lastSearchedPhone
	m.ctx.Phone = phone
	if changed {
		m.ctx.PhoneConfirmed = false
		if err := m.invalidateChallenge(ctx); err != nil {
			return m.state, err
		}
		if m.ctx.Party == nil {
			party, err := m.search(ctx, Query{Phone: phone}, ContactPhone)
			if err != nil {
				return m.state, err
			}
			if party != nil {
				m.ctx.Party = party
			}
		}
		m.ctx.lastSearchedPhone = phone
	}
	return m.afterPhone(ctx)
}

// SelectChallenge picks one of the party's available kinds from the
// selector screen and requests the challenge.
func (m *Machine) SelectChallenge(ctx context.Context, kind challenge.Kind) (State, error) {
	if m.state != StateChallengeSelect {
		m.logger.Debug("ignoring challenge selection", "state", string(m.state))
		return m.state, nil
	}
	if !m.kindAvailable(kind) {
		return m.state, dErrors.New(dErrors.CodeInvalidInput, "challenge kind not available for this party")
	}
	return m.enterChallenge(ctx, kind)
}

// RequestChallenge re-requests the active kind (resend). The challenge
// service enforces the retry window and coalesces duplicates.
func (m *Machine) RequestChallenge(ctx context.Context) (State, error) {
	kind, ok := m.activeChallengeKind()
	if !ok {
		m.logger.Debug("ignoring challenge request outside challenge state", "state", string(m.state))
		return m.state, nil
	}
	if _, err := m.challenges.Request(ctx, m.key, kind, m.destinationFor(kind)); err != nil {
		return m.state, err
	}
	return m.state, nil
}

// VerifyChallenge submits the user's answer. Success carries the auth token
// into the context and, for SMS, confirms the phone number. Failures leave
// the machine in place for a retry or resend.
func (m *Machine) VerifyChallenge(ctx context.Context, response string) (State, error) {
	kind, ok := m.activeChallengeKind()
	if !ok {
		m.logger.Debug("ignoring challenge verification outside challenge state", "state", string(m.state))
		return m.state, nil
	}
	authToken, err := m.challenges.Verify(ctx, m.key, response)
	if err != nil {
		return m.state, err
	}
	m.ctx.AuthToken = authToken
	if kind == challenge.KindSMS {
		m.ctx.PhoneConfirmed = true
	}
	m.state = StateSuccess
	return m.state, nil
}

// Back walks one step toward the start of the sub-flow. Challenge data is
// deliberately preserved: navigating backward without changing the contact
// must not force a resend.
func (m *Machine) Back() (State, error) {
	switch m.state {
	case StateSMSChallenge, StateEmailChallenge, StatePasskeyChallenge:
		if m.needsSelector() {
			m.state = StateChallengeSelect
		} else {
			m.state = StatePhone
		}
	case StateChallengeSelect:
		m.state = StatePhone
	case StatePhone:
		m.state = StateEmail
	default:
		m.logger.Debug("ignoring back event", "state", string(m.state))
	}
	return m.state, nil
}

// --- internals ---

// search runs one backend lookup with the in-flight and stale-response
// guards of the engine's concurrency model.
func (m *Machine) search(ctx context.Context, q Query, via ContactKind) (*Party, error) {
	if m.identifying {
		m.logger.Debug("suppressing duplicate identify trigger")
		return nil, nil
	}
	m.identifying = true
	defer func() { m.identifying = false }()

	party, err := m.locate(ctx, q)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Stale-response guard: discard if the contact changed while the call
	// was outstanding.
	switch via {
	case ContactEmail:
		if q.Email != m.ctx.Email {
			m.logger.Debug("discarding stale identify response", "via", string(via))
			return nil, nil
		}
	case ContactPhone:
		if q.Phone != m.ctx.Phone {
			m.logger.Debug("discarding stale identify response", "via", string(via))
			return nil, nil
		}
	}
	return party, nil
}

func (m *Machine) locate(ctx context.Context, q Query) (*Party, error) {
	party, err := m.locator.Locate(ctx, q)
	if err != nil {
		return nil, err
	}
	if party == nil || party.ID.IsNil() {
		// Lookup claimed success with no usable party.
		m.logger.Error("identify returned success with no usable party")
		return nil, dErrors.New(dErrors.CodeInternal, "identify returned no usable party")
	}
	return party, nil
}

// invalidateIdentification resets the identification result for a changed
// email. The phone number and its confirmation survive when they were
// established independently.
func (m *Machine) invalidateIdentification(ctx context.Context) error {
	m.ctx.Party = nil
	return m.invalidateChallenge(ctx)
}

func (m *Machine) invalidateChallenge(ctx context.Context) error {
	return m.challenges.Clear(ctx, m.key)
}

// afterIdentification routes from the email screen. A located party goes
// straight to its challenge; the backend already knows the destination
// contacts, so the phone screen is skipped. An unknown user is asked for a
// phone number so the lookup can try again.
func (m *Machine) afterIdentification(ctx context.Context) (State, error) {
	if m.ctx.Party != nil {
		return m.afterPhone(ctx)
	}
	if m.ctx.lastSearchedPhone == "" && !m.ctx.PhoneConfirmed {
		m.state = StatePhone
		return m.state, nil
	}
	return m.afterPhone(ctx)
}

// afterPhone routes past the contact screens: a located party gets a
// challenge, an unknown user proceeds as a fresh signup.
func (m *Machine) afterPhone(ctx context.Context) (State, error) {
	if m.ctx.Party == nil {
		m.state = StateSuccess
		return m.state, nil
	}
	kinds := m.availableKinds()
	if len(kinds) == 0 {
		m.logger.Error("located party supports no usable challenge kind")
		m.state = StateFailure
		return m.state, nil
	}
	if m.needsSelector() {
		m.state = StateChallengeSelect
		return m.state, nil
	}
	return m.enterChallenge(ctx, kinds[0])
}

// enterChallenge moves to the kind's screen and fires the request.
func (m *Machine) enterChallenge(ctx context.Context, kind challenge.Kind) (State, error) {
	switch kind {
	case challenge.KindSMS:
		m.state = StateSMSChallenge
	case challenge.KindEmail:
		m.state = StateEmailChallenge
	case challenge.KindPasskey:
		m.state = StatePasskeyChallenge
	default:
		return m.state, dErrors.New(dErrors.CodeInvalidInput, "unknown challenge kind "+string(kind))
	}
	if _, err := m.challenges.Request(ctx, m.key, kind, m.destinationFor(kind)); err != nil {
		return m.state, err
	}
	return m.state, nil
}

// needsSelector applies the selector rule: a party matched via more than
// one contact method, more than one usable kind, a passkey-capable party,
// or the update-login-methods variant always gets the selector screen.
func (m *Machine) needsSelector() bool {
	if m.ctx.Party == nil {
		return false
	}
	if m.variant == plan.VariantUpdateLoginMethods {
		return true
	}
	matched := 0
	for _, ok := range m.ctx.Party.MatchedVia {
		if ok {
			matched++
		}
	}
	if matched > 1 {
		return true
	}
	kinds := m.availableKinds()
	if len(kinds) > 1 {
		return true
	}
	return m.ctx.Party.SupportsPasskey() && m.passkeyCapable
}

// availableKinds filters the party's kinds by device capability: a passkey
// challenge is unusable on a device that cannot perform one.
func (m *Machine) availableKinds() []challenge.Kind {
	if m.ctx.Party == nil {
		return nil
	}
	var kinds []challenge.Kind
	for _, k := range m.ctx.Party.AvailableKinds {
		if k == challenge.KindPasskey && !m.passkeyCapable {
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

func (m *Machine) kindAvailable(kind challenge.Kind) bool {
	for _, k := range m.availableKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func (m *Machine) activeChallengeKind() (challenge.Kind, bool) {
	switch m.state {
	case StateSMSChallenge:
		return challenge.KindSMS, true
	case StateEmailChallenge:
		return challenge.KindEmail, true
	case StatePasskeyChallenge:
		return challenge.KindPasskey, true
	}
	return "", false
}

func (m *Machine) destinationFor(kind challenge.Kind) string {
	switch kind {
	case challenge.KindSMS:
		if m.ctx.Phone != "" {
			return m.ctx.Phone
		}
		if m.ctx.Party != nil {
			return m.ctx.Party.RedactedPhone
		}
	case challenge.KindEmail:
		if m.ctx.Email != "" {
			return m.ctx.Email
		}
		if m.ctx.Party != nil {
			return m.ctx.Party.RedactedEmail
		}
	}
	return ""
}
