package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"idv/internal/audit"
	"idv/internal/challenge"
	"idv/internal/flow/machine"
	"idv/internal/flow/metrics"
	"idv/internal/flow/plan"
	"idv/internal/flow/record"
	"idv/internal/identify"
	"idv/internal/vault"
	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
)

// Submitter is the backend boundary for persisting collected data. The
// payload is already dirty-filtered and ISO-normalized.
type Submitter interface {
	SubmitData(ctx context.Context, authToken string, payload map[record.FieldID]record.Value) error
}

// Service builds and drives flow instances. One Service hosts many flows;
// each flow processes one event at a time to completion, so the flow state
// itself needs no locking.
type Service struct {
	decrypter  vault.Decrypter
	submitter  Submitter
	locator    identify.Locator
	challenges *challenge.Service
	tokens     *identify.TokenService

	auditor *audit.Publisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the flow service.
func New(decrypter vault.Decrypter, submitter Submitter, locator identify.Locator, challenges *challenge.Service, tokens *identify.TokenService, opts ...Option) (*Service, error) {
	if submitter == nil {
		return nil, errors.New("data submitter is required")
	}
	if locator == nil {
		return nil, errors.New("party locator is required")
	}
	if challenges == nil {
		return nil, errors.New("challenge service is required")
	}
	svc := &Service{
		decrypter:  decrypter,
		submitter:  submitter,
		locator:    locator,
		challenges: challenges,
		tokens:     tokens,
		tracer:     otel.Tracer("idv/flow"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// StartRequest carries everything the caller knows at flow start.
type StartRequest struct {
	Requirement    plan.Requirement
	Bootstrap      map[record.FieldID]record.Value
	AuthToken      string
	Variant        plan.Variant
	PasskeyCapable bool
}

// Flow is one live flow instance: the working record, its frozen initial
// snapshot, the frozen plan, the navigation controller, and the
// identification sub-flow. The session registry hands the same *Flow to
// every request goroutine, so all mutable state is guarded by mu.
type Flow struct {
	id          id.FlowID
	variant     plan.Variant
	requirement plan.Requirement

	// mu serializes operations on the flow and guards every read of its
	// mutable state.
	mu sync.Mutex

	working  *record.Record
	snapshot *record.Record
	plan     *plan.Plan
	nav      *machine.Controller
	ident    *identify.Machine

	// submitting suppresses duplicate triggers while the backend write is
	// outstanding. Read and written only under mu.
	submitting bool
}

// ID returns the flow identifier.
func (f *Flow) ID() id.FlowID {
	return f.id
}

// Plan returns the frozen screen plan.
func (f *Flow) Plan() *plan.Plan {
	return f.plan
}

// AuthToken returns the token gating backend writes, empty until
// identification completes.
func (f *Flow) AuthToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authToken()
}

func (f *Flow) authToken() string {
	return f.ident.Context().AuthToken
}

// CurrentScreen reports what the UI should render. An unresolved challenge
// overrides the navigation position: the sub-flow gates step completion.
func (f *Flow) CurrentScreen() plan.ScreenID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentScreen()
}

func (f *Flow) currentScreen() plan.ScreenID {
	switch f.ident.State() {
	case identify.StateChallengeSelect, identify.StateSMSChallenge,
		identify.StateEmailChallenge, identify.StatePasskeyChallenge:
		return plan.ScreenID(f.ident.State())
	}
	if screen, ok := f.nav.CurrentScreen(); ok {
		return screen
	}
	return plan.ScreenConfirm
}

// Completed reports whether the flow reached the terminal state.
func (f *Flow) Completed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed()
}

func (f *Flow) completed() bool {
	return f.nav.State() == machine.StateCompleted
}

// Start builds a flow: merge bootstrap data, run the startup decrypt and
// the identification start in parallel, snapshot the record, resolve the
// plan once, and enter the first unmet screen.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Flow, error) {
	working := record.FromBootstrap(req.Bootstrap)

	f := &Flow{
		id:          id.NewFlowID(),
		variant:     req.Variant,
		requirement: req.Requirement,
		working:     working,
	}

	ident, err := identify.NewMachine(
		f.id.String(), s.locator, s.challenges, s.tokens,
		identify.WithLogger(s.logger),
		identify.WithVariant(req.Variant),
		identify.WithPasskeyCapability(req.PasskeyCapable),
	)
	if err != nil {
		return nil, err
	}
	f.ident = ident

	var decrypted *vault.Result
	g, gctx := errgroup.WithContext(ctx)
	if s.decrypter != nil && req.AuthToken != "" {
		g.Go(func() error {
			result, err := s.decrypter.Decrypt(gctx, req.AuthToken, requirementFields(req.Requirement))
			if err != nil {
				return err
			}
			decrypted = result
			return nil
		})
	}
	g.Go(func() error {
		bootstrapEmail := working.Value(record.FieldEmail).Scalar()
		bootstrapPhone := working.Value(record.FieldPhoneNumber).Scalar()
		_, err := ident.Start(gctx, bootstrapEmail, bootstrapPhone, req.AuthToken)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if decrypted != nil {
		working.ApplyDecrypted(decrypted.Values, decrypted.Scrubbed)
	}

	// Bootstrap contacts consumed by the identification call are already
	// known to the backend; clearing their submit eligibility keeps the
	// outbound payload free of values the user never edited.
	if working.Value(record.FieldEmail).Scalar() != "" {
		working.MarkSubmitted(record.FieldEmail)
	}
	if working.Value(record.FieldPhoneNumber).Scalar() != "" {
		working.MarkSubmitted(record.FieldPhoneNumber)
	}

	f.snapshot = working.Snapshot()

	resolved, err := plan.Resolve(req.Requirement, f.snapshot)
	if err != nil {
		return nil, err
	}
	f.plan = resolved
	s.metrics.ObservePlanSize(resolved.Len())

	nav, err := machine.New(resolved, working, f.snapshot,
		machine.WithLogger(s.logger),
		machine.WithVariant(req.Variant),
		machine.WithPasskeyCapability(req.PasskeyCapable),
	)
	if err != nil {
		return nil, err
	}
	f.nav = nav
	if _, err := nav.Start(); err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		FlowID: f.id.String(),
		Action: string(audit.EventFlowStarted),
		Detail: string(req.Variant),
	})
	return f, nil
}

// Submit handles one screen submission: route identification screens
// through the sub-flow, merge the payload, evaluate the forward transition,
// then post the dirty-filtered payload to the backend exactly once. A
// failed backend write leaves the navigation state untouched.
func (s *Service) Submit(ctx context.Context, f *Flow, payload map[record.FieldID]record.Value) (plan.ScreenID, error) {
	ctx, span := s.tracer.Start(ctx, "flow.submit",
		trace.WithAttributes(attribute.String("flow.id", f.id.String())))
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveSubmitLatency(time.Since(start)) }()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		s.logger.Debug("suppressing duplicate submit", "flow_id", f.id.String())
		return f.currentScreen(), nil
	}
	f.submitting = true
	defer func() { f.submitting = false }()

	current := f.currentScreen()
	switch current {
	case plan.ScreenEmailIdentification:
		if _, err := f.ident.SubmitEmail(ctx, payload[record.FieldEmail].Scalar()); err != nil {
			return current, err
		}
	case plan.ScreenPhoneIdentification:
		if _, err := f.ident.SubmitPhone(ctx, payload[record.FieldPhoneNumber].Scalar()); err != nil {
			return current, err
		}
	case plan.ScreenChallengeSelectOrPasskey, plan.ScreenSMSChallenge,
		plan.ScreenEmailChallenge, plan.ScreenPasskeyChallenge:
		return current, dErrors.New(dErrors.CodeBadRequest, "challenge screens accept challenge operations, not data submissions")
	}

	// Merge first, post second, navigate last: a failed backend write must
	// leave the user on the screen they submitted, never silently advanced.
	f.working.MergeAll(payload)

	outbound, err := f.working.BuildPayload()
	if err != nil {
		return f.currentScreen(), err
	}
	s.metrics.ObservePayloadFields(len(outbound))
	if len(outbound) > 0 {
		// The lock is released for the backend write; the submitting flag
		// keeps duplicate triggers suppressed while it is outstanding.
		authToken := f.authToken()
		f.mu.Unlock()
		submitErr := s.submitter.SubmitData(ctx, authToken, outbound)
		f.mu.Lock()
		if submitErr != nil {
			return f.currentScreen(), dErrors.Wrap(submitErr, dErrors.CodeInternal, "data submission failed")
		}
		f.working.MarkSubmitted(record.PayloadFieldIDs(outbound)...)
		s.emit(ctx, audit.Event{
			FlowID: f.id.String(),
			Action: string(audit.EventDataSubmitted),
			Screen: string(current),
			Fields: fieldNames(outbound),
		})
	}

	next, err := f.nav.Submit(nil)
	if err != nil {
		return f.currentScreen(), err
	}
	s.metrics.IncTransition("forward", string(next))
	s.emit(ctx, audit.Event{
		FlowID: f.id.String(),
		Action: string(audit.EventScreenSubmitted),
		Screen: string(current),
	})
	if f.completed() {
		s.emit(ctx, audit.Event{
			FlowID: f.id.String(),
			Action: string(audit.EventFlowCompleted),
		})
	}
	return f.currentScreen(), nil
}

// Back navigates to the previous screen the user actually had to fill.
// Challenge context survives: only a changed contact clears it.
func (s *Service) Back(ctx context.Context, f *Flow) (plan.ScreenID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		s.logger.Debug("suppressing back during outstanding submit", "flow_id", f.id.String())
		return f.currentScreen(), nil
	}
	switch f.ident.State() {
	case identify.StateChallengeSelect, identify.StateSMSChallenge,
		identify.StateEmailChallenge, identify.StatePasskeyChallenge:
		if _, err := f.ident.Back(); err != nil {
			return f.currentScreen(), err
		}
	default:
		if _, err := f.nav.Back(); err != nil {
			return f.currentScreen(), err
		}
	}
	next := f.currentScreen()
	s.metrics.IncTransition("backward", string(next))
	return next, nil
}

// Edit re-enters a collection screen from the confirm screen.
func (s *Service) Edit(ctx context.Context, f *Flow, target plan.ScreenID) (plan.ScreenID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		s.logger.Debug("suppressing edit during outstanding submit", "flow_id", f.id.String())
		return f.currentScreen(), nil
	}
	if _, err := f.nav.Edit(target); err != nil {
		return f.currentScreen(), err
	}
	s.metrics.IncTransition("edit", string(target))
	return f.currentScreen(), nil
}

// SelectChallenge picks a challenge kind from the selector screen.
func (s *Service) SelectChallenge(ctx context.Context, f *Flow, kind challenge.Kind) (plan.ScreenID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return f.currentScreen(), nil
	}
	if _, err := f.ident.SelectChallenge(ctx, kind); err != nil {
		s.metrics.IncChallengeRequest(string(kind), "error")
		return f.currentScreen(), err
	}
	s.metrics.IncChallengeRequest(string(kind), "requested")
	s.emit(ctx, audit.Event{
		FlowID: f.id.String(),
		Action: string(audit.EventChallengeRequested),
		Detail: string(kind),
	})
	return f.currentScreen(), nil
}

// RequestChallenge resends the active challenge, subject to the retry
// window.
func (s *Service) RequestChallenge(ctx context.Context, f *Flow) (plan.ScreenID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return f.currentScreen(), nil
	}
	if _, err := f.ident.RequestChallenge(ctx); err != nil {
		return f.currentScreen(), err
	}
	return f.currentScreen(), nil
}

// VerifyChallenge verifies the user's answer; on success the flow resumes
// at the navigation controller's position.
func (s *Service) VerifyChallenge(ctx context.Context, f *Flow, response string) (plan.ScreenID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return f.currentScreen(), nil
	}
	state, err := f.ident.VerifyChallenge(ctx, response)
	if err != nil {
		return f.currentScreen(), err
	}
	if state == identify.StateSuccess {
		s.emit(ctx, audit.Event{
			FlowID: f.id.String(),
			Action: string(audit.EventChallengeVerified),
		})
	}
	return f.currentScreen(), nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit audit event", "action", event.Action, "error", err)
	}
}

// requirementFields expands a requirement into the field identifiers worth
// asking the vault about.
func requirementFields(req plan.Requirement) []record.FieldID {
	var out []record.FieldID
	seen := make(map[record.FieldID]bool)
	categories := append(append(append([]plan.Category{}, req.Missing...), req.Populated...), req.Optional...)
	for _, c := range categories {
		fields, err := plan.Fields(c)
		if err != nil {
			continue
		}
		for _, f := range fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func fieldNames(payload map[record.FieldID]record.Value) []string {
	ids := record.PayloadFieldIDs(payload)
	out := make([]string, len(ids))
	for i, fid := range ids {
		out[i] = string(fid)
	}
	return out
}
