package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/sentinel"
)

// Issuer is the backend boundary for challenges. VerifyChallenge consumes
// the challenge token and returns the auth token that gates subsequent
// steps.
type Issuer interface {
	RequestChallenge(ctx context.Context, kind Kind, destination string) (*Challenge, error)
	VerifyChallenge(ctx context.Context, token id.ChallengeToken, response string) (string, error)
}

// DefaultRetryWindow is how long a pending challenge suppresses resends
// unless the server supplied its own retry gate.
const DefaultRetryWindow = 30 * time.Second

// Service owns the challenge lifecycle: none, requested, received, verified
// or expired. Concurrent duplicate requests for the same (kind, destination)
// coalesce onto one in-flight backend call.
type Service struct {
	store  Store
	issuer Issuer

	group       singleflight.Group
	retryWindow time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRetryWindow overrides the resend suppression window.
func WithRetryWindow(d time.Duration) Option {
	return func(s *Service) { s.retryWindow = d }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a challenge service.
func New(store Store, issuer Issuer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("challenge store is required")
	}
	if issuer == nil {
		return nil, errors.New("challenge issuer is required")
	}
	svc := &Service{
		store:       store,
		issuer:      issuer,
		retryWindow: DefaultRetryWindow,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Request issues a challenge for the destination unless a pending one is
// still inside its retry window, in which case the pending challenge is
// returned untouched. Duplicate concurrent callers share one backend call.
// A response claiming a different kind than requested is a protocol
// violation, logged and surfaced as an internal error.
func (s *Service) Request(ctx context.Context, key string, kind Kind, destination string) (*Challenge, error) {
	flightKey := fmt.Sprintf("%s|%s|%s", key, kind, destination)
	result, err, _ := s.group.Do(flightKey, func() (any, error) {
		return s.request(ctx, key, kind, destination)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Challenge), nil
}

func (s *Service) request(ctx context.Context, key string, kind Kind, destination string) (*Challenge, error) {
	now := s.now()

	existing, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active challenge")
	}
	if existing != nil && existing.Kind == kind && existing.Destination == destination && !existing.Resendable(now) {
		return existing, nil
	}

	issued, err := s.issuer.RequestChallenge(ctx, kind, destination)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "challenge request failed")
	}
	if issued.Kind != kind {
		s.logger.Error("challenge kind mismatch",
			"requested", string(kind),
			"received", string(issued.Kind),
		)
		return nil, dErrors.New(dErrors.CodeInternal, "server returned a different challenge kind than requested")
	}

	// Stale-response guard: the contact may have changed while the request
	// was outstanding. Apply the result only if it still targets the
	// current destination for this key.
	current, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to re-check active challenge")
	}
	if current != nil && current.Destination != destination {
		s.logger.Debug("discarding stale challenge response", "destination", destination)
		return nil, fmt.Errorf("challenge response outdated: %w", sentinel.ErrStale)
	}

	issued.Destination = destination
	if issued.IssuedAt.IsZero() {
		issued.IssuedAt = now
	}
	if issued.RetryNotBefore.IsZero() {
		issued.RetryNotBefore = now.Add(s.retryWindow)
	}
	if err := s.store.Put(ctx, key, issued); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist challenge")
	}
	return issued, nil
}

// Verify checks the user's answer against the active challenge and returns
// the auth token the backend issues on success. Failures are non-fatal and
// retryable by resend; expiry surfaces as ErrExpired.
func (s *Service) Verify(ctx context.Context, key, response string) (string, error) {
	ch, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "no active challenge to verify")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active challenge")
	}
	if ch.StateAt(s.now()) == StateExpired {
		return "", fmt.Errorf("challenge expired: %w", sentinel.ErrExpired)
	}
	authToken, err := s.issuer.VerifyChallenge(ctx, ch.Token, response)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "challenge verification failed")
	}
	ch.Verified = true
	if err := s.store.Put(ctx, key, ch); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verified challenge")
	}
	return authToken, nil
}

// Active returns the current challenge for the key, nil when none exists.
func (s *Service) Active(ctx context.Context, key string) (*Challenge, error) {
	ch, err := s.store.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active challenge")
	}
	return ch, nil
}

// Clear drops any challenge for the key. Called when the identifying
// contact changes: the pending challenge may target the wrong destination.
func (s *Service) Clear(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear challenge")
	}
	return nil
}
