package challenge

import (
	"time"

	id "idv/pkg/domain"
)

// Kind enumerates the proof mechanisms the backend can issue.
type Kind string

const (
	KindSMS     Kind = "sms"
	KindEmail   Kind = "email"
	KindPasskey Kind = "passkey"
)

// State is the lifecycle position of a challenge.
type State string

const (
	StateNone      State = "none"
	StateRequested State = "requested"
	StateReceived  State = "received"
	StateVerified  State = "verified"
	StateExpired   State = "expired"
)

// Challenge is one server-issued proof request. It is retained across
// backward/forward navigation so looking at a previous screen never forces
// a resend; it is cleared only when the identifying contact changes.
type Challenge struct {
	Token       id.ChallengeToken
	Kind        Kind
	Destination string
	IssuedAt    time.Time
	ExpiresAt   time.Time

	// RetryNotBefore gates resends; a new request before this instant
	// reuses the pending challenge instead of issuing another.
	RetryNotBefore time.Time

	Verified bool
}

// StateAt derives the lifecycle state at the given instant.
func (c *Challenge) StateAt(now time.Time) State {
	switch {
	case c == nil:
		return StateNone
	case c.Verified:
		return StateVerified
	case !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt):
		return StateExpired
	case c.Token.IsNil():
		return StateRequested
	default:
		return StateReceived
	}
}

// Resendable reports whether a new request may be issued at the given
// instant.
func (c *Challenge) Resendable(now time.Time) bool {
	if c == nil {
		return true
	}
	if c.StateAt(now) == StateExpired {
		return true
	}
	return now.After(c.RetryNotBefore)
}
