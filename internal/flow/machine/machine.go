package machine

import (
	"log/slog"

	"idv/internal/flow/plan"
	"idv/internal/flow/record"
	dErrors "idv/pkg/domain-errors"
)

// State is a controller state: a screen from the plan, or one of the two
// implicit states.
type State string

const (
	// StateInit is entry-only; Start moves off it once startup merging is
	// done.
	StateInit State = "init"

	// StateCompleted is terminal.
	StateCompleted State = "completed"
)

// ScreenState converts a plan screen into a controller state.
func ScreenState(id plan.ScreenID) State {
	return State(id)
}

// Effect runs when a state is entered: fire-and-forget work like the
// identify call on screen entry. The controller fires each effect exactly
// once per entry and suppresses duplicates while one is still running, so
// hosts never rely on UI lifecycle quirks for once-only semantics.
type Effect func(entered plan.ScreenID)

// Controller is the navigation state machine. It owns the working record
// mutation order: events are processed one at a time to completion, so no
// locking is needed.
type Controller struct {
	plan     *plan.Plan
	working  *record.Record
	snapshot *record.Record

	passkeyCapable bool
	variant        plan.Variant

	state   State
	pos     int // index into plan while on a screen
	editing bool

	effects   map[plan.ScreenID]Effect
	effectRun map[plan.ScreenID]bool // in-flight guard per screen entry

	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithPasskeyCapability records the device capability flag predicates read.
func WithPasskeyCapability(capable bool) Option {
	return func(c *Controller) { c.passkeyCapable = capable }
}

// WithVariant sets the flow variant.
func WithVariant(v plan.Variant) Option {
	return func(c *Controller) { c.variant = v }
}

// WithEffect declares work to run on entering the given screen.
func WithEffect(id plan.ScreenID, effect Effect) Option {
	return func(c *Controller) { c.effects[id] = effect }
}

// New builds a controller in the init state. The snapshot must be taken
// after the startup decrypt merge and is never mutated again.
func New(p *plan.Plan, working, snapshot *record.Record, opts ...Option) (*Controller, error) {
	if p == nil || p.Len() == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "navigation requires a non-empty screen plan")
	}
	c := &Controller{
		plan:      p,
		working:   working,
		snapshot:  snapshot,
		state:     StateInit,
		pos:       -1,
		effects:   make(map[plan.ScreenID]Effect),
		effectRun: make(map[plan.ScreenID]bool),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// CurrentScreen returns the screen being shown, false when in an implicit
// state. During an edit-from-confirm re-entry this is the edited screen even
// though the position counter still points at confirm.
func (c *Controller) CurrentScreen() (plan.ScreenID, bool) {
	if c.state == StateInit || c.state == StateCompleted {
		return "", false
	}
	return plan.ScreenID(c.state), true
}

// Working exposes the live record. Callers must respect the single-event
// ordering; there is no internal locking.
func (c *Controller) Working() *record.Record {
	return c.working
}

// Plan returns the frozen screen plan.
func (c *Controller) Plan() *plan.Plan {
	return c.plan
}

func (c *Controller) env() plan.Env {
	return plan.Env{
		Record:         c.working,
		PasskeyCapable: c.passkeyCapable,
		Variant:        c.variant,
	}
}

// Start moves from init to the first screen still needed under the live
// record. Any other state ignores it.
func (c *Controller) Start() (State, error) {
	if c.state != StateInit {
		c.logger.Debug("ignoring start event outside init state", "state", string(c.state))
		return c.state, nil
	}
	return c.advanceFrom(-1)
}

// Submit merges a screen payload into the working record, then evaluates
// the next forward transition. Re-evaluating against the updated record on
// every step is what lets a mid-flow answer skip downstream screens that
// are no longer applicable. Submitting from the terminal screen completes
// the flow; submitting from init or completed is a logged no-op.
func (c *Controller) Submit(payload map[record.FieldID]record.Value) (State, error) {
	switch c.state {
	case StateInit, StateCompleted:
		c.logger.Debug("ignoring submit event", "state", string(c.state))
		return c.state, nil
	}

	c.working.MergeAll(payload)

	current := plan.ScreenID(c.state)
	if c.editing {
		// Edits from the confirm screen apply directly; forward transitions
		// are not re-run.
		c.editing = false
		c.setScreen(c.plan.Index(plan.ScreenConfirm))
		return c.state, nil
	}
	if current == plan.ScreenConfirm {
		c.state = StateCompleted
		return c.state, nil
	}
	return c.advanceFrom(c.pos)
}

// advanceFrom scans plan entries after the given position and lands on the
// first still applicable one. The confirm entry is always shown, so the scan
// always terminates on a valid state.
func (c *Controller) advanceFrom(after int) (State, error) {
	for i := after + 1; i < c.plan.Len(); i++ {
		needed, err := c.plan.StillNeeded(i, c.env())
		if err != nil {
			return c.state, err
		}
		if needed {
			c.setScreen(i)
			return c.state, nil
		}
	}
	c.state = StateCompleted
	return c.state, nil
}

// Back walks the plan entries before the current position in reverse and
// lands on the first that was unmet in the initial snapshot. Judging by the
// snapshot, not the live record, guarantees the user only returns to screens
// they actually had to fill. With no such screen the event is ignored.
func (c *Controller) Back() (State, error) {
	switch c.state {
	case StateInit, StateCompleted:
		c.logger.Debug("ignoring back event", "state", string(c.state))
		return c.state, nil
	}
	if c.editing {
		// Backing out of an edit returns to confirm without applying
		// anything; the working record was not touched.
		c.editing = false
		c.setScreen(c.plan.Index(plan.ScreenConfirm))
		return c.state, nil
	}
	for i := c.pos - 1; i >= 0; i-- {
		needed, err := c.plan.NeededInSnapshot(i, c.snapshot)
		if err != nil {
			return c.state, err
		}
		if needed {
			c.setScreen(i)
			return c.state, nil
		}
	}
	c.logger.Debug("ignoring back event at first needed screen", "state", string(c.state))
	return c.state, nil
}

// Edit re-enters a collection screen from the confirm screen without
// altering the plan or the position counter. The next Submit applies the
// edit and returns to confirm.
func (c *Controller) Edit(target plan.ScreenID) (State, error) {
	if c.state != ScreenState(plan.ScreenConfirm) {
		c.logger.Debug("ignoring edit event outside confirm screen", "state", string(c.state))
		return c.state, nil
	}
	if !c.plan.Contains(target) || target == plan.ScreenConfirm {
		c.logger.Debug("ignoring edit event for screen outside plan", "target", string(target))
		return c.state, nil
	}
	c.editing = true
	c.state = ScreenState(target)
	c.fireEffect(target)
	return c.state, nil
}

// setScreen moves to the plan entry at index i and fires its entry effect.
func (c *Controller) setScreen(i int) {
	id := c.plan.At(i).ID
	c.pos = i
	c.state = ScreenState(id)
	c.fireEffect(id)
}

// fireEffect runs the screen's declared entry effect. The effectRun guard
// suppresses a duplicate trigger while one is outstanding; it resets when
// the effect returns so a later re-entry fires again. Effects must block
// until their work completes: the guard covers only the synchronous call,
// so work an effect hands off to a goroutine is not protected from a
// re-entrant trigger.
func (c *Controller) fireEffect(id plan.ScreenID) {
	effect, ok := c.effects[id]
	if !ok {
		return
	}
	if c.effectRun[id] {
		c.logger.Debug("suppressing duplicate entry effect", "screen", string(id))
		return
	}
	c.effectRun[id] = true
	defer func() { c.effectRun[id] = false }()
	effect(id)
}
