package plan

import (
	"idv/internal/flow/record"
)

// Requirement is the caller's declaration of what must be collected.
// Missing categories drive screen selection; populated categories are known
// satisfied upstream; optional categories render as extra inputs on screens
// already present but never add screens on their own.
type Requirement struct {
	Missing   []Category
	Populated []Category
	Optional  []Category
}

// Plan is the frozen, ordered subsequence of screens computed once per flow.
// It never changes shape afterward: if a screen vanished because the user's
// own edits satisfied it, the user could be stranded with no valid forward
// transition. Navigation skips entries instead.
type Plan struct {
	screens []Screen
}

// Resolve computes the screen plan from the requirement and the initial
// record. It walks the fixed master ordering and keeps every screen with at
// least one required category unsatisfied in the initial record, plus every
// always-shown screen. An unmapped category is a configuration error and
// fails fast rather than silently skipping a required screen.
func Resolve(req Requirement, initial *record.Record) (*Plan, error) {
	requested := make(map[Category]bool, len(req.Missing))
	for _, c := range req.Missing {
		// Validate the mapping up front so a bad requirement cannot surface
		// later as a silently absent screen.
		if _, err := Fields(c); err != nil {
			return nil, err
		}
		requested[c] = true
	}
	for _, c := range append(append([]Category{}, req.Populated...), req.Optional...) {
		if _, err := Fields(c); err != nil {
			return nil, err
		}
	}

	var screens []Screen
	for _, s := range master {
		if s.AlwaysShown {
			screens = append(screens, s)
			continue
		}
		// A plan entry carries only the categories the caller actually
		// requested; navigation must not hold a screen open for a category
		// nobody asked to collect.
		unmet, err := unmetRequested(s, requested, initial)
		if err != nil {
			return nil, err
		}
		if len(unmet) == 0 {
			continue
		}
		entry := s
		entry.Categories = unmet
		screens = append(screens, entry)
	}
	return &Plan{screens: screens}, nil
}

func unmetRequested(s Screen, requested map[Category]bool, r *record.Record) ([]Category, error) {
	var unmet []Category
	for _, c := range s.Categories {
		if !requested[c] {
			continue
		}
		missing, err := Missing(c, r)
		if err != nil {
			return nil, err
		}
		if missing {
			unmet = append(unmet, c)
		}
	}
	return unmet, nil
}

// Screens returns the plan's entries in order.
func (p *Plan) Screens() []Screen {
	out := make([]Screen, len(p.screens))
	copy(out, p.screens)
	return out
}

// ScreenIDs returns just the ordered identifiers.
func (p *Plan) ScreenIDs() []ScreenID {
	out := make([]ScreenID, 0, len(p.screens))
	for _, s := range p.screens {
		out = append(out, s.ID)
	}
	return out
}

// Len returns the number of plan entries.
func (p *Plan) Len() int {
	return len(p.screens)
}

// At returns the entry at position i.
func (p *Plan) At(i int) Screen {
	return p.screens[i]
}

// Index returns the position of a screen in the plan, -1 if absent.
func (p *Plan) Index(id ScreenID) int {
	for i, s := range p.screens {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether the plan includes the screen.
func (p *Plan) Contains(id ScreenID) bool {
	return p.Index(id) >= 0
}

// StillNeeded reports whether the screen at position i remains applicable
// under the live record: a required category is still missing and the
// predicate, if any, holds.
func (p *Plan) StillNeeded(i int, env Env) (bool, error) {
	s := p.screens[i]
	if s.Predicate != nil && !s.Predicate(env) {
		return false, nil
	}
	if s.AlwaysShown {
		return true, nil
	}
	for _, c := range s.Categories {
		missing, err := Missing(c, env.Record)
		if err != nil {
			return false, err
		}
		if missing {
			return true, nil
		}
	}
	return false, nil
}

// NeededInSnapshot reports whether the screen at position i was unmet in the
// initial snapshot. Backward navigation uses this, never the live record, so
// the user only ever lands on screens they actually had to fill.
func (p *Plan) NeededInSnapshot(i int, snapshot *record.Record) (bool, error) {
	s := p.screens[i]
	if s.AlwaysShown {
		// The terminal screen is forward-only; going "back" to confirm makes
		// no sense mid-flow.
		return false, nil
	}
	for _, c := range s.Categories {
		missing, err := Missing(c, snapshot)
		if err != nil {
			return false, err
		}
		if missing {
			return true, nil
		}
	}
	return false, nil
}
