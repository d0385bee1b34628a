package workflow

import (
	"fmt"
	"time"

	"github.com/costaverde/voucher-service/internal/domain/entity"
)

// GuardFunc evaluates whether a transition is allowed for the given
// voucher snapshot at the given instant.
type GuardFunc func(v *entity.Voucher, now time.Time) bool

// transition is a target status with an optional guard.
type transition struct {
	toStatus Status
	guard    GuardFunc
}

// Machine validates and applies voucher status transitions. A Machine is
// immutable after Build and safe for concurrent use; the voucher row itself
// carries the state.
type Machine struct {
	transitions map[Status]map[Trigger][]transition
}

// Builder configures the transition table for a Machine.
type Builder struct {
	transitions map[Status]map[Trigger][]transition
}

// StatusConfiguration configures transitions out of a single status.
type StatusConfiguration struct {
	builder    *Builder
	fromStatus Status
}

// NewBuilder creates a new machine builder.
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[Status]map[Trigger][]transition)}
}

// Configure returns the configuration for transitions out of a status.
func (b *Builder) Configure(status Status) *StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("workflow: configuring invalid status %q", status))
	}
	if _, ok := b.transitions[status]; !ok {
		b.transitions[status] = make(map[Trigger][]transition)
	}
	return &StatusConfiguration{builder: b, fromStatus: status}
}

// Permit allows the trigger to transition to the target status unconditionally.
func (c *StatusConfiguration) Permit(trigger Trigger, toStatus Status) *StatusConfiguration {
	return c.PermitIf(trigger, toStatus, nil)
}

// PermitIf allows the trigger to transition to the target status when the
// guard passes.
func (c *StatusConfiguration) PermitIf(trigger Trigger, toStatus Status, guard GuardFunc) *StatusConfiguration {
	if !toStatus.IsValid() {
		panic(fmt.Sprintf("workflow: invalid target status %q", toStatus))
	}
	t := c.builder.transitions[c.fromStatus]
	t[trigger] = append(t[trigger], transition{toStatus: toStatus, guard: guard})
	return c
}

// Build creates an immutable machine from the configured transitions.
func (b *Builder) Build() *Machine {
	copied := make(map[Status]map[Trigger][]transition, len(b.transitions))
	for status, byTrigger := range b.transitions {
		m := make(map[Trigger][]transition, len(byTrigger))
		for trigger, ts := range byTrigger {
			m[trigger] = append([]transition(nil), ts...)
		}
		copied[status] = m
	}
	return &Machine{transitions: copied}
}

// CanFire returns true if at least one transition is configured for the
// trigger in the voucher's current status. Guards are not evaluated.
func (m *Machine) CanFire(v *entity.Voucher, trigger Trigger) bool {
	status := Status(v.Status)
	if status.IsTerminal() {
		return false
	}
	byTrigger, ok := m.transitions[status]
	if !ok {
		return false
	}
	return len(byTrigger[trigger]) > 0
}

// PermittedTriggers returns the triggers configured for the voucher's
// current status.
func (m *Machine) PermittedTriggers(v *entity.Voucher) []Trigger {
	status := Status(v.Status)
	if status.IsTerminal() {
		return nil
	}
	byTrigger, ok := m.transitions[status]
	if !ok {
		return nil
	}
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	return triggers
}

// Fire applies the trigger to the voucher in place. On success the new
// status and updated timestamp are stamped on the voucher; a transition
// into excluded additionally sets the soft-delete marker so the two fields
// can never disagree. The voucher is left untouched on error.
func (m *Machine) Fire(v *entity.Voucher, trigger Trigger, now time.Time) error {
	status := Status(v.Status)
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, v.Status)
	}
	if status.IsTerminal() {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrTerminalState, trigger, status)
	}

	byTrigger, ok := m.transitions[status]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, status)
	}
	candidates := byTrigger[trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, status)
	}

	for _, t := range candidates {
		if t.guard != nil && !t.guard(v, now) {
			continue
		}
		v.Status = t.toStatus.String()
		v.UpdatedAt = now
		if t.toStatus == StatusExcluded {
			v.Deleted = true
			deletedAt := now
			v.DeletedAt = &deletedAt
		}
		return nil
	}

	return fmt.Errorf("%w: %s from %s", ErrPreconditionFailed, trigger, status)
}
