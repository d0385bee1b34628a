package workflow

// Trigger represents an event that can cause a status transition.
type Trigger string

const (
	TriggerComplete Trigger = "COMPLETE"
	TriggerCancel   Trigger = "CANCEL"
	TriggerExpire   Trigger = "EXPIRE"
	TriggerExclude  Trigger = "EXCLUDE"
	// TriggerReactivate is an administrative reset used by the bulk reset
	// operations only, never by the normal single-voucher flow.
	TriggerReactivate Trigger = "REACTIVATE"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
