package workflow

// Status represents a voucher lifecycle status.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusExcluded  Status = "excluded"
)

var validStatuses = map[Status]bool{
	StatusActive:    true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusExpired:   true,
	StatusExcluded:  true,
}

// Sinks with respect to normal operations: once reached, no further
// status mutation is accepted.
var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusExcluded:  true,
}

// IsTerminal returns true if the status is terminal (no outgoing transitions).
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a known voucher status.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
