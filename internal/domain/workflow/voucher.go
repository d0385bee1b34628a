package workflow

import (
	"time"

	"github.com/costaverde/voucher-service/internal/domain/entity"
)

// NewVoucherMachine builds the machine for the voucher lifecycle:
//
//	active    -> completed   (embark amount must be paid)
//	active    -> cancelled
//	active    -> expired     (embark date already passed)
//	active    -> excluded
//	cancelled -> excluded
//	cancelled -> active      (administrative reset)
//	expired   -> excluded
//
// completed and excluded are sinks.
func NewVoucherMachine() *Machine {
	b := NewBuilder()

	b.Configure(StatusActive).
		PermitIf(TriggerComplete, StatusCompleted, embarkAmountPaid).
		Permit(TriggerCancel, StatusCancelled).
		PermitIf(TriggerExpire, StatusExpired, embarkDatePassed).
		Permit(TriggerExclude, StatusExcluded)

	b.Configure(StatusCancelled).
		Permit(TriggerExclude, StatusExcluded).
		Permit(TriggerReactivate, StatusActive)

	b.Configure(StatusExpired).
		Permit(TriggerExclude, StatusExcluded)

	return b.Build()
}

func embarkAmountPaid(v *entity.Voucher, _ time.Time) bool {
	return v.EmbarkAmount > 0
}

func embarkDatePassed(v *entity.Voucher, now time.Time) bool {
	return v.EmbarkPassed(now)
}
