// Package audit derives append-only activity records from voucher
// mutations. Derivation is a pure function of a before/after snapshot
// pair; persisting the result (best effort, never blocking the voucher
// write) is the caller's job.
package audit

import (
	"time"

	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

// Activity titles and notes observed by the sales dashboard. Changing any
// of these changes what the team sees in the feed.
const (
	TitleVoucherCreated   = "New voucher created"
	TitleVoucherUpdated   = "Voucher updated"
	TitlePaymentReceived  = "Payment received"
	TitleVoucherFinalized = "Voucher finalized"
	TitleVoucherExpired   = "Voucher expired"

	NotePartialPayment = "Partial payment registered"
	NoteAutoExpired    = "Automatically expired: embark date passed"
)

// Derive computes the activities triggered by the delta between two
// voucher snapshots. A nil before means the voucher was just created. The
// rules are evaluated in order and are independently applicable; equal
// snapshots yield nothing.
func Derive(before, after *entity.Voucher, now time.Time) []*entity.Activity {
	if after == nil {
		return nil
	}

	if before == nil {
		return []*entity.Activity{newActivity(after, now, entity.ActivityVoucherCreated, TitleVoucherCreated, nil, "")}
	}

	var activities []*entity.Activity

	// A partial-payment delta reuses the voucher_finalized type. That is
	// inherited behavior the feed relies on, not a typo.
	if delta := after.PartialAmount - before.PartialAmount; delta > 0 {
		a := newActivity(after, now, entity.ActivityVoucherFinalized, TitleVoucherUpdated, &delta, NotePartialPayment)
		activities = append(activities, a)
	}

	if delta := after.EmbarkAmount - before.EmbarkAmount; delta > 0 {
		a := newActivity(after, now, entity.ActivityPaymentReceived, TitlePaymentReceived, &delta, "")
		activities = append(activities, a)
	}

	if transitioned(before, after, workflow.StatusCompleted) && after.EmbarkAmount > 0 {
		amount := after.EmbarkAmount
		a := newActivity(after, now, entity.ActivityVoucherFinalized, TitleVoucherFinalized, &amount, "")
		activities = append(activities, a)
	}

	if transitioned(before, after, workflow.StatusExpired) {
		a := newActivity(after, now, entity.ActivityVoucherExpired, TitleVoucherExpired, nil, NoteAutoExpired)
		activities = append(activities, a)
	}

	return activities
}

func transitioned(before, after *entity.Voucher, to workflow.Status) bool {
	return before.Status != to.String() && after.Status == to.String()
}

func newActivity(v *entity.Voucher, now time.Time, typ entity.ActivityType, title string, amount *float64, note string) *entity.Activity {
	return &entity.Activity{
		AgentID:   v.AgentID,
		CreatedAt: now,
		Type:      typ,
		Title:     title,
		Subtitle:  v.PackageName,
		Amount:    amount,
		VoucherID: v.ID,
		Note:      note,
	}
}
