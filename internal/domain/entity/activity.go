package entity

import "time"

// ActivityType classifies audit-trail entries.
type ActivityType string

const (
	ActivityVoucherCreated  ActivityType = "voucher_created"
	ActivityPaymentReceived ActivityType = "payment_received"
	// ActivityVoucherFinalized is emitted both when a voucher completes and
	// when a partial-payment delta is registered. The double duty is
	// inherited behavior that dashboards already depend on.
	ActivityVoucherFinalized ActivityType = "voucher_finalized"
	ActivityVoucherExpired   ActivityType = "voucher_expired"
)

// Activity is an immutable audit record describing a business event on a
// voucher. Activities are only ever created as a side effect of a voucher
// mutation and are never updated or deleted afterwards.
type Activity struct {
	ID        string       `json:"id"`
	AgentID   string       `json:"agent_id"`
	CreatedAt time.Time    `json:"created_at"`
	Type      ActivityType `json:"type"`
	Title     string       `json:"title"`
	Subtitle  string       `json:"subtitle,omitempty"`
	Amount    *float64     `json:"amount,omitempty"`
	VoucherID string       `json:"voucher_id"`
	Note      string       `json:"note,omitempty"`
}
