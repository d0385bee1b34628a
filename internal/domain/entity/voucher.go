package entity

import "time"

// Voucher is a single sale/booking record tracked through its lifecycle.
// Status moves through the transitions defined in the workflow package;
// "deletion" is a soft-delete paired with the excluded status, rows are
// never physically removed.
type Voucher struct {
	ID             string     `json:"id"`
	Code           string     `json:"voucher_code"`
	AgentID        string     `json:"agent_id"`
	ClientName     string     `json:"client_name"`
	ClientPhone    string     `json:"client_phone"`
	PackageName    string     `json:"package_name"`
	Adults         int        `json:"adults"`
	Children       int        `json:"children"`
	EmbarkLocation string     `json:"embark_location"`
	EmbarkTime     string     `json:"embark_time"`
	EmbarkDate     *time.Time `json:"embark_date,omitempty"`
	PartialAmount  float64    `json:"partial_amount"`
	EmbarkAmount   float64    `json:"embark_amount"`
	Notes          string     `json:"notes"`
	Status         string     `json:"status"`
	Deleted        bool       `json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Clone returns a copy of the voucher. Snapshots handed to the audit
// derivation must not alias the row being mutated.
func (v *Voucher) Clone() *Voucher {
	if v == nil {
		return nil
	}
	c := *v
	if v.EmbarkDate != nil {
		d := *v.EmbarkDate
		c.EmbarkDate = &d
	}
	if v.DeletedAt != nil {
		d := *v.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// EmbarkPassed reports whether the scheduled embark date is strictly
// before the given instant. Vouchers without an embark date never expire.
func (v *Voucher) EmbarkPassed(now time.Time) bool {
	return v.EmbarkDate != nil && v.EmbarkDate.Before(now)
}
