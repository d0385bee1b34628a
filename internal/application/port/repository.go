package port

import (
	"context"
	"time"

	"github.com/costaverde/voucher-service/internal/domain/entity"
)

// VoucherFilter narrows a paginated voucher listing. Zero values mean
// "no constraint"; EmbarkDay filters to the calendar day [day, day+24h).
type VoucherFilter struct {
	AgentID        string
	Status         string
	EmbarkDay      *time.Time
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// VoucherRepository defines persistence operations for vouchers.
type VoucherRepository interface {
	Create(ctx context.Context, v *entity.Voucher) error
	GetByID(ctx context.Context, id string) (*entity.Voucher, error)
	// GetByCode looks a voucher up by its human code among non-deleted
	// rows; entity.ErrVoucherNotFound when the code is free.
	GetByCode(ctx context.Context, code string) (*entity.Voucher, error)
	Update(ctx context.Context, v *entity.Voucher) error
	// List returns one page plus the total row count for the filter.
	List(ctx context.Context, filter VoucherFilter) ([]*entity.Voucher, int, error)
	// ListRecent returns the newest non-deleted vouchers of an agent.
	ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Voucher, error)
	// ResetStatuses is the administrative bulk reset: every non-deleted
	// voucher of the agent whose status is in from moves back to active.
	// Returns the number of rows touched.
	ResetStatuses(ctx context.Context, agentID string, from []string, now time.Time) (int64, error)
}

// ActivityRepository defines persistence operations for the audit trail.
// Activities are append-only; there are no update or delete operations.
type ActivityRepository interface {
	Create(ctx context.Context, a *entity.Activity) error
	ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Activity, error)
	ListByVoucher(ctx context.Context, voucherID string) ([]*entity.Activity, error)
}

// TemplateRepository reads document templates owned by an external
// collaborator.
type TemplateRepository interface {
	// GetActiveByTag returns the active template carrying the tag;
	// entity.ErrTemplateNotFound when absent or inactive.
	GetActiveByTag(ctx context.Context, tag string) (*entity.DocumentTemplate, error)
}

// TransactionManager executes a function within a database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
