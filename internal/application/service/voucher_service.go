package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/audit"
	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

// CreateVoucherInput carries the fields for a new voucher.
type CreateVoucherInput struct {
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
}

// UpdateVoucherInput carries a partial update; nil fields are untouched.
// Status is never updated through here, only through the transition
// operations.
type UpdateVoucherInput struct {
	ClientName     *string    `json:"client_name,omitempty"`
	ClientPhone    *string    `json:"client_phone,omitempty"`
	PackageName    *string    `json:"package_name,omitempty"`
	Adults         *int       `json:"adults,omitempty"`
	Children       *int       `json:"children,omitempty"`
	EmbarkLocation *string    `json:"embark_location,omitempty"`
	EmbarkTime     *string    `json:"embark_time,omitempty"`
	EmbarkDate     *time.Time `json:"embark_date,omitempty"`
	PartialAmount  *float64   `json:"partial_amount,omitempty"`
	EmbarkAmount   *float64   `json:"embark_amount,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// ListOptions narrows a voucher listing.
type ListOptions struct {
	Page      int
	PageSize  int
	Status    string
	EmbarkDay *time.Time
}

// VoucherPage is one page of a listing plus the total row count.
type VoucherPage struct {
	Items []*entity.Voucher `json:"items"`
	Total int               `json:"total"`
}

// ResetMode selects which statuses the administrative bulk reset touches.
type ResetMode string

const (
	// ResetCancelled moves cancelled vouchers back to active.
	ResetCancelled ResetMode = "cancelled"
	// ResetAll moves expired, completed and cancelled vouchers back to
	// active.
	ResetAll ResetMode = "all"
)

// VoucherService manages the voucher lifecycle. Every operation takes the
// authenticated agent identity explicitly; there is no ambient session.
type VoucherService interface {
	Create(ctx context.Context, agentID string, input CreateVoucherInput) (*entity.Voucher, error)
	Get(ctx context.Context, agentID, id string) (*entity.Voucher, error)
	Update(ctx context.Context, agentID, id string, input UpdateVoucherInput) (*entity.Voucher, error)
	Finalize(ctx context.Context, agentID, id string) (*entity.Voucher, error)
	Cancel(ctx context.Context, agentID, id string) (*entity.Voucher, error)
	Exclude(ctx context.Context, agentID, id string) (*entity.Voucher, error)
	List(ctx context.Context, agentID string, opts ListOptions) (*VoucherPage, error)
	ListAll(ctx context.Context, opts ListOptions) (*VoucherPage, error)
	ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Voucher, error)
	ResetStatuses(ctx context.Context, agentID string, mode ResetMode) (int64, error)
}

type voucherServiceImpl struct {
	voucherRepo  port.VoucherRepository
	activityRepo port.ActivityRepository
	txManager    port.TransactionManager
	codeGen      CodeGenerator
	machine      *workflow.Machine
	sweeper      ExpirySweeper
	logger       Logger
}

// NewVoucherService creates a new VoucherService.
func NewVoucherService(
	voucherRepo port.VoucherRepository,
	activityRepo port.ActivityRepository,
	txManager port.TransactionManager,
	codeGen CodeGenerator,
	machine *workflow.Machine,
	sweeper ExpirySweeper,
	logger Logger,
) VoucherService {
	return &voucherServiceImpl{
		voucherRepo:  voucherRepo,
		activityRepo: activityRepo,
		txManager:    txManager,
		codeGen:      codeGen,
		machine:      machine,
		sweeper:      sweeper,
		logger:       logger,
	}
}

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var listStatuses = map[string]bool{
	"":                                true,
	"all":                             true,
	workflow.StatusActive.String():    true,
	workflow.StatusCompleted.String(): true,
	workflow.StatusCancelled.String(): true,
	workflow.StatusExpired.String():   true,
}

// Create validates the input, draws a unique voucher code and inserts the
// voucher in the active status. The insert sits inside the draw loop: two
// concurrent creates can pass the availability check with the same code, and
// the loser of that race learns it from the unique index on insert, so a
// duplicate-code insert redraws just like a failed availability check. The
// creation activity is recorded best effort after the insert.
func (s *voucherServiceImpl) Create(ctx context.Context, agentID string, input CreateVoucherInput) (*entity.Voucher, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.codeGen.Generate(now)
		_, err := s.voucherRepo.GetByCode(ctx, code)
		if err == nil {
			// Code already in use, draw again.
			continue
		}
		if !errors.Is(err, entity.ErrVoucherNotFound) {
			return nil, fmt.Errorf("check voucher code: %w", err)
		}

		v := &entity.Voucher{
			ID:             uuid.NewString(),
			Code:           code,
			AgentID:        agentID,
			ClientName:     strings.TrimSpace(input.ClientName),
			ClientPhone:    strings.TrimSpace(input.ClientPhone),
			PackageName:    strings.TrimSpace(input.PackageName),
			Adults:         input.Adults,
			Children:       input.Children,
			EmbarkLocation: strings.TrimSpace(input.EmbarkLocation),
			EmbarkTime:     input.EmbarkTime,
			EmbarkDate:     input.EmbarkDate,
			PartialAmount:  input.PartialAmount,
			EmbarkAmount:   input.EmbarkAmount,
			Notes:          input.Notes,
			Status:         workflow.StatusActive.String(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := s.voucherRepo.Create(ctx, v); err != nil {
			if errors.Is(err, entity.ErrDuplicateCode) {
				// Lost the race for this code after the availability check.
				continue
			}
			s.logger.Error("Failed to create voucher", "error", err, "agent_id", agentID)
			return nil, fmt.Errorf("create voucher: %w", err)
		}

		s.recordActivities(ctx, nil, v, now)

		s.logger.Info("Voucher created", "voucher_id", v.ID, "code", v.Code, "agent_id", agentID)
		return v, nil
	}

	s.logger.Warn("Voucher code generation exhausted", "attempts", maxCodeAttempts)
	return nil, entity.ErrCodeExhausted
}

// Get returns one voucher owned by the agent.
func (s *voucherServiceImpl) Get(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}
	return s.getOwned(ctx, agentID, id)
}

func (s *voucherServiceImpl) getOwned(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	v, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Vouchers of other agents are indistinguishable from missing ones.
	if v.AgentID != agentID {
		return nil, entity.ErrVoucherNotFound
	}
	return v, nil
}

// Update applies a partial field update. Status is untouched; tranche
// increases surface in the audit trail.
func (s *voucherServiceImpl) Update(ctx context.Context, agentID, id string, input UpdateVoucherInput) (*entity.Voucher, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}

	now := time.Now().UTC()
	var v, before *entity.Voucher
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		v, err = s.getOwned(txCtx, agentID, id)
		if err != nil {
			return err
		}
		if v.Deleted {
			return fmt.Errorf("%w: voucher is excluded", workflow.ErrTerminalState)
		}

		before = v.Clone()
		if err := applyUpdateInput(v, input); err != nil {
			return err
		}

		v.UpdatedAt = now
		if err := s.voucherRepo.Update(txCtx, v); err != nil {
			s.logger.Error("Failed to update voucher", "error", err, "voucher_id", id)
			return fmt.Errorf("update voucher: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordActivities(ctx, before, v, now)
	return v, nil
}

// Finalize moves an active voucher to completed. Fails with
// workflow.ErrPreconditionFailed when no embark payment is registered.
func (s *voucherServiceImpl) Finalize(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	return s.transition(ctx, agentID, id, workflow.TriggerComplete)
}

// Cancel moves an active voucher to cancelled.
func (s *voucherServiceImpl) Cancel(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	return s.transition(ctx, agentID, id, workflow.TriggerCancel)
}

// Exclude soft-deletes the voucher: status excluded plus the deletion
// marker, in one write.
func (s *voucherServiceImpl) Exclude(ctx context.Context, agentID, id string) (*entity.Voucher, error) {
	return s.transition(ctx, agentID, id, workflow.TriggerExclude)
}

func (s *voucherServiceImpl) transition(ctx context.Context, agentID, id string, trigger workflow.Trigger) (*entity.Voucher, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}

	now := time.Now().UTC()
	var v, before *entity.Voucher
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		v, err = s.getOwned(txCtx, agentID, id)
		if err != nil {
			return err
		}

		before = v.Clone()
		if err := s.machine.Fire(v, trigger, now); err != nil {
			return err
		}

		if err := s.voucherRepo.Update(txCtx, v); err != nil {
			s.logger.Error("Failed to persist transition", "error", err, "voucher_id", id, "trigger", trigger)
			return fmt.Errorf("persist transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Activities are appended outside the transaction: a failed audit
	// write must never roll back the voucher mutation.
	s.recordActivities(ctx, before, v, now)

	s.logger.Info("Voucher transitioned",
		"voucher_id", id, "trigger", trigger, "from", before.Status, "to", v.Status)
	return v, nil
}

// List returns one page of the agent's non-deleted vouchers, newest
// first, after the expiry sweep has run over the page.
func (s *voucherServiceImpl) List(ctx context.Context, agentID string, opts ListOptions) (*VoucherPage, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}
	return s.list(ctx, port.VoucherFilter{
		AgentID:   agentID,
		Status:    opts.Status,
		EmbarkDay: opts.EmbarkDay,
		Page:      opts.Page,
		PageSize:  opts.PageSize,
	}, opts)
}

// ListAll is the administrative listing across every agent, deleted rows
// included.
func (s *voucherServiceImpl) ListAll(ctx context.Context, opts ListOptions) (*VoucherPage, error) {
	return s.list(ctx, port.VoucherFilter{
		Status:         opts.Status,
		EmbarkDay:      opts.EmbarkDay,
		IncludeDeleted: true,
		Page:           opts.Page,
		PageSize:       opts.PageSize,
	}, opts)
}

func (s *voucherServiceImpl) list(ctx context.Context, filter port.VoucherFilter, opts ListOptions) (*VoucherPage, error) {
	if !listStatuses[opts.Status] {
		return nil, entity.NewValidationError("status", "unknown status filter")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 20
	}

	items, total, err := s.voucherRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list vouchers", "error", err)
		return nil, fmt.Errorf("list vouchers: %w", err)
	}

	s.sweeper.Sweep(ctx, items)

	return &VoucherPage{Items: items, Total: total}, nil
}

// ListRecent returns the agent's newest vouchers, swept.
func (s *voucherServiceImpl) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Voucher, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	items, err := s.voucherRepo.ListRecent(ctx, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent vouchers: %w", err)
	}

	s.sweeper.Sweep(ctx, items)
	return items, nil
}

// ResetStatuses is the administrative bulk reset. It writes through the
// repository directly: the reset deliberately reopens vouchers that the
// machine treats as sinks, which is why it exists as a separate
// operation instead of a transition.
func (s *voucherServiceImpl) ResetStatuses(ctx context.Context, agentID string, mode ResetMode) (int64, error) {
	if agentID == "" {
		return 0, entity.ErrNotAuthenticated
	}

	var from []string
	switch mode {
	case ResetCancelled:
		from = []string{workflow.StatusCancelled.String()}
	case ResetAll:
		from = []string{
			workflow.StatusExpired.String(),
			workflow.StatusCompleted.String(),
			workflow.StatusCancelled.String(),
		}
	default:
		return 0, entity.NewValidationError("mode", "must be cancelled or all")
	}

	count, err := s.voucherRepo.ResetStatuses(ctx, agentID, from, time.Now().UTC())
	if err != nil {
		s.logger.Error("Failed to reset voucher statuses", "error", err, "agent_id", agentID, "mode", mode)
		return 0, fmt.Errorf("reset statuses: %w", err)
	}

	s.logger.Info("Voucher statuses reset", "agent_id", agentID, "mode", mode, "count", count)
	return count, nil
}

// recordActivities derives and appends the audit entries for a mutation.
// The voucher write is the source of truth: a failed activity insert is
// logged and swallowed, never surfaced to the caller.
func (s *voucherServiceImpl) recordActivities(ctx context.Context, before, after *entity.Voucher, now time.Time) {
	for _, a := range audit.Derive(before, after, now) {
		a.ID = uuid.NewString()
		if err := s.activityRepo.Create(ctx, a); err != nil {
			s.logger.Warn("Failed to record activity",
				"error", err, "voucher_id", after.ID, "type", a.Type)
		}
	}
}

func validateCreateInput(input CreateVoucherInput) error {
	if len(strings.TrimSpace(input.ClientName)) < 2 {
		return entity.NewValidationError("client_name", "must have at least 2 characters")
	}
	if len(strings.TrimSpace(input.PackageName)) < 2 {
		return entity.NewValidationError("package_name", "must have at least 2 characters")
	}
	if input.Adults < 1 {
		return entity.NewValidationError("adults", "at least 1 adult is required")
	}
	if input.Children < 0 {
		return entity.NewValidationError("children", "must not be negative")
	}
	if input.EmbarkTime != "" && !timePattern.MatchString(input.EmbarkTime) {
		return entity.NewValidationError("embark_time", "must be HH:MM")
	}
	if input.PartialAmount < 0 {
		return entity.NewValidationError("partial_amount", "must not be negative")
	}
	if input.EmbarkAmount < 0 {
		return entity.NewValidationError("embark_amount", "must not be negative")
	}
	return nil
}

func applyUpdateInput(v *entity.Voucher, input UpdateVoucherInput) error {
	if input.ClientName != nil {
		if len(strings.TrimSpace(*input.ClientName)) < 2 {
			return entity.NewValidationError("client_name", "must have at least 2 characters")
		}
		v.ClientName = strings.TrimSpace(*input.ClientName)
	}
	if input.ClientPhone != nil {
		v.ClientPhone = strings.TrimSpace(*input.ClientPhone)
	}
	if input.PackageName != nil {
		if len(strings.TrimSpace(*input.PackageName)) < 2 {
			return entity.NewValidationError("package_name", "must have at least 2 characters")
		}
		v.PackageName = strings.TrimSpace(*input.PackageName)
	}
	if input.Adults != nil {
		if *input.Adults < 1 {
			return entity.NewValidationError("adults", "at least 1 adult is required")
		}
		v.Adults = *input.Adults
	}
	if input.Children != nil {
		if *input.Children < 0 {
			return entity.NewValidationError("children", "must not be negative")
		}
		v.Children = *input.Children
	}
	if input.EmbarkLocation != nil {
		v.EmbarkLocation = strings.TrimSpace(*input.EmbarkLocation)
	}
	if input.EmbarkTime != nil {
		if *input.EmbarkTime != "" && !timePattern.MatchString(*input.EmbarkTime) {
			return entity.NewValidationError("embark_time", "must be HH:MM")
		}
		v.EmbarkTime = *input.EmbarkTime
	}
	if input.EmbarkDate != nil {
		v.EmbarkDate = input.EmbarkDate
	}
	if input.PartialAmount != nil {
		if *input.PartialAmount < 0 {
			return entity.NewValidationError("partial_amount", "must not be negative")
		}
		v.PartialAmount = *input.PartialAmount
	}
	if input.EmbarkAmount != nil {
		if *input.EmbarkAmount < 0 {
			return entity.NewValidationError("embark_amount", "must not be negative")
		}
		v.EmbarkAmount = *input.EmbarkAmount
	}
	if input.Notes != nil {
		v.Notes = *input.Notes
	}
	return nil
}
