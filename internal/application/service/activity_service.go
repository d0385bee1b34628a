package service

import (
	"context"
	"fmt"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/entity"
)

// defaultActivityLimit caps the recent-activity feed when the caller does
// not ask for a specific size.
const defaultActivityLimit = 20

// ActivityService reads the audit trail. Activities are written only as a
// side effect of voucher mutations, so the service is read-only.
type ActivityService interface {
	ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Activity, error)
	ListByVoucher(ctx context.Context, agentID, voucherID string) ([]*entity.Activity, error)
}

type activityServiceImpl struct {
	activityRepo port.ActivityRepository
	voucherRepo  port.VoucherRepository
	logger       Logger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(activityRepo port.ActivityRepository, voucherRepo port.VoucherRepository, logger Logger) ActivityService {
	return &activityServiceImpl{
		activityRepo: activityRepo,
		voucherRepo:  voucherRepo,
		logger:       logger,
	}
}

// ListRecent returns the agent's newest activities, newest first.
func (s *activityServiceImpl) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Activity, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}
	if limit < 1 || limit > 100 {
		limit = defaultActivityLimit
	}

	activities, err := s.activityRepo.ListRecent(ctx, agentID, limit)
	if err != nil {
		s.logger.Error("Failed to list activities", "error", err, "agent_id", agentID)
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// ListByVoucher returns the full trail of one voucher owned by the agent.
func (s *activityServiceImpl) ListByVoucher(ctx context.Context, agentID, voucherID string) ([]*entity.Activity, error) {
	if agentID == "" {
		return nil, entity.ErrNotAuthenticated
	}

	v, err := s.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	if v.AgentID != agentID {
		return nil, entity.ErrVoucherNotFound
	}

	activities, err := s.activityRepo.ListByVoucher(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("list voucher activities: %w", err)
	}
	return activities, nil
}
