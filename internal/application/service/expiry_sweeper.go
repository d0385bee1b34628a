package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/audit"
	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

// ExpirySweeper transitions overdue vouchers at read time. There is no
// background scheduler: every list-read path runs the sweep over the rows
// it fetched, so an overdue voucher shows expired the next time anyone
// looks at it.
type ExpirySweeper interface {
	// Sweep expires every overdue voucher in the batch in place,
	// persisting the transition and its audit entry. Per-voucher failures
	// are logged and isolated; Sweep never fails the read that
	// triggered it.
	Sweep(ctx context.Context, vouchers []*entity.Voucher)
}

type expirySweeper struct {
	voucherRepo  port.VoucherRepository
	activityRepo port.ActivityRepository
	machine      *workflow.Machine
	logger       Logger
	now          func() time.Time
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(
	voucherRepo port.VoucherRepository,
	activityRepo port.ActivityRepository,
	machine *workflow.Machine,
	logger Logger,
) ExpirySweeper {
	return &expirySweeper{
		voucherRepo:  voucherRepo,
		activityRepo: activityRepo,
		machine:      machine,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *expirySweeper) Sweep(ctx context.Context, vouchers []*entity.Voucher) {
	now := s.now().UTC()
	for _, v := range vouchers {
		if v.Deleted {
			continue
		}
		switch workflow.Status(v.Status) {
		case workflow.StatusCompleted, workflow.StatusCancelled, workflow.StatusExpired:
			continue
		}
		if !v.EmbarkPassed(now) {
			continue
		}

		before := v.Clone()
		if err := s.machine.Fire(v, workflow.TriggerExpire, now); err != nil {
			s.logger.Warn("Sweep could not expire voucher", "error", err, "voucher_id", v.ID)
			continue
		}

		if err := s.voucherRepo.Update(ctx, v); err != nil {
			// Roll the in-memory row back so the caller does not see a
			// status the store never accepted.
			*v = *before
			s.logger.Warn("Sweep failed to persist expiry", "error", err, "voucher_id", v.ID)
			continue
		}

		for _, a := range audit.Derive(before, v, now) {
			a.ID = uuid.NewString()
			if err := s.activityRepo.Create(ctx, a); err != nil {
				s.logger.Warn("Sweep failed to record activity", "error", err, "voucher_id", v.ID)
			}
		}

		s.logger.Info("Voucher expired by sweep", "voucher_id", v.ID, "code", v.Code)
	}
}
