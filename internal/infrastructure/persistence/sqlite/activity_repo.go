package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/entity"
)

const activityColumns = `id, agent_id, type, title, subtitle, amount, voucher_id, note, created_at`

// ActivityRepository implements port.ActivityRepository over sqlite. The
// activities table is append-only.
type ActivityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB, logger *zap.Logger) port.ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one activity row
func (r *ActivityRepository) Create(ctx context.Context, a *entity.Activity) error {
	query := `
		INSERT INTO activities (` + activityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		a.ID,
		a.AgentID,
		string(a.Type),
		a.Title,
		a.Subtitle,
		a.Amount,
		a.VoucherID,
		a.Note,
		a.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create activity", zap.Error(err))
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}

// ListRecent returns the agent's newest activities
func (r *ActivityRepository) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE agent_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, agentID, limit)
	if err != nil {
		r.logger.Error("Failed to list activities", zap.String("agent_id", agentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	return collectActivities(rows)
}

// ListByVoucher returns the full trail of one voucher, oldest first
func (r *ActivityRepository) ListByVoucher(ctx context.Context, voucherID string) ([]*entity.Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE voucher_id = ?
		ORDER BY created_at ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, voucherID)
	if err != nil {
		r.logger.Error("Failed to list voucher activities", zap.String("voucher_id", voucherID), zap.Error(err))
		return nil, fmt.Errorf("failed to list voucher activities: %w", err)
	}
	defer rows.Close()

	return collectActivities(rows)
}

func collectActivities(rows *sql.Rows) ([]*entity.Activity, error) {
	var activities []*entity.Activity
	for rows.Next() {
		var a entity.Activity
		var activityType string
		var amount sql.NullFloat64

		err := rows.Scan(
			&a.ID,
			&a.AgentID,
			&activityType,
			&a.Title,
			&a.Subtitle,
			&amount,
			&a.VoucherID,
			&a.Note,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		a.Type = entity.ActivityType(activityType)
		if amount.Valid {
			a.Amount = &amount.Float64
		}

		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}

// Verify interface compliance
var _ port.ActivityRepository = (*ActivityRepository)(nil)
