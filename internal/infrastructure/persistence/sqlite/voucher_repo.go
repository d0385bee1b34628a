package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

const voucherColumns = `id, code, agent_id, client_name, client_phone, package_name,
	adults, children, embark_location, embark_time, embark_date,
	partial_amount, embark_amount, notes, status, deleted, deleted_at,
	created_at, updated_at`

// VoucherRepository implements port.VoucherRepository over sqlite.
type VoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *sql.DB, logger *zap.Logger) port.VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new voucher row
func (r *VoucherRepository) Create(ctx context.Context, v *entity.Voucher) error {
	query := `
		INSERT INTO vouchers (` + voucherColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		v.ID,
		v.Code,
		v.AgentID,
		v.ClientName,
		v.ClientPhone,
		v.PackageName,
		v.Adults,
		v.Children,
		v.EmbarkLocation,
		v.EmbarkTime,
		v.EmbarkDate,
		v.PartialAmount,
		v.EmbarkAmount,
		v.Notes,
		v.Status,
		v.Deleted,
		v.DeletedAt,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		// The only unique index on vouchers besides the primary key is the
		// partial one on code, so a unique violation here means the code was
		// taken between the availability check and the insert.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("insert voucher %s: %w", v.Code, entity.ErrDuplicateCode)
		}
		r.logger.Error("Failed to create voucher", zap.Error(err))
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	return nil
}

// GetByID retrieves a voucher by its identifier, deleted rows included
func (r *VoucherRepository) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = ?`

	v, err := scanVoucher(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrVoucherNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get voucher", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}

	return v, nil
}

// GetByCode retrieves a non-deleted voucher by its human code
func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*entity.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = ? AND deleted = 0`

	v, err := scanVoucher(getExecutor(ctx, r.db).QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrVoucherNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get voucher by code", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher by code: %w", err)
	}

	return v, nil
}

// Update writes every mutable column of the voucher row
func (r *VoucherRepository) Update(ctx context.Context, v *entity.Voucher) error {
	query := `
		UPDATE vouchers
		SET client_name = ?, client_phone = ?, package_name = ?,
			adults = ?, children = ?, embark_location = ?, embark_time = ?,
			embark_date = ?, partial_amount = ?, embark_amount = ?,
			notes = ?, status = ?, deleted = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		v.ClientName,
		v.ClientPhone,
		v.PackageName,
		v.Adults,
		v.Children,
		v.EmbarkLocation,
		v.EmbarkTime,
		v.EmbarkDate,
		v.PartialAmount,
		v.EmbarkAmount,
		v.Notes,
		v.Status,
		v.Deleted,
		v.DeletedAt,
		v.UpdatedAt,
		v.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update voucher", zap.String("id", v.ID), zap.Error(err))
		return fmt.Errorf("failed to update voucher: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return entity.ErrVoucherNotFound
	}

	return nil
}

// List returns one page of vouchers matching the filter, newest first,
// plus the total row count for the same filter.
func (r *VoucherRepository) List(ctx context.Context, filter port.VoucherFilter) ([]*entity.Voucher, int, error) {
	conditions := sq.And{}
	if !filter.IncludeDeleted {
		conditions = append(conditions, sq.Eq{"deleted": 0})
	}
	if filter.AgentID != "" {
		conditions = append(conditions, sq.Eq{"agent_id": filter.AgentID})
	}
	if filter.Status != "" && filter.Status != "all" {
		conditions = append(conditions, sq.Eq{"status": filter.Status})
	}
	if filter.EmbarkDay != nil {
		dayStart := filter.EmbarkDay.Truncate(24 * time.Hour)
		conditions = append(conditions,
			sq.GtOrEq{"embark_date": dayStart},
			sq.Lt{"embark_date": dayStart.Add(24 * time.Hour)},
		)
	}

	countQuery, countArgs, err := sq.Select("COUNT(*)").From("vouchers").Where(conditions).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		r.logger.Error("Failed to count vouchers", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count vouchers: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query, args, err := sq.Select(voucherColumns).
		From("vouchers").
		Where(conditions).
		OrderBy("created_at DESC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list vouchers", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	vouchers, err := collectVouchers(rows)
	if err != nil {
		return nil, 0, err
	}

	return vouchers, total, nil
}

// ListRecent returns the agent's newest non-deleted vouchers
func (r *VoucherRepository) ListRecent(ctx context.Context, agentID string, limit int) ([]*entity.Voucher, error) {
	query := `
		SELECT ` + voucherColumns + `
		FROM vouchers
		WHERE agent_id = ? AND deleted = 0
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, agentID, limit)
	if err != nil {
		r.logger.Error("Failed to list recent vouchers", zap.String("agent_id", agentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list recent vouchers: %w", err)
	}
	defer rows.Close()

	return collectVouchers(rows)
}

// ResetStatuses moves every non-deleted voucher of the agent whose status
// is in from back to active, in one statement.
func (r *VoucherRepository) ResetStatuses(ctx context.Context, agentID string, from []string, now time.Time) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}

	query, args, err := sq.Update("vouchers").
		Set("status", workflow.StatusActive.String()).
		Set("updated_at", now).
		Where(sq.And{
			sq.Eq{"agent_id": agentID},
			sq.Eq{"deleted": 0},
			sq.Eq{"status": from},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build reset query: %w", err)
	}

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to reset voucher statuses", zap.String("agent_id", agentID), zap.Error(err))
		return 0, fmt.Errorf("failed to reset voucher statuses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVoucher(row rowScanner) (*entity.Voucher, error) {
	var v entity.Voucher
	var embarkDate, deletedAt sql.NullTime

	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.AgentID,
		&v.ClientName,
		&v.ClientPhone,
		&v.PackageName,
		&v.Adults,
		&v.Children,
		&v.EmbarkLocation,
		&v.EmbarkTime,
		&embarkDate,
		&v.PartialAmount,
		&v.EmbarkAmount,
		&v.Notes,
		&v.Status,
		&v.Deleted,
		&deletedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if embarkDate.Valid {
		v.EmbarkDate = &embarkDate.Time
	}
	if deletedAt.Valid {
		v.DeletedAt = &deletedAt.Time
	}

	return &v, nil
}

func collectVouchers(rows *sql.Rows) ([]*entity.Voucher, error) {
	var vouchers []*entity.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vouchers: %w", err)
	}
	return vouchers, nil
}

// Verify interface compliance
var _ port.VoucherRepository = (*VoucherRepository)(nil)
