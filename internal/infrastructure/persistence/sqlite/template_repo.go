package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/entity"
)

// TemplateRepository implements port.TemplateRepository over sqlite.
// Templates are written by an external back office; this side only reads.
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// GetActiveByTag returns the newest active template carrying the tag
func (r *TemplateRepository) GetActiveByTag(ctx context.Context, tag string) (*entity.DocumentTemplate, error) {
	query := `
		SELECT id, tag, template, active, created_at
		FROM document_templates
		WHERE tag = ? AND active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var t entity.DocumentTemplate
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, tag).Scan(
		&t.ID,
		&t.Tag,
		&t.Template,
		&t.Active,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entity.ErrTemplateNotFound, tag)
	}
	if err != nil {
		r.logger.Error("Failed to get document template", zap.String("tag", tag), zap.Error(err))
		return nil, fmt.Errorf("failed to get document template: %w", err)
	}

	return &t, nil
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
