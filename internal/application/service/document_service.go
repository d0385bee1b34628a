package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/render"
)

// DocumentConfig holds the knobs of the document rendering path.
type DocumentConfig struct {
	// DefaultLogoURL is injected into the payload when it carries no logo.
	DefaultLogoURL string
	// PageFormat is the page size handed to the rasterizer.
	PageFormat string
	// RenderTimeout bounds the rasterizer call.
	RenderTimeout time.Duration
}

// DocumentService assembles printable documents: template lookup,
// enrichment, merge and delegation to the external rasterizer. Nothing is
// cached or persisted; every call re-renders from scratch.
type DocumentService interface {
	Render(ctx context.Context, templateTag string, data map[string]any) ([]byte, error)
}

type documentServiceImpl struct {
	templateRepo port.TemplateRepository
	rasterizer   port.Rasterizer
	cfg          DocumentConfig
	logger       Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	templateRepo port.TemplateRepository,
	rasterizer port.Rasterizer,
	cfg DocumentConfig,
	logger Logger,
) DocumentService {
	if cfg.PageFormat == "" {
		cfg.PageFormat = "A4"
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	return &documentServiceImpl{
		templateRepo: templateRepo,
		rasterizer:   rasterizer,
		cfg:          cfg,
		logger:       logger,
	}
}

// Render produces the binary document for the tagged template and the
// given payload.
func (s *documentServiceImpl) Render(ctx context.Context, templateTag string, data map[string]any) ([]byte, error) {
	if templateTag == "" {
		return nil, entity.NewValidationError("template_tag", "must not be empty")
	}
	if data == nil {
		data = map[string]any{}
	}

	tpl, err := s.templateRepo.GetActiveByTag(ctx, templateTag)
	if err != nil {
		return nil, err
	}

	enriched := render.EnrichDocumentData(data, s.cfg.DefaultLogoURL)
	merged := render.Merge(tpl.Template, enriched)
	html := render.WrapDocument(merged)

	renderCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	defer cancel()

	document, err := s.rasterizer.RenderPDF(renderCtx, html, s.cfg.PageFormat)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("Document render timed out", "template_tag", templateTag, "timeout", s.cfg.RenderTimeout)
			return nil, fmt.Errorf("%w: %s", entity.ErrRenderTimeout, templateTag)
		}
		s.logger.Error("Document render failed", "error", err, "template_tag", templateTag)
		return nil, fmt.Errorf("render document: %w", err)
	}

	s.logger.Info("Document rendered", "template_tag", templateTag, "bytes", len(document))
	return document, nil
}
