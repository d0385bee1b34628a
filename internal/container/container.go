// Package container wires the application together: database, repositories,
// external clients, services and the HTTP server, initialized in dependency
// order and torn down in reverse.
package container

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/costaverde/voucher-service/internal/application/port"
	"github.com/costaverde/voucher-service/internal/application/service"
	"github.com/costaverde/voucher-service/internal/config"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
	"github.com/costaverde/voucher-service/internal/infrastructure/external/htmlpdf"
	"github.com/costaverde/voucher-service/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/costaverde/voucher-service/internal/interfaces/http"
	"github.com/costaverde/voucher-service/pkg/database"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Voucher  port.VoucherRepository
	Activity port.ActivityRepository
	Template port.TemplateRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Voucher  service.VoucherService
	Activity service.ActivityService
	Document service.DocumentService
	Report   service.ReportService
}

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	rasterizer   port.Rasterizer
	services     *ServiceBundle
	server       *httpserver.Server

	mu      sync.Mutex
	started bool
}

// NewContainer creates a new container from configuration. Call Start to
// initialize components.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes every component and runs the HTTP server until ctx is
// cancelled.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("container already started")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.initDatabase(); err != nil {
		return err
	}
	c.initRepositories()
	c.initExternal()
	c.initServices()
	c.initServer()

	return c.server.Start(ctx)
}

// Stop tears components down in reverse initialization order.
func (c *Container) Stop() error {
	var firstErr error

	if c.server != nil {
		if err := c.server.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.RunMigrations(c.config.Database.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.txManager = sqlite.NewDB(db.DB, c.logger)
	return nil
}

func (c *Container) initRepositories() {
	c.repositories = &RepositoryBundle{
		Voucher:  sqlite.NewVoucherRepository(c.db.DB, c.logger),
		Activity: sqlite.NewActivityRepository(c.db.DB, c.logger),
		Template: sqlite.NewTemplateRepository(c.db.DB, c.logger),
	}
}

func (c *Container) initExternal() {
	c.rasterizer = htmlpdf.NewClient(
		c.config.Renderer.BaseURL,
		c.config.Renderer.Timeout,
		c.logger,
	)
}

func (c *Container) initServices() {
	serviceLogger := &zapLoggerAdapter{logger: c.logger}
	machine := workflow.NewVoucherMachine()

	sweeper := service.NewExpirySweeper(
		c.repositories.Voucher,
		c.repositories.Activity,
		machine,
		serviceLogger,
	)

	voucherService := service.NewVoucherService(
		c.repositories.Voucher,
		c.repositories.Activity,
		c.txManager,
		service.NewCodeGenerator(),
		machine,
		sweeper,
		serviceLogger,
	)

	c.services = &ServiceBundle{
		Voucher:  voucherService,
		Activity: service.NewActivityService(c.repositories.Activity, c.repositories.Voucher, serviceLogger),
		Document: service.NewDocumentService(
			c.repositories.Template,
			c.rasterizer,
			service.DocumentConfig{
				DefaultLogoURL: c.config.Document.DefaultLogoURL,
				PageFormat:     c.config.Document.PageFormat,
				RenderTimeout:  c.config.Renderer.Timeout,
			},
			serviceLogger,
		),
		Report: service.NewReportService(voucherService, serviceLogger),
	}
}

func (c *Container) initServer() {
	c.server = httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         c.config.Server.Host,
			Port:         c.config.Server.Port,
			ReadTimeout:  c.config.Server.ReadTimeout,
			WriteTimeout: c.config.Server.WriteTimeout,
		},
		c.services.Voucher,
		c.services.Activity,
		c.services.Document,
		c.services.Report,
		&zapLoggerAdapter{logger: c.logger},
	)
}

// Services returns the application services (for testing).
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// zapLoggerAdapter adapts zap.Logger to the service and http Logger
// interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
