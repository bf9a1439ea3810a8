package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudsaver/cloudsaver/internal/application/contracts"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/catalog"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/drive"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/repository"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/telegram"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/transcoder"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
)

// ServiceContainer 应用服务容器 - 实现依赖注入
type ServiceContainer struct {
	config *config.Config

	// 应用服务
	reconcileService contracts.ReconcileService
	schedulerService *SchedulerService
	exportService    *ExportService

	// 基础设施
	catalogService contracts.CatalogService
	ledgerStore    contracts.LedgerStore
	runRepo        *repository.RunRepository
	transcoderSvc  *transcoder.Client

	closers []func() error
}

// NewServiceContainer 创建服务容器
// 依赖顺序：基础设施 -> 应用服务 -> 调度器
func NewServiceContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	container := &ServiceContainer{config: cfg}

	// 1. 远端目录：Drive客户端外面包一层重试装饰器
	driveClient, err := drive.NewClient(ctx, cfg.Drive)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	container.catalogService = catalog.NewRetryCatalog(driveClient, driveClient.RateLimiter(), catalog.Options{
		MaxAttempts: cfg.Reconcile.MaxAttempts,
		BackoffBase: time.Duration(cfg.Reconcile.BackoffBaseMS) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.Reconcile.BackoffMaxMS) * time.Millisecond,
	})

	// 2. 转码服务
	container.transcoderSvc = transcoder.NewClient(cfg.Transcoder)
	if _, err := container.transcoderSvc.Ping(ctx); err != nil {
		// 转码服务暂时不可达不阻塞启动，运行时按单文件失败处理
		logger.Warn("Transcoder service unreachable at startup", "base_url", cfg.Transcoder.BaseURL, "error", err)
	}

	// 3. 台账与运行记录
	container.ledgerStore, err = newLedgerStore(cfg.Ledger, container)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger store: %w", err)
	}
	container.runRepo, err = repository.NewRunRepository(cfg.Ledger.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create run repository: %w", err)
	}

	// 4. 通知与导出
	var notifier contracts.NotificationService
	if cfg.Telegram.Enabled {
		notifier = NewTelegramNotificationService(telegram.NewClient(&cfg.Telegram))
	} else {
		notifier = NewDisabledNotificationService()
	}

	if cfg.Export.Enabled {
		container.exportService = NewExportService(cfg.Export)
	}

	// 5. 对账引擎
	container.reconcileService = NewAppReconcileService(
		container.catalogService,
		container.transcoderSvc,
		container.ledgerStore,
		container.runRepo,
		notifier,
		container.exportService,
		ReconcileOptions{
			Workers:               cfg.Reconcile.Workers,
			MinFileSizeBytes:      cfg.Reconcile.MinFileSizeMB * 1024 * 1024,
			TargetQuality:         cfg.Reconcile.Quality.Target,
			PreserveMetadata:      cfg.Reconcile.Quality.PreserveMetadata,
			MinSizeReductionRatio: cfg.Reconcile.Quality.MinSizeReductionRatio,
		},
	)

	// 6. 调度器
	container.schedulerService = NewSchedulerService(container.reconcileService, cfg.Scheduler)
	if err := container.schedulerService.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	return container, nil
}

func newLedgerStore(cfg config.LedgerConfig, container *ServiceContainer) (contracts.LedgerStore, error) {
	switch cfg.Driver {
	case "mysql":
		store, err := repository.NewMySQLLedgerRepository(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		container.closers = append(container.closers, store.Close)
		return store, nil
	case "", "file":
		return repository.NewLedgerRepository(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown ledger driver: %s", cfg.Driver)
	}
}

// Close 停止调度器并释放持有的资源
func (c *ServiceContainer) Close() {
	c.schedulerService.Stop()
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			logger.Error("Failed to close resource", "error", err)
		}
	}
}

// GetReconcileService 获取对账服务
func (c *ServiceContainer) GetReconcileService() contracts.ReconcileService {
	return c.reconcileService
}

// GetCatalogService 获取远端目录服务
func (c *ServiceContainer) GetCatalogService() contracts.CatalogService {
	return c.catalogService
}

// GetLedgerStore 获取台账
func (c *ServiceContainer) GetLedgerStore() contracts.LedgerStore {
	return c.ledgerStore
}

// GetExportService 获取导出服务，导出关闭时返回nil
func (c *ServiceContainer) GetExportService() *ExportService {
	return c.exportService
}

// GetSchedulerService 获取调度服务
func (c *ServiceContainer) GetSchedulerService() *SchedulerService {
	return c.schedulerService
}

// GetConfig 获取配置
func (c *ServiceContainer) GetConfig() *config.Config {
	return c.config
}
