package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/cloudsaver/cloudsaver/internal/application/contracts"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
)

// SchedulerService 按cron表达式周期触发对账运行
type SchedulerService struct {
	cron      *cron.Cron
	reconcile contracts.ReconcileService
	cfg       config.SchedulerConfig
	mu        sync.Mutex
	running   bool
}

// NewSchedulerService 创建调度服务
func NewSchedulerService(reconcile contracts.ReconcileService, cfg config.SchedulerConfig) *SchedulerService {
	return &SchedulerService{
		cron:      cron.New(), // 标准5字段格式（分 时 日 月 周）
		reconcile: reconcile,
		cfg:       cfg,
	}
}

// Start 启动调度器，scheduler.enabled为false时不做任何事
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		logger.Info("Scheduler disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.cfg.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Cron, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.Cron, s.runOnce); err != nil {
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}

	s.cron.Start()
	s.running = true
	logger.Info("Scheduler service started", "cron", s.cfg.Cron)
	return nil
}

// Stop 停止调度器，已在执行的运行不被打断
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.cron.Stop()
		s.running = false
		logger.Info("Scheduler service stopped")
	}
}

func (s *SchedulerService) runOnce() {
	logger.Info("Scheduled reconcile triggered")

	run, err := s.reconcile.Run(context.Background())
	if err != nil {
		// 手动触发的运行还没结束时跳过本次调度
		if sharederrors.IsCode(err, sharederrors.ErrorCodeConflict) {
			logger.Warn("Scheduled reconcile skipped, another run in progress")
			return
		}
		logger.Error("Scheduled reconcile failed to start", "error", err)
		return
	}

	logger.Info("Scheduled reconcile finished", "run_id", run.ID, "status", string(run.Status))
}
