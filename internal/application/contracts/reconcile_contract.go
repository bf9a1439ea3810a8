package contracts

import (
	"context"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
)

// ReconcileService 对账流水线端口
type ReconcileService interface {
	// StartRun 异步启动一次运行；已有运行在进行时返回CONFLICT
	StartRun(ctx context.Context) (*entities.ReconcileRun, error)

	// Run 同步执行一次运行直至结束
	Run(ctx context.Context) (*entities.ReconcileRun, error)

	// GetRun 查询单次运行
	GetRun(id string) (*entities.ReconcileRun, error)

	// ListRuns 按开始时间倒序列出历史运行
	ListRuns(limit int) ([]*entities.ReconcileRun, error)
}

// NotificationService 运行结果通知端口
type NotificationService interface {
	NotifyRunFinished(ctx context.Context, run *entities.ReconcileRun) error
}
