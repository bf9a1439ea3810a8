package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/telegram"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
	"github.com/cloudsaver/cloudsaver/pkg/utils/format"
)

// TelegramNotificationService 通过Telegram推送运行结果
type TelegramNotificationService struct {
	client *telegram.Client
}

// NewTelegramNotificationService 创建通知服务
func NewTelegramNotificationService(client *telegram.Client) *TelegramNotificationService {
	return &TelegramNotificationService{client: client}
}

// NotifyRunFinished 推送运行汇总
func (s *TelegramNotificationService) NotifyRunFinished(ctx context.Context, run *entities.ReconcileRun) error {
	return s.client.Broadcast(formatRunMessage(run))
}

func formatRunMessage(run *entities.ReconcileRun) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CloudSaver run %s: %s\n", run.ID, run.Status)
	fmt.Fprintf(&b, "Files examined: %d\n", run.Summary.FilesExamined)
	fmt.Fprintf(&b, "Duplicates trashed: %d\n", run.Summary.DuplicatesTrashed)
	fmt.Fprintf(&b, "Files transcoded: %d\n", run.Summary.FilesTranscoded)
	fmt.Fprintf(&b, "Bytes saved: %s\n", format.HumanSize(run.Summary.BytesSaved))

	if len(run.Summary.Failures) > 0 {
		fmt.Fprintf(&b, "Failures: %d\n", len(run.Summary.Failures))
		for i, f := range run.Summary.Failures {
			if i >= 5 {
				fmt.Fprintf(&b, "  ...and %d more\n", len(run.Summary.Failures)-i)
				break
			}
			fmt.Fprintf(&b, "  %s (%s): %s\n", f.Name, f.Stage, f.Reason)
		}
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Run error: %s\n", run.Error)
	}

	return b.String()
}

// DisabledNotificationService 通知关闭时的空实现
type DisabledNotificationService struct{}

// NewDisabledNotificationService 创建空通知服务
func NewDisabledNotificationService() *DisabledNotificationService {
	return &DisabledNotificationService{}
}

// NotifyRunFinished 只记录日志
func (s *DisabledNotificationService) NotifyRunFinished(ctx context.Context, run *entities.ReconcileRun) error {
	logger.Debug("notification disabled, skipping run summary push", "run_id", run.ID)
	return nil
}
