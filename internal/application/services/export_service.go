package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
	"github.com/cloudsaver/cloudsaver/pkg/utils/format"
)

// ExportService 扫描结果与运行汇总的JSON导出
type ExportService struct {
	cfg config.ExportConfig
}

// NewExportService 创建导出服务
func NewExportService(cfg config.ExportConfig) *ExportService {
	return &ExportService{cfg: cfg}
}

// exportedFile 导出清单中的单个文件
type exportedFile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MimeType      string `json:"mime_type"`
	SizeBytes     int64  `json:"size_bytes"`
	SizeFormatted string `json:"size_formatted"`
}

// ExportListing 将远端文件清单写入导出目录
// minSizeBytes大于0时只导出不小于该值的文件
func (s *ExportService) ExportListing(files []entities.RemoteFile, filename string, minSizeBytes int64) (string, error) {
	out := make([]exportedFile, 0, len(files))
	for _, f := range files {
		if minSizeBytes > 0 && f.Size < minSizeBytes {
			continue
		}
		out = append(out, exportedFile{
			ID:            f.ID,
			Name:          f.Name,
			MimeType:      f.MimeType,
			SizeBytes:     f.Size,
			SizeFormatted: format.HumanSize(f.Size),
		})
	}

	if len(out) == 0 {
		logger.Warn("No data to export", "filename", filename)
		return "", nil
	}

	return s.write(out, filename)
}

// ExportRun 将运行结果写入导出目录
func (s *ExportService) ExportRun(run *entities.ReconcileRun) (string, error) {
	return s.write(run, fmt.Sprintf("run_%s.json", run.ID))
}

func (s *ExportService) write(data interface{}, filename string) (string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export data: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, filename)
	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	logger.Info("Export saved", "path", path)
	return path, nil
}
