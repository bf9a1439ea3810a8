package contracts

import (
	"context"
	"io"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
)

// CatalogService 远端目录端口
// 由具体网盘实现，错误统一映射为shared/errors中的错误码：
// 认证失败AUTH_ERROR、限流RATE_LIMIT、网络抖动TRANSIENT_ERROR、
// 配额不足QUOTA_EXCEEDED、目标不存在NOT_FOUND
type CatalogService interface {
	// ListFiles 拉取全量文件清单
	ListFiles(ctx context.Context) ([]entities.RemoteFile, error)

	// MoveToTrash 将文件移入回收站（可恢复，不是物理删除）
	MoveToTrash(ctx context.Context, id string) error

	// Download 下载文件内容，调用方负责Close
	Download(ctx context.Context, id string) (io.ReadCloser, error)

	// Upload 上传新文件，返回远端确认后的文件记录
	Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64) (entities.RemoteFile, error)
}
