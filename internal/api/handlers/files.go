package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cloudsaver/cloudsaver/internal/application/services"
	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/utils"
	"github.com/cloudsaver/cloudsaver/pkg/utils/format"
)

// FileHandler 远端文件查询的REST处理器
type FileHandler struct {
	container *services.ServiceContainer
}

// NewFileHandler 创建文件处理器
func NewFileHandler(container *services.ServiceContainer) *FileHandler {
	return &FileHandler{container: container}
}

type fileView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MimeType      string `json:"mime_type"`
	SizeBytes     int64  `json:"size_bytes"`
	SizeFormatted string `json:"size_formatted"`
	Trashed       bool   `json:"trashed,omitempty"`
}

// ListFiles 拉取远端文件清单
// min_size_mb过滤小文件；media_only=false时已由目录配置决定范围
func (h *FileHandler) ListFiles(c *gin.Context) {
	files, err := h.container.GetCatalogService().ListFiles(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to list files")
		return
	}

	minSize := parseMinSizeBytes(c)
	views := make([]fileView, 0, len(files))
	var totalBytes int64
	for _, f := range files {
		if minSize > 0 && f.Size < minSize {
			continue
		}
		views = append(views, fileView{
			ID:            f.ID,
			Name:          f.Name,
			MimeType:      f.MimeType,
			SizeBytes:     f.Size,
			SizeFormatted: format.HumanSize(f.Size),
			Trashed:       f.Trashed,
		})
		totalBytes += f.Size
	}

	utils.Success(c, gin.H{
		"total":                len(views),
		"total_size":           totalBytes,
		"total_size_formatted": format.HumanSize(totalBytes),
		"files":                views,
	})
}

// ExportFiles 拉取清单并写入导出目录，返回导出文件路径
func (h *FileHandler) ExportFiles(c *gin.Context) {
	exporter := h.container.GetExportService()
	if exporter == nil {
		utils.ErrorWithStatus(c, http.StatusConflict,
			string(sharederrors.ErrorCodeConflict), "export is disabled")
		return
	}

	files, err := h.container.GetCatalogService().ListFiles(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to list files")
		return
	}

	active := make([]entities.RemoteFile, 0, len(files))
	for _, f := range files {
		if !f.Trashed {
			active = append(active, f)
		}
	}

	path, err := exporter.ExportListing(active, "remote_files.json", parseMinSizeBytes(c))
	if err != nil {
		respondServiceError(c, err, "Failed to export files")
		return
	}
	if path == "" {
		utils.Success(c, gin.H{"message": "no files matched, nothing exported"})
		return
	}
	utils.Success(c, gin.H{"path": path, "total": len(active)})
}

func parseMinSizeBytes(c *gin.Context) int64 {
	if v := c.Query("min_size_mb"); v != "" {
		if mb, err := strconv.ParseInt(v, 10, 64); err == nil && mb > 0 {
			return mb * 1024 * 1024
		}
	}
	return 0
}
