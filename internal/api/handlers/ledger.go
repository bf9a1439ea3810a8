package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/cloudsaver/cloudsaver/internal/application/services"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/utils"
)

// LedgerHandler 已处理文件台账的REST处理器，只读
type LedgerHandler struct {
	container *services.ServiceContainer
}

// NewLedgerHandler 创建台账处理器
func NewLedgerHandler(container *services.ServiceContainer) *LedgerHandler {
	return &LedgerHandler{container: container}
}

// ListEntries 列出全部台账条目，按处理时间倒序
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	entries, err := h.container.GetLedgerStore().All()
	if err != nil {
		respondServiceError(c, err, "Failed to read ledger")
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ProcessedAt.After(entries[j].ProcessedAt)
	})

	utils.Success(c, gin.H{"total": len(entries), "entries": entries})
}

// GetEntry 按文件ID查询台账条目
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	id := c.Param("id")

	entry, ok, err := h.container.GetLedgerStore().Get(id)
	if err != nil {
		respondServiceError(c, err, "Failed to read ledger")
		return
	}
	if !ok {
		utils.ErrorWithStatus(c, http.StatusNotFound,
			string(sharederrors.ErrorCodeNotFound), "no ledger entry for file: "+id)
		return
	}
	utils.Success(c, entry)
}
