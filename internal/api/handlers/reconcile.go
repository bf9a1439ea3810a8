package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cloudsaver/cloudsaver/internal/application/services"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/utils"
)

// ReconcileHandler 对账运行的REST处理器 - 纯协议转换层
type ReconcileHandler struct {
	container *services.ServiceContainer
}

// NewReconcileHandler 创建对账处理器
func NewReconcileHandler(container *services.ServiceContainer) *ReconcileHandler {
	return &ReconcileHandler{container: container}
}

// TriggerRun 触发一次对账运行
// 默认异步返回运行ID；?wait=true时同步等待运行结束
func (h *ReconcileHandler) TriggerRun(c *gin.Context) {
	svc := h.container.GetReconcileService()

	if c.Query("wait") == "true" {
		run, err := svc.Run(c.Request.Context())
		if err != nil {
			respondServiceError(c, err, "Failed to run reconcile")
			return
		}
		utils.Success(c, run)
		return
	}

	run, err := svc.StartRun(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to start reconcile")
		return
	}

	c.JSON(http.StatusAccepted, utils.Response{
		Code:    "OK",
		Message: "reconcile run started",
		Data:    gin.H{"run_id": run.ID, "status": run.Status},
	})
}

// GetRun 查询单次运行
func (h *ReconcileHandler) GetRun(c *gin.Context) {
	run, err := h.container.GetReconcileService().GetRun(c.Param("id"))
	if err != nil {
		utils.ErrorWithStatus(c, http.StatusNotFound, string(sharederrors.ErrorCodeNotFound), err.Error())
		return
	}
	utils.Success(c, run)
}

// ListRuns 按开始时间倒序列出历史运行
func (h *ReconcileHandler) ListRuns(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
		}
	}

	runs, err := h.container.GetReconcileService().ListRuns(limit)
	if err != nil {
		respondServiceError(c, err, "Failed to list runs")
		return
	}
	utils.Success(c, gin.H{"total": len(runs), "runs": runs})
}

// respondServiceError 业务错误码到HTTP状态码的映射
func respondServiceError(c *gin.Context, err error, fallback string) {
	var se *sharederrors.ServiceError
	if !errors.As(err, &se) {
		utils.ErrorWithStatus(c, http.StatusInternalServerError,
			string(sharederrors.ErrorCodeInternalError), fallback+": "+err.Error())
		return
	}
	utils.ErrorWithStatus(c, httpStatusOf(se.Code), string(se.Code), se.Message)
}

func httpStatusOf(code sharederrors.ErrorCode) int {
	switch code {
	case sharederrors.ErrorCodeInvalidRequest:
		return http.StatusBadRequest
	case sharederrors.ErrorCodeNotFound:
		return http.StatusNotFound
	case sharederrors.ErrorCodeConflict:
		return http.StatusConflict
	case sharederrors.ErrorCodeAuthError:
		return http.StatusBadGateway
	case sharederrors.ErrorCodeRateLimit:
		return http.StatusTooManyRequests
	case sharederrors.ErrorCodeQuotaExceeded:
		return http.StatusInsufficientStorage
	case sharederrors.ErrorCodeTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
