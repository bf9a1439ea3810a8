package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cloudsaver/cloudsaver/internal/api/handlers"
	"github.com/cloudsaver/cloudsaver/internal/application/services"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
)

// RoutesConfig 路由配置
type RoutesConfig struct {
	container *services.ServiceContainer
}

// NewRoutesConfig 创建路由配置
func NewRoutesConfig(container *services.ServiceContainer) *RoutesConfig {
	return &RoutesConfig{container: container}
}

// SetupRoutes 设置路由
func (rc *RoutesConfig) SetupRoutes(router *gin.Engine) {
	reconcileHandler := handlers.NewReconcileHandler(rc.container)
	fileHandler := handlers.NewFileHandler(rc.container)
	ledgerHandler := handlers.NewLedgerHandler(rc.container)

	api := router.Group("/api/v1")
	{
		// 对账运行
		api.POST("/reconcile", reconcileHandler.TriggerRun)
		api.GET("/runs", reconcileHandler.ListRuns)
		api.GET("/runs/:id", reconcileHandler.GetRun)

		// 远端文件
		files := api.Group("/files")
		{
			files.GET("", fileHandler.ListFiles)
			files.GET("/export", fileHandler.ExportFiles)
		}

		// 台账
		ledger := api.Group("/ledger")
		{
			ledger.GET("", ledgerHandler.ListEntries)
			ledger.GET("/:id", ledgerHandler.GetEntry)
		}
	}

	router.GET("/health", rc.handleHealthCheck)
}

// handleHealthCheck 健康检查
func (rc *RoutesConfig) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cloudsaver",
	})
}

// SetupMiddlewares 设置全局中间件
func (rc *RoutesConfig) SetupMiddlewares(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestLoggingMiddleware())
}

// requestLoggingMiddleware 请求日志中间件
func requestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
