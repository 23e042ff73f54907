package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/middleware"
	"github.com/yourusername/exam-api/internal/service"
)

// SandboxHandler тестовый запуск SQL вне попыток
type SandboxHandler struct {
	runner service.SQLRunner
	log    *zap.Logger
}

// NewSandboxHandler создает обработчик песочницы
func NewSandboxHandler(runner service.SQLRunner, log *zap.Logger) *SandboxHandler {
	return &SandboxHandler{runner: runner, log: log.Named("sandbox_handler")}
}

// RunSQLRequest запрос тестового запуска
type RunSQLRequest struct {
	SQL            string `json:"sql" binding:"required,max=20000"`
	DatabaseSchema string `json:"database_schema" binding:"max=100000"`
}

// RunSQL выполняет запрос на временной схеме и возвращает строки
// POST /api/sandbox/run
func (h *SandboxHandler) RunSQL(c *gin.Context) {
	var req RunSQLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "bad_request"})
		return
	}

	rs, err := h.runner.Run(c.Request.Context(), req.DatabaseSchema, req.SQL)
	if err != nil {
		h.log.Debug("Sandbox run rejected",
			zap.Uint("user_id", c.GetUint(middleware.ContextUserID)), zap.Error(err))
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}
