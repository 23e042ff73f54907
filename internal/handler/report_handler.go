package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
)

// ResultsExporter выгружает результаты экзамена
type ResultsExporter interface {
	ExportExamResults(ctx context.Context, examID uint, w io.Writer) (*entity.Exam, error)
}

// ReportHandler отчеты для сотрудников
type ReportHandler struct {
	exporter ResultsExporter
	log      *zap.Logger
}

// NewReportHandler создает обработчик отчетов
func NewReportHandler(exporter ResultsExporter, log *zap.Logger) *ReportHandler {
	return &ReportHandler{exporter: exporter, log: log.Named("report_handler")}
}

// ExportResults отдает xlsx с попытками экзамена и их результатами
// GET /api/exams/:id/results/export
func (h *ReportHandler) ExportResults(c *gin.Context) {
	examID := c.MustGet("examID").(uint)

	// Буферизуем, чтобы ошибка до конца выгрузки вернулась обычным JSON
	var buf bytes.Buffer
	if _, err := h.exporter.ExportExamResults(c.Request.Context(), examID, &buf); err != nil {
		respondError(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("exam_%d_results.xlsx", examID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
