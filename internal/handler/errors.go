package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/sandbox"
)

// errorMapping HTTP статус и стабильный error_type для доменной ошибки
type errorMapping struct {
	target    error
	status    int
	errorType string
	message   string
}

// Порядок важен: первая совпавшая ошибка определяет ответ
var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden", "Access denied"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Unauthorized"},
	{apperrors.ErrOutOfWindow, http.StatusForbidden, "out_of_window", "Exam is not available at this time"},
	{apperrors.ErrAlreadyAttempted, http.StatusConflict, "already_attempted", "Exam already attempted"},
	{apperrors.ErrAttemptClosed, http.StatusConflict, "attempt_closed", "Attempt is closed"},
	{apperrors.ErrInvalidState, http.StatusConflict, "invalid_state", "Invalid attempt state"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "Conflict"},
	{apperrors.ErrTimeExpired, http.StatusGone, "time_expired", "Time expired"},
	{apperrors.ErrQuestionNotInExam, http.StatusUnprocessableEntity, "question_not_in_exam", "Question does not belong to this exam"},
	{apperrors.ErrDangerousStatement, http.StatusUnprocessableEntity, "dangerous_statement", ""},
	{apperrors.ErrForbiddenTable, http.StatusUnprocessableEntity, "forbidden_table", ""},
	{apperrors.ErrValidation, http.StatusUnprocessableEntity, "validation", ""},
}

// respondError отправляет ответ для ошибки сервиса.
// Для ошибок проверки SQL наружу уходит текст ошибки, он описывает запрос пользователя.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var qErr *sandbox.QueryError
	if errors.As(err, &qErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": qErr.Message, "error_type": "query_error", "timeout": qErr.Timeout})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			c.JSON(m.status, gin.H{"error": msg, "error_type": m.errorType})
			return
		}
	}

	log.Error("Internal server error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal"})
}
