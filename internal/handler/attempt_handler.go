package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/handler/dto"
	"github.com/yourusername/exam-api/internal/handler/helper"
	"github.com/yourusername/exam-api/internal/service"
)

// AttemptLifecycle операции жизненного цикла попытки, нужные обработчику
type AttemptLifecycle interface {
	Start(ctx context.Context, actor service.Actor, examID uint, meta service.ClientMeta) (*service.StartResult, error)
	GetQuestions(ctx context.Context, actor service.Actor, attemptID uint) (*service.AttemptQuestions, error)
	Finalize(ctx context.Context, actor *service.Actor, attemptID uint, reason entity.AttemptStatus) (*service.ResultView, error)
	GetResult(ctx context.Context, actor service.Actor, attemptID uint) (*service.ResultView, error)
	Resume(ctx context.Context, actor service.Actor, attemptID uint) (*entity.ExamAttempt, error)
	Abandon(ctx context.Context, actor service.Actor, attemptID uint) (*entity.ExamAttempt, error)
}

// AnswerSaver сохраняет ответы
type AnswerSaver interface {
	SaveAnswer(ctx context.Context, actor service.Actor, attemptID uint, in service.SaveAnswerInput) (*entity.StudentAnswer, error)
}

// AttemptHandler обрабатывает запросы, связанные с попытками
type AttemptHandler struct {
	attempts AttemptLifecycle
	answers  AnswerSaver
	clock    *service.TimeKeeper
	log      *zap.Logger
}

// NewAttemptHandler создает новый обработчик попыток
func NewAttemptHandler(attempts AttemptLifecycle, answers AnswerSaver, clock *service.TimeKeeper, log *zap.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		answers:  answers,
		clock:    clock,
		log:      log.Named("attempt_handler"),
	}
}

// StartAttempt начинает попытку или возвращает уже открытую
// POST /api/exams/:id/attempts
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID := c.MustGet("examID").(uint)

	res, err := h.attempts.Start(c.Request.Context(), helper.ActorFromContext(c), examID, helper.ClientMetaFromContext(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, dto.NewStartAttemptResponse(res, h.clock.RemainingSeconds(res.Attempt, res.Exam)))
}

// GetQuestions возвращает вопросы попытки
// GET /api/attempts/:id/questions
func (h *AttemptHandler) GetQuestions(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	aq, err := h.attempts.GetQuestions(c.Request.Context(), helper.ActorFromContext(c), attemptID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAttemptQuestionsResponse(aq))
}

// SaveAnswerRequest тело запроса сохранения ответа
type SaveAnswerRequest struct {
	ExamQuestionID   uint   `json:"exam_question_id"`
	QuestionID       uint   `json:"question_id"`
	SelectedOptionID *uint  `json:"selected_option_id"`
	AnswerText       string `json:"answer_text" binding:"max=20000"`
}

// SaveAnswer сохраняет или перезаписывает ответ
// POST /api/attempts/:id/answers
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	var req SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "bad_request"})
		return
	}
	if req.ExamQuestionID == 0 && req.QuestionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exam_question_id or question_id is required", "error_type": "bad_request"})
		return
	}

	_, err := h.answers.SaveAnswer(c.Request.Context(), helper.ActorFromContext(c), attemptID, service.SaveAnswerInput{
		ExamQuestionID:   req.ExamQuestionID,
		QuestionID:       req.QuestionID,
		SelectedOptionID: req.SelectedOptionID,
		AnswerText:       req.AnswerText,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitRequest необязательное тело финализации
type SubmitRequest struct {
	Status string `json:"status"`
}

// Submit завершает попытку и возвращает результат с разбором.
// Тело {"status":"disqualified"} завершает попытку дисквалификацией.
// POST /api/attempts/:id/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	var req SubmitRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "bad_request"})
			return
		}
	}

	reason := entity.AttemptStatusSubmitted
	switch req.Status {
	case "", string(entity.AttemptStatusSubmitted):
	case string(entity.AttemptStatusDisqualified):
		reason = entity.AttemptStatusDisqualified
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be submitted or disqualified", "error_type": "bad_request"})
		return
	}

	actor := helper.ActorFromContext(c)
	view, err := h.attempts.Finalize(c.Request.Context(), &actor, attemptID, reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetResult возвращает результат закрытой попытки
// GET /api/attempts/:id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	view, err := h.attempts.GetResult(c.Request.Context(), helper.ActorFromContext(c), attemptID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Resume возобновляет дисквалифицированную попытку (только сотрудники)
// POST /api/attempts/:id/resume
func (h *AttemptHandler) Resume(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	attempt, err := h.attempts.Resume(c.Request.Context(), helper.ActorFromContext(c), attemptID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAttemptStatusResponse(attempt))
}

// Abandon закрывает открытую попытку без подсчета (только сотрудники)
// POST /api/attempts/:id/abandon
func (h *AttemptHandler) Abandon(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	attempt, err := h.attempts.Abandon(c.Request.Context(), helper.ActorFromContext(c), attemptID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAttemptStatusResponse(attempt))
}
