package dto

import (
	"time"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/handler/helper"
	"github.com/yourusername/exam-api/internal/service"
)

// StartAttemptResponse ответ на старт попытки
type StartAttemptResponse struct {
	AttemptID        uint      `json:"attempt_id"`
	ExamID           uint      `json:"exam_id"`
	ExamTitle        string    `json:"exam_title"`
	StartedAt        time.Time `json:"started_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Resumed          bool      `json:"resumed"`
	Message          string    `json:"message,omitempty"`
}

// NewStartAttemptResponse создает DTO старта. remaining считается вызывающим по серверным часам.
func NewStartAttemptResponse(res *service.StartResult, remaining int64) *StartAttemptResponse {
	resp := &StartAttemptResponse{
		AttemptID:        res.Attempt.ID,
		ExamID:           res.Exam.ID,
		ExamTitle:        res.Exam.Title,
		StartedAt:        res.Attempt.StartedAt,
		DurationMinutes:  res.Exam.DurationMinutes,
		RemainingSeconds: remaining,
		Resumed:          res.Resumed,
	}
	if res.Resumed {
		resp.Message = "Resuming existing attempt"
	}
	return resp
}

// ExistingAnswerResponse сохраненный ответ студента
type ExistingAnswerResponse struct {
	SelectedOptionID *uint     `json:"selected_option_id,omitempty"`
	AnswerText       string    `json:"answer_text,omitempty"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// AttemptQuestionResponse вопрос попытки без эталонного решения и флагов правильности
type AttemptQuestionResponse struct {
	ExamQuestionID uint                    `json:"exam_question_id"`
	QuestionID     uint                    `json:"question_id"`
	Order          int                     `json:"order"`
	Weightage      float64                 `json:"weightage"`
	QuestionType   entity.QuestionType     `json:"question_type"`
	Text           string                  `json:"text"`
	DatabaseSchema string                  `json:"database_schema,omitempty"`
	Options        []helper.QuestionOption `json:"options,omitempty"`
	ExistingAnswer *ExistingAnswerResponse `json:"existing_answer,omitempty"`
}

// AttemptQuestionsResponse вопросы попытки и оставшееся время
type AttemptQuestionsResponse struct {
	AttemptID        uint                       `json:"attempt_id"`
	ExamID           uint                       `json:"exam_id"`
	ExamTitle        string                     `json:"exam_title"`
	RemainingSeconds int64                      `json:"remaining_seconds"`
	Questions        []*AttemptQuestionResponse `json:"questions"`
}

// NewAttemptQuestionsResponse создает DTO вопросов попытки
func NewAttemptQuestionsResponse(aq *service.AttemptQuestions) *AttemptQuestionsResponse {
	resp := &AttemptQuestionsResponse{
		AttemptID:        aq.Attempt.ID,
		ExamID:           aq.Exam.ID,
		ExamTitle:        aq.Exam.Title,
		RemainingSeconds: aq.RemainingSeconds,
		Questions:        make([]*AttemptQuestionResponse, 0, len(aq.Questions)),
	}
	for _, item := range aq.Questions {
		eq := item.ExamQuestion
		q := &AttemptQuestionResponse{
			ExamQuestionID: eq.ID,
			QuestionID:     eq.QuestionID,
			Order:          eq.Order,
			Weightage:      eq.Weightage,
			QuestionType:   eq.Question.QuestionType,
			Text:           eq.Question.Text,
			DatabaseSchema: eq.Question.DatabaseSchema,
		}
		if eq.Question.IsMCQ() {
			q.Options = helper.ConvertOptions(eq.Question.Options)
		}
		if item.Answer != nil {
			q.ExistingAnswer = &ExistingAnswerResponse{
				SelectedOptionID: item.Answer.SelectedOptionID,
				AnswerText:       item.Answer.AnswerText,
				AnsweredAt:       item.Answer.AnsweredAt,
			}
		}
		resp.Questions = append(resp.Questions, q)
	}
	return resp
}

// AttemptStatusResponse состояние попытки после административного действия
type AttemptStatusResponse struct {
	AttemptID   uint                 `json:"attempt_id"`
	Status      entity.AttemptStatus `json:"status"`
	StartedAt   time.Time            `json:"started_at"`
	SubmittedAt *time.Time           `json:"submitted_at,omitempty"`
}

// NewAttemptStatusResponse создает DTO состояния попытки
func NewAttemptStatusResponse(a *entity.ExamAttempt) *AttemptStatusResponse {
	return &AttemptStatusResponse{
		AttemptID:   a.ID,
		Status:      a.Status,
		StartedAt:   a.StartedAt,
		SubmittedAt: a.SubmittedAt,
	}
}
