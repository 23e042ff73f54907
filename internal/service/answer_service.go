package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

// SaveAnswerInput данные ответа. Вопрос задается ExamQuestionID или QuestionID.
type SaveAnswerInput struct {
	ExamQuestionID   uint
	QuestionID       uint
	SelectedOptionID *uint
	AnswerText       string
}

// AnswerService сохраняет ответы студентов
type AnswerService struct {
	tx            repository.Transactor
	exams         repository.ExamRepository
	examQuestions repository.ExamQuestionRepository
	attempts      repository.AttemptRepository
	answers       repository.AnswerRepository
	clock         *TimeKeeper
	log           *zap.Logger
}

// NewAnswerService создает AnswerService
func NewAnswerService(
	tx repository.Transactor,
	exams repository.ExamRepository,
	examQuestions repository.ExamQuestionRepository,
	attempts repository.AttemptRepository,
	answers repository.AnswerRepository,
	clock *TimeKeeper,
	log *zap.Logger,
) *AnswerService {
	return &AnswerService{
		tx:            tx,
		exams:         exams,
		examQuestions: examQuestions,
		attempts:      attempts,
		answers:       answers,
		clock:         clock,
		log:           log.Named("answers"),
	}
}

// SaveAnswer вставляет или перезаписывает ответ на вопрос попытки.
// Попытка читается с разделяемой блокировкой, поэтому сохранение не пересекается с финализацией.
func (s *AnswerService) SaveAnswer(ctx context.Context, actor Actor, attemptID uint, in SaveAnswerInput) (*entity.StudentAnswer, error) {
	if in.ExamQuestionID == 0 && in.QuestionID == 0 {
		return nil, fmt.Errorf("exam_question_id or question_id is required: %w", apperrors.ErrValidation)
	}

	var saved *entity.StudentAnswer
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.attempts.LockByID(ctx, tx, attemptID, repository.LockShare)
		if err != nil {
			return err
		}
		if !attempt.IsOwnedBy(actor.UserID) {
			return apperrors.ErrForbidden
		}
		if !attempt.IsInProgress() {
			return apperrors.ErrAttemptClosed
		}
		exam, err := s.exams.GetByID(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		if s.clock.IsExpired(attempt, exam) {
			return apperrors.ErrTimeExpired
		}

		eq, err := s.resolveExamQuestion(ctx, tx, exam.ID, in)
		if err != nil {
			return err
		}

		answer := &entity.StudentAnswer{
			AttemptID:      attempt.ID,
			ExamQuestionID: eq.ID,
			AnsweredAt:     s.clock.Now(),
		}
		if eq.Question.IsMCQ() {
			if in.SelectedOptionID != nil && *in.SelectedOptionID != 0 {
				if eq.Question.FindOption(*in.SelectedOptionID) == nil {
					return fmt.Errorf("option %d does not belong to question %d: %w",
						*in.SelectedOptionID, eq.QuestionID, apperrors.ErrValidation)
				}
				answer.SelectedOptionID = in.SelectedOptionID
			}
		} else {
			answer.AnswerText = in.AnswerText
		}

		if err := s.answers.Upsert(ctx, tx, answer); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
		saved = answer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("Answer saved",
		zap.Uint("attempt_id", attemptID),
		zap.Uint("exam_question_id", saved.ExamQuestionID))
	return saved, nil
}

// resolveExamQuestion находит вопрос экзамена по ExamQuestionID.
// Если такого нет, идентификатор трактуется как ID вопроса банка, который
// должен входить в экзамен ровно одной строкой.
func (s *AnswerService) resolveExamQuestion(ctx context.Context, tx *gorm.DB, examID uint, in SaveAnswerInput) (*entity.ExamQuestion, error) {
	if in.ExamQuestionID != 0 {
		eq, err := s.examQuestions.FindInExam(ctx, tx, examID, in.ExamQuestionID)
		if err == nil {
			return eq, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	questionID := in.QuestionID
	if questionID == 0 {
		questionID = in.ExamQuestionID
	}
	matches, err := s.examQuestions.FindByQuestionID(ctx, tx, examID, questionID)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, apperrors.ErrQuestionNotInExam
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("question %d is mapped %d times in exam %d: %w",
			questionID, len(matches), examID, apperrors.ErrDataIntegrity)
	}
}
