package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/internal/sandbox"
)

// SQLRunner выполняет запрос в песочнице на схеме setupScript.
// Реализуется sandbox.Executor.
type SQLRunner interface {
	Run(ctx context.Context, setupScript, query string) (*sandbox.ResultSet, error)
}

// Grade итог проверки одного ответа
type Grade struct {
	Correct bool
	// Display ответ студента в виде для отображения
	Display string
	// Note пояснение, например ошибка выполнения SQL
	Note string
}

// Grader стратегия проверки ответа для одного типа вопроса
type Grader interface {
	Grade(ctx context.Context, q *entity.Question, answer *entity.StudentAnswer) (Grade, error)
}

// mcqGrader: верно, если выбранный вариант принадлежит вопросу и помечен как правильный
type mcqGrader struct{}

func (mcqGrader) Grade(_ context.Context, q *entity.Question, answer *entity.StudentAnswer) (Grade, error) {
	if !answer.HasSelection() {
		return Grade{Display: ""}, nil
	}
	opt := answer.SelectedOption
	if opt == nil {
		opt = q.FindOption(*answer.SelectedOptionID)
	}
	if opt == nil || opt.QuestionID != q.ID {
		return Grade{Note: "selected option does not belong to question"}, nil
	}
	return Grade{Correct: opt.IsCorrect, Display: opt.Text}, nil
}

// sqlGrader выполняет запрос студента и эталон на одной схеме и сравнивает наборы строк
type sqlGrader struct {
	runner SQLRunner
	log    *zap.Logger
}

func (g sqlGrader) Grade(ctx context.Context, q *entity.Question, answer *entity.StudentAnswer) (Grade, error) {
	text := strings.TrimSpace(answer.AnswerText)
	if text == "" {
		return Grade{}, nil
	}
	grade := Grade{Display: text}

	got, err := g.runner.Run(ctx, q.DatabaseSchema, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return grade, ctxErr
		}
		if !isQueryFault(err) {
			return grade, fmt.Errorf("run student query: %w", err)
		}
		grade.Note = gradeNote(err)
		return grade, nil
	}

	want, err := g.runner.Run(ctx, q.DatabaseSchema, q.ReferenceSolution)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return grade, ctxErr
		}
		if !isQueryFault(err) {
			return grade, fmt.Errorf("run reference solution: %w", err)
		}
		g.log.Warn("Reference solution failed",
			zap.Uint("question_id", q.ID), zap.Error(err))
		grade.Note = "reference solution could not be executed"
		return grade, nil
	}
	if want.Truncated {
		g.log.Warn("Reference result exceeds sandbox row limit",
			zap.Uint("question_id", q.ID), zap.Int("rows", len(want.Rows)))
	}

	grade.Correct = got.Equal(want)
	return grade, nil
}

// isQueryFault: ошибку вызвал сам запрос, а не песочница.
// Остальные ошибки песочницы относятся к инфраструктуре и прерывают проверку.
func isQueryFault(err error) bool {
	var qErr *sandbox.QueryError
	return errors.As(err, &qErr) ||
		errors.Is(err, apperrors.ErrDangerousStatement) ||
		errors.Is(err, apperrors.ErrForbiddenTable) ||
		errors.Is(err, apperrors.ErrValidation)
}

func gradeNote(err error) string {
	var qErr *sandbox.QueryError
	if errors.As(err, &qErr) {
		return qErr.Message
	}
	return err.Error()
}

// manualGrader для типов без автоматической проверки. Ответ считается неверным.
type manualGrader struct{}

func (manualGrader) Grade(_ context.Context, _ *entity.Question, answer *entity.StudentAnswer) (Grade, error) {
	return Grade{Display: answer.AnswerText, Note: "requires manual grading"}, nil
}

// Graders набор стратегий по типу вопроса
type Graders map[entity.QuestionType]Grader

// NewGraders собирает стратегии проверки. runner может быть nil, тогда SQL-вопросы идут в ручную проверку.
func NewGraders(runner SQLRunner, log *zap.Logger) Graders {
	g := Graders{
		entity.QuestionTypeMCQ:   mcqGrader{},
		entity.QuestionTypeOther: manualGrader{},
	}
	if runner != nil {
		g[entity.QuestionTypeSQL] = sqlGrader{runner: runner, log: log}
	} else {
		g[entity.QuestionTypeSQL] = manualGrader{}
	}
	return g
}

// For возвращает стратегию для типа. Неизвестный тип проверяется вручную.
func (g Graders) For(t entity.QuestionType) Grader {
	if gr, ok := g[t]; ok {
		return gr
	}
	return manualGrader{}
}
