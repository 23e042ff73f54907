package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
)

// defaultGradeConcurrency число ответов, проверяемых одновременно
const defaultGradeConcurrency = 4

// BreakdownItem строка разбора результата по одному отвеченному вопросу
type BreakdownItem struct {
	ExamQuestionID uint                `json:"exam_question_id"`
	QuestionID     uint                `json:"question_id"`
	Order          int                 `json:"order"`
	QuestionType   entity.QuestionType `json:"question_type"`
	QuestionText   string              `json:"question_text"`
	StudentAnswer  string              `json:"student_answer"`
	IsCorrect      bool                `json:"is_correct"`
	Weightage      float64             `json:"weightage"`
	Score          float64             `json:"score"`
	Note           string              `json:"note,omitempty"`
}

// Evaluation результат проверки попытки до сохранения
type Evaluation struct {
	Result    *entity.ExamResult
	Breakdown []BreakdownItem
}

// ScoringService проверяет ответы попытки и считает итог
type ScoringService struct {
	examQuestions repository.ExamQuestionRepository
	answers       repository.AnswerRepository
	graders       Graders
	concurrency   int
	log           *zap.Logger
}

// NewScoringService создает ScoringService
func NewScoringService(
	examQuestions repository.ExamQuestionRepository,
	answers repository.AnswerRepository,
	graders Graders,
	log *zap.Logger,
) *ScoringService {
	return &ScoringService{
		examQuestions: examQuestions,
		answers:       answers,
		graders:       graders,
		concurrency:   defaultGradeConcurrency,
		log:           log.Named("scoring"),
	}
}

// Evaluate проверяет все ответы попытки. Ничего не сохраняет.
// Одинаковые ответы, эталоны и схемы дают одинаковый результат, поэтому
// разбор можно пересчитать в любой момент после финализации.
func (s *ScoringService) Evaluate(ctx context.Context, tx *gorm.DB, attempt *entity.ExamAttempt, exam *entity.Exam) (*Evaluation, error) {
	answers, err := s.answers.ListByAttempt(ctx, tx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	examQuestions, err := s.examQuestions.ListByExam(ctx, tx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}

	byID := make(map[uint]*entity.ExamQuestion, len(examQuestions))
	var maxScore float64
	for i := range examQuestions {
		byID[examQuestions[i].ID] = &examQuestions[i]
		maxScore += examQuestions[i].Weightage
	}

	items := make([]BreakdownItem, len(answers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range answers {
		i := i
		answer := &answers[i]
		eq, ok := byID[answer.ExamQuestionID]
		if !ok {
			// Ответ на вопрос другого экзамена не засчитывается
			s.log.Warn("Answer references foreign exam question",
				zap.Uint("attempt_id", attempt.ID),
				zap.Uint("exam_question_id", answer.ExamQuestionID))
			continue
		}
		g.Go(func() error {
			q := &eq.Question
			grade, err := s.graders.For(q.QuestionType).Grade(gctx, q, answer)
			if err != nil {
				return fmt.Errorf("grade exam question %d: %w", eq.ID, err)
			}
			item := BreakdownItem{
				ExamQuestionID: eq.ID,
				QuestionID:     q.ID,
				Order:          eq.Order,
				QuestionType:   q.QuestionType,
				QuestionText:   q.Text,
				StudentAnswer:  grade.Display,
				IsCorrect:      grade.Correct,
				Weightage:      eq.Weightage,
				Note:           grade.Note,
			}
			if grade.Correct {
				item.Score = eq.Weightage
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	breakdown := make([]BreakdownItem, 0, len(items))
	var (
		totalScore float64
		correct    int
	)
	for _, item := range items {
		if item.ExamQuestionID == 0 {
			continue
		}
		if item.IsCorrect {
			totalScore += item.Score
			correct++
		}
		breakdown = append(breakdown, item)
	}
	sort.SliceStable(breakdown, func(a, b int) bool {
		if breakdown[a].Order != breakdown[b].Order {
			return breakdown[a].Order < breakdown[b].Order
		}
		return breakdown[a].ExamQuestionID < breakdown[b].ExamQuestionID
	})

	percentage := entity.Percentage(totalScore, maxScore)
	return &Evaluation{
		Result: &entity.ExamResult{
			AttemptID:      attempt.ID,
			TotalScore:     totalScore,
			MaxScore:       maxScore,
			Percentage:     percentage,
			CorrectAnswers: correct,
			TotalQuestions: len(examQuestions),
			IsPassed:       percentage >= exam.PassingScore,
		},
		Breakdown: breakdown,
	}, nil
}
