package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
	"github.com/yourusername/exam-api/pkg/monitoring"
)

// Actor пользователь, от имени которого выполняется операция.
// nil означает системный вызов (фоновая проверка просроченных попыток).
type Actor struct {
	UserID  uint
	IsStaff bool
}

// ClientMeta сведения о клиенте, записываемые при старте попытки
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// AttemptNotifier получает уведомления о закрытии попытки
type AttemptNotifier interface {
	NotifyAttemptClosed(attemptID uint, status entity.AttemptStatus, view *ResultView)
}

// StartResult итог старта попытки
type StartResult struct {
	Attempt *entity.ExamAttempt
	Exam    *entity.Exam
	// Resumed true, если возвращена уже открытая попытка
	Resumed bool
}

// AttemptQuestion вопрос попытки вместе с сохраненным ответом студента
type AttemptQuestion struct {
	ExamQuestion *entity.ExamQuestion
	Answer       *entity.StudentAnswer
}

// AttemptQuestions вопросы попытки в порядке экзамена
type AttemptQuestions struct {
	Attempt          *entity.ExamAttempt
	Exam             *entity.Exam
	Questions        []AttemptQuestion
	RemainingSeconds int64
}

// ResultView результат попытки с разбором, как он отдается клиенту и кешируется
type ResultView struct {
	AttemptID   uint                 `json:"attempt_id"`
	ExamID      uint                 `json:"exam_id"`
	ExamTitle   string               `json:"exam_title"`
	Status      entity.AttemptStatus `json:"status"`
	SubmittedAt *time.Time           `json:"submitted_at,omitempty"`
	Result      *entity.ExamResult   `json:"result"`
	Breakdown   []BreakdownItem      `json:"breakdown"`
}

// Scorer считает итог попытки
type Scorer interface {
	Evaluate(ctx context.Context, tx *gorm.DB, attempt *entity.ExamAttempt, exam *entity.Exam) (*Evaluation, error)
}

// AttemptService управляет жизненным циклом попытки: старт, финализация, возобновление
type AttemptService struct {
	tx            repository.Transactor
	exams         repository.ExamRepository
	examQuestions repository.ExamQuestionRepository
	attempts      repository.AttemptRepository
	answers       repository.AnswerRepository
	results       repository.ResultRepository
	cache         repository.CacheRepository
	scorer        Scorer
	clock         *TimeKeeper
	notifier      AttemptNotifier
	resultTTL     time.Duration
	log           *zap.Logger
}

// NewAttemptService создает AttemptService. cache может быть nil.
func NewAttemptService(
	tx repository.Transactor,
	exams repository.ExamRepository,
	examQuestions repository.ExamQuestionRepository,
	attempts repository.AttemptRepository,
	answers repository.AnswerRepository,
	results repository.ResultRepository,
	cache repository.CacheRepository,
	scorer Scorer,
	clock *TimeKeeper,
	resultTTL time.Duration,
	log *zap.Logger,
) *AttemptService {
	return &AttemptService{
		tx:            tx,
		exams:         exams,
		examQuestions: examQuestions,
		attempts:      attempts,
		answers:       answers,
		results:       results,
		cache:         cache,
		scorer:        scorer,
		clock:         clock,
		resultTTL:     resultTTL,
		log:           log.Named("attempts"),
	}
}

// SetNotifier подключает получателя уведомлений о закрытии попыток
func (s *AttemptService) SetNotifier(n AttemptNotifier) {
	s.notifier = n
}

// Clock возвращает часы сервиса
func (s *AttemptService) Clock() *TimeKeeper {
	return s.clock
}

func resultCacheKey(attemptID uint) string {
	return fmt.Sprintf("exam:result:%d", attemptID)
}

// Start создает попытку или возвращает уже открытую.
// Старт одной пары (экзамен, студент) сериализуется блокировкой в БД.
func (s *AttemptService) Start(ctx context.Context, actor Actor, examID uint, meta ClientMeta) (*StartResult, error) {
	exam, err := s.exams.GetByID(ctx, nil, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsActive {
		return nil, fmt.Errorf("exam %d is inactive: %w", examID, apperrors.ErrNotFound)
	}
	now := s.clock.Now()
	if !exam.InWindow(now) {
		return nil, apperrors.ErrOutOfWindow
	}

	result := &StartResult{Exam: exam}
	err = s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.attempts.LockExamStudent(ctx, tx, examID, actor.UserID); err != nil {
			return fmt.Errorf("failed to lock exam for student: %w", err)
		}

		latest, err := s.attempts.LatestByExamAndStudent(ctx, tx, examID, actor.UserID)
		switch {
		case err == nil:
			if latest.IsInProgress() {
				result.Attempt = latest
				result.Resumed = true
				return nil
			}
			return apperrors.ErrAlreadyAttempted
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}

		attempt := &entity.ExamAttempt{
			ExamID:    examID,
			StudentID: actor.UserID,
			Status:    entity.AttemptStatusInProgress,
			StartedAt: now,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		}
		if err := s.attempts.Create(ctx, tx, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		result.Attempt = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Resumed {
		s.log.Info("Returning open attempt",
			zap.Uint("attempt_id", result.Attempt.ID), zap.Uint("student_id", actor.UserID))
	} else {
		s.log.Info("Attempt started",
			zap.Uint("attempt_id", result.Attempt.ID), zap.Uint("exam_id", examID), zap.Uint("student_id", actor.UserID))
	}
	return result, nil
}

// loadOwned читает попытку и проверяет доступ
func (s *AttemptService) loadOwned(ctx context.Context, actor Actor, attemptID uint) (*entity.ExamAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff && !attempt.IsOwnedBy(actor.UserID) {
		return nil, apperrors.ErrForbidden
	}
	return attempt, nil
}

// GetQuestions возвращает вопросы открытой попытки с сохраненными ответами и оставшимся временем
func (s *AttemptService) GetQuestions(ctx context.Context, actor Actor, attemptID uint) (*AttemptQuestions, error) {
	attempt, err := s.loadOwned(ctx, actor, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsInProgress() {
		return nil, apperrors.ErrAttemptClosed
	}
	exam, err := s.exams.GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if s.clock.IsExpired(attempt, exam) {
		return nil, apperrors.ErrTimeExpired
	}

	examQuestions, err := s.examQuestions.ListByExam(ctx, nil, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}
	answers, err := s.answers.ListByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	byQuestion := make(map[uint]*entity.StudentAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].ExamQuestionID] = &answers[i]
	}

	out := &AttemptQuestions{
		Attempt:          attempt,
		Exam:             exam,
		Questions:        make([]AttemptQuestion, 0, len(examQuestions)),
		RemainingSeconds: s.clock.RemainingSeconds(attempt, exam),
	}
	for i := range examQuestions {
		eq := &examQuestions[i]
		out.Questions = append(out.Questions, AttemptQuestion{ExamQuestion: eq, Answer: byQuestion[eq.ID]})
	}
	return out, nil
}

// RemainingSeconds возвращает оставшееся время открытой попытки.
// После дедлайна с учетом grace возвращает ErrTimeExpired.
func (s *AttemptService) RemainingSeconds(ctx context.Context, actor Actor, attemptID uint) (int64, *entity.ExamAttempt, error) {
	attempt, err := s.loadOwned(ctx, actor, attemptID)
	if err != nil {
		return 0, nil, err
	}
	if !attempt.IsInProgress() {
		return 0, attempt, apperrors.ErrAttemptClosed
	}
	exam, err := s.exams.GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return 0, attempt, err
	}
	if s.clock.IsExpired(attempt, exam) {
		return 0, attempt, apperrors.ErrTimeExpired
	}
	return s.clock.RemainingSeconds(attempt, exam), attempt, nil
}

// Finalize закрывает попытку с причиной reason и сохраняет результат.
// Повторный вызов возвращает уже сохраненный результат.
// Отправка после истечения времени с учетом grace записывается как timeout.
func (s *AttemptService) Finalize(ctx context.Context, actor *Actor, attemptID uint, reason entity.AttemptStatus) (*ResultView, error) {
	if !reason.IsFinalizeReason() {
		return nil, fmt.Errorf("unsupported finalize reason %q: %w", reason, apperrors.ErrValidation)
	}

	var (
		view    *ResultView
		created bool
	)
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.attempts.LockByID(ctx, tx, attemptID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if actor != nil && !actor.IsStaff && !attempt.IsOwnedBy(actor.UserID) {
			return apperrors.ErrForbidden
		}
		exam, err := s.exams.GetByID(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}

		existing, err := s.results.GetByAttemptID(ctx, tx, attempt.ID)
		if err == nil {
			view, err = s.buildView(ctx, tx, attempt, exam, existing)
			return err
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if !attempt.IsInProgress() {
			return fmt.Errorf("attempt is %s: %w", attempt.Status, apperrors.ErrInvalidState)
		}

		status := reason
		if status == entity.AttemptStatusSubmitted && s.clock.IsExpired(attempt, exam) {
			status = entity.AttemptStatusTimeout
		}
		now := s.clock.Now()
		if err := s.attempts.TransitionStatus(ctx, tx, attempt.ID, entity.AttemptStatusInProgress, status, &now); err != nil {
			return err
		}
		attempt.Status = status
		attempt.SubmittedAt = &now

		eval, err := s.scorer.Evaluate(ctx, tx, attempt, exam)
		if err != nil {
			return fmt.Errorf("failed to score attempt: %w", err)
		}
		if err := s.results.Create(ctx, tx, eval.Result); err != nil {
			return err
		}
		view = newResultView(attempt, exam, eval.Result, eval.Breakdown)
		created = true
		return nil
	})
	if errors.Is(err, apperrors.ErrDuplicateResult) {
		// Результат успел сохранить параллельный вызов
		return s.GetResult(ctx, Actor{IsStaff: true}, attemptID)
	}
	if err != nil {
		return nil, err
	}

	if created {
		monitoring.AttemptsFinalized.WithLabelValues(string(view.Status)).Inc()
		s.log.Info("Attempt finalized",
			zap.Uint("attempt_id", attemptID),
			zap.String("status", string(view.Status)),
			zap.Float64("total_score", view.Result.TotalScore),
			zap.Float64("max_score", view.Result.MaxScore))
		s.cacheView(ctx, view)
		if s.notifier != nil {
			s.notifier.NotifyAttemptClosed(attemptID, view.Status, view)
		}
	}
	return view, nil
}

// GetResult возвращает результат закрытой попытки с разбором
func (s *AttemptService) GetResult(ctx context.Context, actor Actor, attemptID uint) (*ResultView, error) {
	attempt, err := s.loadOwned(ctx, actor, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsInProgress() {
		return nil, fmt.Errorf("attempt is still in progress: %w", apperrors.ErrNotFound)
	}

	if s.cache != nil {
		var cached ResultView
		if err := s.cache.GetJSON(ctx, resultCacheKey(attemptID), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			s.log.Warn("Result cache read failed", zap.Uint("attempt_id", attemptID), zap.Error(err))
		}
	}

	result, err := s.results.GetByAttemptID(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	view, err := s.buildView(ctx, nil, attempt, exam, result)
	if err != nil {
		return nil, err
	}
	s.cacheView(ctx, view)
	return view, nil
}

// Resume возвращает дисквалифицированную попытку в работу и удаляет ее результат
func (s *AttemptService) Resume(ctx context.Context, actor Actor, attemptID uint) (*entity.ExamAttempt, error) {
	if !actor.IsStaff {
		return nil, apperrors.ErrForbidden
	}

	var attempt *entity.ExamAttempt
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.attempts.LockByID(ctx, tx, attemptID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if !entity.CanTransition(attempt.Status, entity.AttemptStatusInProgress) {
			return fmt.Errorf("attempt is %s, only disqualified attempts can be resumed: %w", attempt.Status, apperrors.ErrInvalidState)
		}
		if err := s.results.DeleteByAttemptID(ctx, tx, attempt.ID); err != nil {
			return fmt.Errorf("failed to delete result: %w", err)
		}
		if err := s.attempts.TransitionStatus(ctx, tx, attempt.ID, entity.AttemptStatusDisqualified, entity.AttemptStatusInProgress, nil); err != nil {
			return err
		}
		attempt.Status = entity.AttemptStatusInProgress
		attempt.SubmittedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dropCachedView(ctx, attemptID)
	s.log.Info("Attempt resumed", zap.Uint("attempt_id", attemptID), zap.Uint("staff_id", actor.UserID))
	return attempt, nil
}

// Abandon закрывает открытую попытку без подсчета результата
func (s *AttemptService) Abandon(ctx context.Context, actor Actor, attemptID uint) (*entity.ExamAttempt, error) {
	if !actor.IsStaff {
		return nil, apperrors.ErrForbidden
	}

	var attempt *entity.ExamAttempt
	err := s.tx.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.attempts.LockByID(ctx, tx, attemptID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if !attempt.IsInProgress() {
			return fmt.Errorf("attempt is %s: %w", attempt.Status, apperrors.ErrInvalidState)
		}
		now := s.clock.Now()
		if err := s.attempts.TransitionStatus(ctx, tx, attempt.ID, entity.AttemptStatusInProgress, entity.AttemptStatusAbandoned, &now); err != nil {
			return err
		}
		attempt.Status = entity.AttemptStatusAbandoned
		attempt.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsFinalized.WithLabelValues(string(entity.AttemptStatusAbandoned)).Inc()
	s.log.Info("Attempt abandoned", zap.Uint("attempt_id", attemptID), zap.Uint("staff_id", actor.UserID))
	if s.notifier != nil {
		s.notifier.NotifyAttemptClosed(attemptID, entity.AttemptStatusAbandoned, nil)
	}
	return attempt, nil
}

func (s *AttemptService) buildView(ctx context.Context, tx *gorm.DB, attempt *entity.ExamAttempt, exam *entity.Exam, result *entity.ExamResult) (*ResultView, error) {
	eval, err := s.scorer.Evaluate(ctx, tx, attempt, exam)
	if err != nil {
		return nil, fmt.Errorf("failed to build breakdown: %w", err)
	}
	return newResultView(attempt, exam, result, eval.Breakdown), nil
}

func newResultView(attempt *entity.ExamAttempt, exam *entity.Exam, result *entity.ExamResult, breakdown []BreakdownItem) *ResultView {
	if breakdown == nil {
		breakdown = []BreakdownItem{}
	}
	return &ResultView{
		AttemptID:   attempt.ID,
		ExamID:      exam.ID,
		ExamTitle:   exam.Title,
		Status:      attempt.Status,
		SubmittedAt: attempt.SubmittedAt,
		Result:      result,
		Breakdown:   breakdown,
	}
}

func (s *AttemptService) cacheView(ctx context.Context, view *ResultView) {
	if s.cache == nil || s.resultTTL <= 0 {
		return
	}
	if err := s.cache.SetJSON(ctx, resultCacheKey(view.AttemptID), view, s.resultTTL); err != nil {
		s.log.Warn("Result cache write failed", zap.Uint("attempt_id", view.AttemptID), zap.Error(err))
	}
}

func (s *AttemptService) dropCachedView(ctx context.Context, attemptID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, resultCacheKey(attemptID)); err != nil {
		s.log.Warn("Result cache invalidation failed", zap.Uint("attempt_id", attemptID), zap.Error(err))
	}
}
