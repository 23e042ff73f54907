package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
)

const resultsSheet = "Результаты"

// ReportService выгружает результаты экзамена
type ReportService struct {
	exams    repository.ExamRepository
	attempts repository.AttemptRepository
	results  repository.ResultRepository
	log      *zap.Logger
}

// NewReportService создает ReportService
func NewReportService(
	exams repository.ExamRepository,
	attempts repository.AttemptRepository,
	results repository.ResultRepository,
	log *zap.Logger,
) *ReportService {
	return &ReportService{exams: exams, attempts: attempts, results: results, log: log.Named("reports")}
}

// ExportExamResults пишет xlsx со всеми попытками экзамена в w.
// Возвращает экзамен для формирования имени файла.
func (s *ReportService) ExportExamResults(ctx context.Context, examID uint, w io.Writer) (*entity.Exam, error) {
	exam, err := s.exams.GetByID(ctx, nil, examID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	ids := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ID)
	}
	results, err := s.results.ListByAttemptIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	byAttempt := make(map[uint]*entity.ExamResult, len(results))
	for i := range results {
		byAttempt[results[i].AttemptID] = &results[i]
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: exam.Title, Creator: "exam-api"}); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(resultsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	headers := []interface{}{"Попытка", "Студент", "Статус", "Начало", "Завершение", "Баллы", "Максимум", "Процент", "Правильных", "Всего вопросов", "Сдан"}
	if err := sw.SetRow("A1", headers); err != nil {
		return nil, err
	}

	for i, a := range attempts {
		row := []interface{}{a.ID, a.StudentID, string(a.Status), a.StartedAt.UTC().Format(time.RFC3339), ""}
		if a.SubmittedAt != nil {
			row[4] = a.SubmittedAt.UTC().Format(time.RFC3339)
		}
		if r, ok := byAttempt[a.ID]; ok {
			passed := "Нет"
			if r.IsPassed {
				passed = "Да"
			}
			row = append(row, r.TotalScore, r.MaxScore, r.Percentage, r.CorrectAnswers, r.TotalQuestions, passed)
		} else {
			row = append(row, "", "", "", "", "", "")
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			s.log.Warn("Failed to write export row", zap.Int("row", i+2), zap.Error(err))
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return exam, nil
}
