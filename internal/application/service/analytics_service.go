package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/task-tracker/internal/application/port"
)

// TaskStats is one rollup bucket: either the actor's own tasks or the whole team's.
type TaskStats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
	OverdueCount int            `json:"overdue_count"`
}

// AnalyticsReport is the full analytics response.
type AnalyticsReport struct {
	MyTasks         TaskStats `json:"my_tasks"`
	TeamTasks       TaskStats `json:"team_tasks"`
	EfficiencyScore float64   `json:"efficiency_score"`
}

// AnalyticsService produces read-only rollups over the task store.
type AnalyticsService interface {
	Report(ctx context.Context, userID int64) (*AnalyticsReport, error)

	// ExportXLSX renders the report as an xlsx workbook.
	ExportXLSX(ctx context.Context, userID int64) ([]byte, error)
}

type analyticsServiceImpl struct {
	taskRepo port.TaskRepository
	logger   Logger
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(taskRepo port.TaskRepository, logger Logger) AnalyticsService {
	return &analyticsServiceImpl{taskRepo: taskRepo, logger: logger}
}

func (s *analyticsServiceImpl) Report(ctx context.Context, userID int64) (*AnalyticsReport, error) {
	now := time.Now()

	mine, err := s.stats(ctx, &userID, now)
	if err != nil {
		return nil, fmt.Errorf("my task stats: %w", err)
	}
	team, err := s.stats(ctx, nil, now)
	if err != nil {
		return nil, fmt.Errorf("team task stats: %w", err)
	}

	score, err := s.efficiencyScore(ctx, userID, mine)
	if err != nil {
		return nil, err
	}

	return &AnalyticsReport{
		MyTasks:         *mine,
		TeamTasks:       *team,
		EfficiencyScore: score,
	}, nil
}

func (s *analyticsServiceImpl) stats(ctx context.Context, userID *int64, now time.Time) (*TaskStats, error) {
	byStatus, err := s.taskRepo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}
	overdue, err := s.taskRepo.CountOverdue(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	return &TaskStats{Total: total, ByStatus: byStatus, OverdueCount: overdue}, nil
}

// efficiencyScore combines the completion ratio with how well completed
// tasks tracked their hour estimates, scaled to 0..100. Tasks that beat
// their estimate count as fully accurate rather than super-efficient.
func (s *analyticsServiceImpl) efficiencyScore(ctx context.Context, userID int64, mine *TaskStats) (float64, error) {
	if mine.Total == 0 {
		return 0, nil
	}
	completionRatio := float64(mine.ByStatus["completed"]) / float64(mine.Total)

	pairs, err := s.taskRepo.HoursForCompleted(ctx, &userID)
	if err != nil {
		return 0, fmt.Errorf("completed task hours: %w", err)
	}

	accuracy := 1.0
	if len(pairs) > 0 {
		sum := 0.0
		for _, p := range pairs {
			estimated, actual := p[0], p[1]
			if actual <= 0 {
				continue
			}
			ratio := estimated / actual
			if ratio > 1 {
				ratio = 1
			}
			sum += ratio
		}
		accuracy = sum / float64(len(pairs))
	}

	return completionRatio * accuracy * 100, nil
}

func (s *analyticsServiceImpl) ExportXLSX(ctx context.Context, userID int64) ([]byte, error) {
	report, err := s.Report(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Analytics"
	f.SetSheetName("Sheet1", sheet)

	rows := [][]interface{}{
		{"Scope", "Total", "Pending", "In Progress", "Blocked", "Completed", "Overdue"},
		statsRow("My Tasks", report.MyTasks),
		statsRow("Team Tasks", report.TeamTasks),
		{},
		{"Efficiency Score", report.EfficiencyScore},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("resolve cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.Info("Analytics exported", "user_id", userID)
	return buf.Bytes(), nil
}

func statsRow(label string, stats TaskStats) []interface{} {
	return []interface{}{
		label,
		stats.Total,
		stats.ByStatus["pending"],
		stats.ByStatus["in_progress"],
		stats.ByStatus["blocked"],
		stats.ByStatus["completed"],
		stats.OverdueCount,
	}
}
