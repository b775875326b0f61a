package analysis

import (
	"context"
	"database/sql"

	"github.com/packlabs/mentor_analytics/pipeline/config"
	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// Results — итог аналитической фазы одного запуска конвейера
type Results struct {
	Rebooking   []models.RebookingRow   `json:"rebooking"`
	Reliability []models.ReliabilityRow `json:"reliability"`
	Warnings    []string                `json:"warnings"`
}

// AnalysisManager координирует аналитические расчеты
type AnalysisManager struct {
	logger      *utils.PipelineLogger
	rebooking   *RebookingAnalyzer
	reliability *ReliabilityAnalyzer
}

// NewAnalysisManager создает новый экземпляр AnalysisManager
func NewAnalysisManager(db *sql.DB, cfg *config.PipelineConfig, logger *utils.PipelineLogger) *AnalysisManager {
	repo := NewRepository(db, logger)
	return &AnalysisManager{
		logger:      logger,
		rebooking:   NewRebookingAnalyzer(repo, cfg, logger),
		reliability: NewReliabilityAnalyzer(repo, logger),
	}
}

// Run выполняет оба аналитических расчета и печатает сводку в лог
func (m *AnalysisManager) Run(ctx context.Context) (*Results, error) {
	rebookingRows, warnings, err := m.rebooking.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	reliabilityRows, err := m.reliability.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	results := &Results{
		Rebooking:   rebookingRows,
		Reliability: reliabilityRows,
		Warnings:    warnings,
	}

	m.logResults(results)

	return results, nil
}

// logResults печатает сводную таблицу результатов
func (m *AnalysisManager) logResults(results *Results) {
	m.logger.Info("=== Повторные бронирования ===")
	m.logger.Info("%-16s %10s %12s %10s %18s", "Группа", "Польз.", "Повторных", "Доля", "95% ДИ")
	for _, row := range results.Rebooking {
		m.logger.Info("%-16s %10d %12d %9.1f%% [%5.1f%%, %5.1f%%]",
			row.MentorTier, row.TotalUsers, row.UsersRebooked,
			row.RebookingRatePct, row.CILowerPct, row.CIUpperPct)
	}

	m.logger.Info("=== Надежность бронирований по тарифам ===")
	m.logger.Info("%-16s %8s %12s %8s %8s %10s %10s %8s", "Тариф", "Всего",
		"Подтвержд.", "Отмен", "Неявок", "Подтв.%", "Отмен.%", "Неяв.%")
	for _, row := range results.Reliability {
		m.logger.Info("%-16s %8d %12d %8d %8d %9.1f%% %9.1f%% %7.1f%%",
			row.MentorTier, row.TotalBookings, row.ConfirmedCount,
			row.CancelledCount, row.NoShowCount,
			row.ConfirmationRatePct, row.CancellationRatePct, row.NoShowRatePct)
	}

	for _, warning := range results.Warnings {
		m.logger.Warn("%s", warning)
	}
}
