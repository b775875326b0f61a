package analysis

import (
	"context"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// ReliabilityAnalyzer вычисляет метрики надежности бронирований по тарифам менторов
type ReliabilityAnalyzer struct {
	repo   *Repository
	logger *utils.PipelineLogger
}

// NewReliabilityAnalyzer создает новый экземпляр ReliabilityAnalyzer
func NewReliabilityAnalyzer(repo *Repository, logger *utils.PipelineLogger) *ReliabilityAnalyzer {
	return &ReliabilityAnalyzer{
		repo:   repo,
		logger: logger,
	}
}

// Analyze вычисляет метрики надежности отдельно для каждого тарифа
// из dim_mentors. Доля подтверждений и отмен считается от всех запросов,
// доля неявок — только от подтвержденных бронирований.
func (a *ReliabilityAnalyzer) Analyze(ctx context.Context) ([]models.ReliabilityRow, error) {
	tierStats, err := a.repo.FetchBookingStatsByTier(ctx)
	if err != nil {
		return nil, err
	}

	var results []models.ReliabilityRow
	for _, entry := range tierStats {
		results = append(results, buildReliabilityRow(entry.Tier, entry.Stats))
	}

	return results, nil
}

// buildReliabilityRow сворачивает агрегаты бронирований тарифа в строку результата
func buildReliabilityRow(tier string, stats BookingStats) models.ReliabilityRow {
	row := models.ReliabilityRow{
		MentorTier:     tier,
		TotalBookings:  stats.Total,
		ConfirmedCount: stats.Confirmed,
		CancelledCount: stats.Cancelled,
		NoShowCount:    stats.NoShows,
		PendingCount:   stats.Pending,
	}

	if stats.Total > 0 {
		row.ConfirmationRatePct = RoundToTenth(float64(stats.Confirmed) / float64(stats.Total) * 100)
		row.CancellationRatePct = RoundToTenth(float64(stats.Cancelled) / float64(stats.Total) * 100)
	}
	if stats.Confirmed > 0 {
		row.NoShowRatePct = RoundToTenth(float64(stats.NoShows) / float64(stats.Confirmed) * 100)
	}

	return row
}
