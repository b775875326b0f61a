package analysis

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

func newTestReliabilityAnalyzer(t *testing.T) (*ReliabilityAnalyzer, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := utils.NewPipelineLogger(false)
	return NewReliabilityAnalyzer(NewRepository(db, logger), logger), mock
}

func tierStatsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"tier", "total", "confirmed", "cancelled", "pending", "no_shows",
	})
}

func TestAnalyzeReliabilityPerTier(t *testing.T) {
	analyzer, mock := newTestReliabilityAnalyzer(t)

	// Каждый тариф из dim_mentors дает отдельную строку, без слияния в группы
	mock.ExpectQuery("GROUP BY m.tier").
		WillReturnRows(tierStatsRows().
			AddRow("Bronze", 40, 20, 16, 4, 2).
			AddRow("Gold", 200, 160, 30, 10, 24).
			AddRow("Silver", 100, 75, 20, 5, 6))

	rows, err := analyzer.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Bronze", rows[0].MentorTier)
	assert.Equal(t, "Gold", rows[1].MentorTier)
	assert.Equal(t, "Silver", rows[2].MentorTier)

	assert.Equal(t, 80.0, rows[1].ConfirmationRatePct)
	assert.Equal(t, 15.0, rows[1].CancellationRatePct)
	assert.Equal(t, 15.0, rows[1].NoShowRatePct)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyzeReliabilityTierWithoutBookings(t *testing.T) {
	analyzer, mock := newTestReliabilityAnalyzer(t)

	// LEFT JOIN оставляет тариф без бронирований в выборке с нулями
	mock.ExpectQuery("GROUP BY m.tier").
		WillReturnRows(tierStatsRows().
			AddRow("Bronze", 0, 0, 0, 0, 0).
			AddRow("Gold", 10, 8, 2, 0, 1))

	rows, err := analyzer.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Bronze", rows[0].MentorTier)
	assert.Equal(t, 0, rows[0].TotalBookings)
	assert.Equal(t, 0.0, rows[0].ConfirmationRatePct)
}

func TestBuildReliabilityRow(t *testing.T) {
	stats := BookingStats{Total: 200, Confirmed: 160, Cancelled: 30, Pending: 10, NoShows: 24}

	row := buildReliabilityRow("Gold", stats)

	assert.Equal(t, "Gold", row.MentorTier)
	assert.Equal(t, 200, row.TotalBookings)
	assert.Equal(t, 160, row.ConfirmedCount)
	assert.Equal(t, 30, row.CancelledCount)
	assert.Equal(t, 24, row.NoShowCount)
	assert.Equal(t, 10, row.PendingCount)

	assert.Equal(t, 80.0, row.ConfirmationRatePct)
	assert.Equal(t, 15.0, row.CancellationRatePct)
	// Доля неявок считается от подтвержденных, не от всех запросов
	assert.Equal(t, 15.0, row.NoShowRatePct)
}

func TestBuildReliabilityRowNoConfirmed(t *testing.T) {
	// Все отменены: доля неявок не определена и остается нулевой
	stats := BookingStats{Total: 10, Cancelled: 10}

	row := buildReliabilityRow("Silver", stats)
	assert.Equal(t, 0.0, row.ConfirmationRatePct)
	assert.Equal(t, 100.0, row.CancellationRatePct)
	assert.Equal(t, 0.0, row.NoShowRatePct)
}

func TestBuildReliabilityRowEmpty(t *testing.T) {
	row := buildReliabilityRow("Gold", BookingStats{})
	assert.Equal(t, 0, row.TotalBookings)
	assert.Equal(t, 0.0, row.ConfirmationRatePct)
	assert.Equal(t, 0.0, row.CancellationRatePct)
	assert.Equal(t, 0.0, row.NoShowRatePct)
}

func TestBuildReliabilityRowRounding(t *testing.T) {
	stats := BookingStats{Total: 3, Confirmed: 1}

	row := buildReliabilityRow("Gold", stats)
	assert.Equal(t, 33.3, row.ConfirmationRatePct)
}
