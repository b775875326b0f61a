package transform

import (
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// Transformer координирует построение витрин из raw-слоя
type Transformer struct {
	logger                 *utils.PipelineLogger
	defaultDurationMinutes int
}

// NewTransformer создает новый экземпляр Transformer
func NewTransformer(logger *utils.PipelineLogger, defaultDurationMinutes int) *Transformer {
	return &Transformer{
		logger:                 logger,
		defaultDurationMinutes: defaultDurationMinutes,
	}
}

// Transform строит витрины сессий и бронирований из извлеченных событий.
// Витрины пересобираются с нуля на каждом запуске — инкрементальной
// истории сессий нет.
func (t *Transformer) Transform(data *models.ExtractedData) (*models.TransformedData, error) {
	startTime := time.Now()
	t.logger.Info("Начало фазы Transform (Построение витрин)")

	// 1. Спаривание сессий
	t.logger.Info("Восстановление сессий из событий started/ended...")
	sessions := PairSessions(data.Events, t.defaultDurationMinutes)

	estimated := 0
	for _, s := range sessions {
		if s.IsDurationEstimated {
			estimated++
		}
	}
	t.logger.Info("Построено сессий: %d (из них с оцененной длительностью: %d)", len(sessions), estimated)

	// 2. Разрешение жизненного цикла бронирований
	t.logger.Info("Разрешение жизненного цикла бронирований...")
	bookings := BuildBookingFacts(data.Events)

	orphans := 0
	for _, b := range bookings {
		if b.IsOrphanRequest {
			orphans++
		}
	}
	t.logger.Info("Построено бронирований: %d (из них orphan-запросов: %d)", len(bookings), orphans)

	t.logger.Info("Фаза Transform завершена. Длительность: %v", time.Since(startTime))

	return &models.TransformedData{
		Sessions: sessions,
		Bookings: bookings,
	}, nil
}
