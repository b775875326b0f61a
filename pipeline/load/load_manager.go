// Package load записывает измерения и витрины в хранилище.
//
// Семантика записи зеркалит жизненный цикл данных:
//   - dim_users — инкрементальное добавление по первичному ключу;
//   - dim_mentors — полная замена (смена тарифа применяется сразу);
//   - fct_sessions и fct_bookings — полная замена на каждом запуске.
//
// Полная замена также подчищает частичные записи фазы, убитой жестким
// таймаутом: откатов транзакций через запуски здесь нет по построению.
package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// LoadManager координирует загрузку витрин и измерений
type LoadManager struct {
	db              *sql.DB
	logger          *utils.PipelineLogger
	dimensionLoader *DimensionLoader
	sessionLoader   *SessionLoader
	bookingLoader   *BookingLoader
}

// NewLoadManager создает новый экземпляр LoadManager
func NewLoadManager(db *sql.DB, logger *utils.PipelineLogger) *LoadManager {
	return &LoadManager{
		db:              db,
		logger:          logger,
		dimensionLoader: NewDimensionLoader(db, logger),
		sessionLoader:   NewSessionLoader(db, logger),
		bookingLoader:   NewBookingLoader(db, logger),
	}
}

// Load записывает все измерения и витрины
func (m *LoadManager) Load(ctx context.Context, extracted *models.ExtractedData, transformed *models.TransformedData) error {
	startTime := time.Now()
	m.logger.Info("Начало фазы Load (Запись витрин)")

	if err := m.dimensionLoader.LoadUserDimension(ctx, extracted.Users); err != nil {
		return fmt.Errorf("ошибка при загрузке dim_users: %w", err)
	}

	if err := m.dimensionLoader.LoadMentorDimension(ctx, extracted.Mentors); err != nil {
		return fmt.Errorf("ошибка при загрузке dim_mentors: %w", err)
	}

	if err := m.sessionLoader.Load(ctx, transformed.Sessions); err != nil {
		return fmt.Errorf("ошибка при загрузке fct_sessions: %w", err)
	}

	if err := m.bookingLoader.Load(ctx, transformed.Bookings); err != nil {
		return fmt.Errorf("ошибка при загрузке fct_bookings: %w", err)
	}

	// Итоговые размеры витрин
	for _, table := range []string{"dim_users", "dim_mentors", "fct_sessions", "fct_bookings"} {
		var count int
		if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return fmt.Errorf("ошибка при подсчете строк %s: %w", table, err)
		}
		m.logger.Info("  %s: %d строк", table, count)
	}

	m.logger.Info("Фаза Load завершена. Длительность: %v", time.Since(startTime))
	return nil
}
