package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// Repository выполняет запросы к витринам для аналитических расчетов.
// Списки тарифов подставляются в текст запросов уже санитизированными
// (utils.BuildInList) — это единственное место, где конфигурация
// попадает в SQL.
type Repository struct {
	db     *sql.DB
	logger *utils.PipelineLogger
}

// NewRepository создает новый экземпляр Repository
func NewRepository(db *sql.DB, logger *utils.PipelineLogger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FetchUserSessionStarts возвращает времена начала сессий по пользователям
// для менторов из заданной группы тарифов. Времена каждого пользователя
// отсортированы по возрастанию.
func (r *Repository) FetchUserSessionStarts(ctx context.Context, tiersSQL string) (map[int64][]time.Time, error) {
	query := fmt.Sprintf(`
		SELECT s.user_id, s.started_at
		FROM fct_sessions s
		JOIN dim_mentors m ON s.mentor_id = m.mentor_id
		WHERE m.tier IN (%s)
		ORDER BY s.user_id ASC, s.started_at ASC
	`, tiersSQL)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка при выборке сессий группы (%s): %w", tiersSQL, err)
	}
	defer rows.Close()

	starts := make(map[int64][]time.Time)
	for rows.Next() {
		var userID int64
		var startedAt time.Time
		if err := rows.Scan(&userID, &startedAt); err != nil {
			return nil, fmt.Errorf("ошибка при чтении строки сессии: %w", err)
		}
		starts[userID] = append(starts[userID], startedAt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обходе сессий группы (%s): %w", tiersSQL, err)
	}

	return starts, nil
}

// BookingStats — агрегаты жизненного цикла бронирований
type BookingStats struct {
	Total     int
	Confirmed int
	Cancelled int
	Pending   int
	NoShows   int
}

// TierBookingStats — агрегаты бронирований одного тарифа менторов
type TierBookingStats struct {
	Tier  string
	Stats BookingStats
}

// FetchBookingStatsByTier возвращает агрегаты бронирований по каждому
// тарифу из dim_mentors, в алфавитном порядке тарифов. LEFT JOIN
// оставляет в выборке тарифы, по которым бронирований еще не было.
func (r *Repository) FetchBookingStatsByTier(ctx context.Context) ([]TierBookingStats, error) {
	query := `
		SELECT m.tier,
		       COUNT(b.booking_id),
		       COALESCE(SUM(CASE WHEN b.status = 'confirmed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN b.status = 'cancelled' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN b.status = 'pending'   THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN b.is_no_show THEN 1 ELSE 0 END), 0)
		FROM dim_mentors m
		LEFT JOIN fct_bookings b ON b.mentor_id = m.mentor_id
		GROUP BY m.tier
		ORDER BY m.tier ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка при агрегации бронирований по тарифам: %w", err)
	}
	defer rows.Close()

	var results []TierBookingStats
	for rows.Next() {
		var entry TierBookingStats
		err := rows.Scan(
			&entry.Tier,
			&entry.Stats.Total,
			&entry.Stats.Confirmed,
			&entry.Stats.Cancelled,
			&entry.Stats.Pending,
			&entry.Stats.NoShows,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при чтении агрегатов тарифа: %w", err)
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обходе агрегатов тарифов: %w", err)
	}

	return results, nil
}
