package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// BookingLoader отвечает за загрузку витрины бронирований
type BookingLoader struct {
	db     *sql.DB
	logger *utils.PipelineLogger
}

// NewBookingLoader создает новый экземпляр BookingLoader
func NewBookingLoader(db *sql.DB, logger *utils.PipelineLogger) *BookingLoader {
	return &BookingLoader{
		db:     db,
		logger: logger,
	}
}

// Load записывает fct_bookings. Витрина заменяется целиком на каждом запуске.
func (l *BookingLoader) Load(ctx context.Context, bookings []models.BookingFact) error {
	startTime := time.Now()
	l.logger.Info("Начало загрузки витрины бронирований (всего: %d)", len(bookings))

	if _, err := l.db.ExecContext(ctx, "DROP TABLE IF EXISTS fct_bookings"); err != nil {
		return fmt.Errorf("ошибка при удалении fct_bookings: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, `
		CREATE TABLE fct_bookings (
			booking_id VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			mentor_id VARCHAR(64) NOT NULL,
			requested_at DATETIME NOT NULL,
			resolved_at DATETIME NULL,
			status VARCHAR(16) NOT NULL,
			is_orphan_request BOOLEAN NOT NULL,
			is_no_show BOOLEAN NOT NULL,
			inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_bookings_mentor (mentor_id)
		)
	`); err != nil {
		return fmt.Errorf("ошибка при создании таблицы fct_bookings: %w", err)
	}

	stmt, err := l.db.PrepareContext(ctx, `
		INSERT INTO fct_bookings
			(booking_id, user_id, mentor_id, requested_at, resolved_at,
			 status, is_orphan_request, is_no_show)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	txStmt := tx.Stmt(stmt)
	defer txStmt.Close()

	batchSize := 100
	batch := 0
	processed := 0

	for _, booking := range bookings {
		var resolvedAt interface{}
		if booking.ResolvedAt != nil {
			resolvedAt = *booking.ResolvedAt
		}

		_, err := txStmt.Exec(
			booking.BookingID,
			booking.UserID,
			booking.MentorID,
			booking.RequestedAt,
			resolvedAt,
			booking.Status,
			booking.IsOrphanRequest,
			booking.IsNoShow,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке бронирования %s: %w", booking.BookingID, err)
		}

		processed++
		batch++

		if batch >= batchSize {
			if err := tx.Commit(); err != nil {
				tx.Rollback()
				return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
			}
			l.logger.Debug("Загружено %d из %d бронирований...", processed, len(bookings))

			tx, err = l.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("ошибка при начале новой транзакции: %w", err)
			}
			txStmt = tx.Stmt(stmt)
			batch = 0
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации последней транзакции: %w", err)
	}

	l.logger.Info("✓ fct_bookings: загружено %d строк. Длительность: %v", processed, time.Since(startTime))
	return nil
}
