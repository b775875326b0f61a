package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// SessionLoader отвечает за загрузку витрины сессий
type SessionLoader struct {
	db     *sql.DB
	logger *utils.PipelineLogger
}

// NewSessionLoader создает новый экземпляр SessionLoader
func NewSessionLoader(db *sql.DB, logger *utils.PipelineLogger) *SessionLoader {
	return &SessionLoader{
		db:     db,
		logger: logger,
	}
}

// Load записывает fct_sessions. Витрина заменяется целиком на каждом
// запуске: предыдущие строки сессий отбрасываются.
func (l *SessionLoader) Load(ctx context.Context, sessions []models.SessionFact) error {
	startTime := time.Now()
	l.logger.Info("Начало загрузки витрины сессий (всего: %d)", len(sessions))

	if _, err := l.db.ExecContext(ctx, "DROP TABLE IF EXISTS fct_sessions"); err != nil {
		return fmt.Errorf("ошибка при удалении fct_sessions: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, `
		CREATE TABLE fct_sessions (
			session_id VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			mentor_id VARCHAR(64) NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NULL,
			duration_minutes INT NOT NULL,
			is_duration_estimated BOOLEAN NOT NULL,
			session_date DATE NOT NULL,
			inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_sessions_user (user_id),
			INDEX idx_sessions_mentor (mentor_id)
		)
	`); err != nil {
		return fmt.Errorf("ошибка при создании таблицы fct_sessions: %w", err)
	}

	stmt, err := l.db.PrepareContext(ctx, `
		INSERT INTO fct_sessions
			(session_id, user_id, mentor_id, started_at, ended_at,
			 duration_minutes, is_duration_estimated, session_date)
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

	for _, session := range sessions {
		var endedAt interface{}
		if session.EndedAt != nil {
			endedAt = *session.EndedAt
		}

		_, err := txStmt.Exec(
			session.SessionID,
			session.UserID,
			session.MentorID,
			session.StartedAt,
			endedAt,
			session.DurationMinutes,
			session.IsDurationEstimated,
			session.StartedAt.Format("2006-01-02"),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке сессии %s: %w", session.SessionID, err)
		}

		processed++
		batch++

		// Фиксируем пакетами и открываем новую транзакцию
		if batch >= batchSize {
			if err := tx.Commit(); err != nil {
				tx.Rollback()
				return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
			}
			l.logger.Debug("Загружено %d из %d сессий...", processed, len(sessions))

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

	l.logger.Info("✓ fct_sessions: загружено %d строк. Длительность: %v", processed, time.Since(startTime))
	return nil
}
