package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// DimensionLoader отвечает за загрузку измерений dim_users и dim_mentors
type DimensionLoader struct {
	db     *sql.DB
	logger *utils.PipelineLogger
}

// NewDimensionLoader создает новый экземпляр DimensionLoader
func NewDimensionLoader(db *sql.DB, logger *utils.PipelineLogger) *DimensionLoader {
	return &DimensionLoader{
		db:     db,
		logger: logger,
	}
}

// LoadUserDimension загружает измерение пользователей.
// Медленно меняющееся измерение с добавлением по первичному ключу:
// новые user_id вставляются, существующие остаются нетронутыми.
func (l *DimensionLoader) LoadUserDimension(ctx context.Context, users []models.RawUser) error {
	if _, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dim_users (
			user_id BIGINT PRIMARY KEY,
			company_id BIGINT,
			signup_date DATE NULL,
			status VARCHAR(32),
			inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("ошибка при создании таблицы dim_users: %w", err)
	}

	stmt, err := l.db.PrepareContext(ctx, `
		INSERT IGNORE INTO dim_users (user_id, company_id, signup_date, status)
		VALUES (?, ?, ?, ?)
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

	inserted := 0
	for _, user := range users {
		var signup interface{}
		if !user.SignupDate.IsZero() {
			signup = user.SignupDate
		}
		result, err := txStmt.Exec(user.UserID, user.CompanyID, signup, user.Status)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке в dim_users для пользователя %d: %w", user.UserID, err)
		}
		affected, _ := result.RowsAffected()
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	l.logger.Info("✓ dim_users: добавлено %d новых строк", inserted)
	return nil
}

// LoadMentorDimension загружает измерение менторов.
// Всегда полная замена: переназначение тарифа должно распространяться
// на анализ немедленно, накопление истории не поддерживается.
func (l *DimensionLoader) LoadMentorDimension(ctx context.Context, mentors []models.RawMentor) error {
	if _, err := l.db.ExecContext(ctx, "DROP TABLE IF EXISTS dim_mentors"); err != nil {
		return fmt.Errorf("ошибка при удалении dim_mentors: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, `
		CREATE TABLE dim_mentors (
			mentor_id VARCHAR(64) PRIMARY KEY,
			tier VARCHAR(64) NOT NULL,
			hourly_rate INT,
			inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("ошибка при создании таблицы dim_mentors: %w", err)
	}

	stmt, err := l.db.PrepareContext(ctx, `
		INSERT INTO dim_mentors (mentor_id, tier, hourly_rate)
		VALUES (?, ?, ?)
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

	for _, mentor := range mentors {
		if _, err := txStmt.Exec(mentor.MentorID, mentor.Tier, mentor.HourlyRate); err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке в dim_mentors для ментора %s: %w", mentor.MentorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	l.logger.Info("✓ dim_mentors: таблица заменена (%d строк)", len(mentors))
	return nil
}
