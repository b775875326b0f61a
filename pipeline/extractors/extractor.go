// Package extractors читает raw-слой хранилища в структуры для фазы трансформации
package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// Extractor отвечает за извлечение данных raw-слоя
type Extractor struct {
	db     *sql.DB
	logger *utils.PipelineLogger
}

// NewExtractor создает новый экземпляр Extractor
func NewExtractor(db *sql.DB, logger *utils.PipelineLogger) *Extractor {
	return &Extractor{
		db:     db,
		logger: logger,
	}
}

// Extract извлекает события, пользователей и менторов из raw-слоя
func (e *Extractor) Extract(ctx context.Context) (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.Info("Начало фазы Extract (Извлечение raw-слоя)")

	events, err := e.extractEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при извлечении событий: %w", err)
	}

	users, err := e.extractUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при извлечении пользователей: %w", err)
	}

	mentors, err := e.extractMentors(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при извлечении менторов: %w", err)
	}

	e.logger.Info("Фаза Extract завершена. Извлечено: %d событий, %d пользователей, %d менторов. Длительность: %v",
		len(events), len(users), len(mentors), time.Since(startTime))

	return &models.ExtractedData{
		Events:  events,
		Users:   users,
		Mentors: mentors,
	}, nil
}

// extractEvents читает события в хронологическом порядке
func (e *Extractor) extractEvents(ctx context.Context) ([]models.RawEvent, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT event_id, event_type, user_id, mentor_id, event_ts
		FROM raw_events
		ORDER BY event_ts ASC, event_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.RawEvent
	for rows.Next() {
		var event models.RawEvent
		if err := rows.Scan(&event.EventID, &event.EventType, &event.UserID, &event.MentorID, &event.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// extractUsers читает выгрузку пользователей
func (e *Extractor) extractUsers(ctx context.Context) ([]models.RawUser, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT user_id, company_id, signup_date, status
		FROM raw_users
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.RawUser
	for rows.Next() {
		var (
			user       models.RawUser
			signupDate sql.NullTime
		)
		if err := rows.Scan(&user.UserID, &user.CompanyID, &signupDate, &user.Status); err != nil {
			return nil, err
		}
		if signupDate.Valid {
			user.SignupDate = signupDate.Time
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// extractMentors читает справочник менторов
func (e *Extractor) extractMentors(ctx context.Context) ([]models.RawMentor, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT mentor_id, tier, hourly_rate
		FROM raw_mentors
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentors []models.RawMentor
	for rows.Next() {
		var mentor models.RawMentor
		if err := rows.Scan(&mentor.MentorID, &mentor.Tier, &mentor.HourlyRate); err != nil {
			return nil, err
		}
		mentors = append(mentors, mentor)
	}
	return mentors, rows.Err()
}
