package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/packlabs/mentor_analytics/pipeline/models"
)

// flexibleID принимает идентификатор и числом, и строкой —
// источник событий смешивает оба представления
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	value := strings.TrimSpace(string(data))
	value = strings.Trim(value, `"`)
	*f = flexibleID(strings.TrimSpace(value))
	return nil
}

// rawEventRecord — сырая запись события до нормализации
type rawEventRecord struct {
	EventID   string     `json:"event_id"`
	EventType string     `json:"event_type"`
	UserID    flexibleID `json:"user_id"`
	MentorID  string     `json:"mentor_id"`
	Timestamp string     `json:"timestamp"`
}

// parseEvents нормализует поток событий:
//   - event_id дедуплицируется, первое вхождение побеждает,
//     порядок первых вхождений сохраняется;
//   - user_id приводится к int64, нечитаемые строки отбрасываются;
//   - event_type обрезается и приводится к нижнему регистру,
//     неизвестные типы сохраняются, но пересчитываются в предупреждения;
//   - нечитаемые временные метки отбрасываются до построения сессий.
func parseEvents(data []byte) ([]models.RawEvent, []string, error) {
	var records []rawEventRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("некорректный JSON событий: %w", err)
	}

	var (
		events       []models.RawEvent
		warnings     []string
		seen         = make(map[string]bool)
		dupes        int
		badUserIDs   int
		badTime      int
		unknownTypes = make(map[string]int)
	)

	for _, rec := range records {
		if rec.EventID == "" {
			continue
		}
		if seen[rec.EventID] {
			dupes++
			continue
		}
		seen[rec.EventID] = true

		userID, err := strconv.ParseInt(string(rec.UserID), 10, 64)
		if err != nil {
			badUserIDs++
			continue
		}

		timestamp := parseFlexibleTime(strings.TrimSpace(rec.Timestamp))
		if timestamp.IsZero() {
			badTime++
			continue
		}

		eventType := strings.ToLower(strings.TrimSpace(rec.EventType))
		if !models.KnownEventTypes[eventType] {
			unknownTypes[eventType]++
		}

		events = append(events, models.RawEvent{
			EventID:   rec.EventID,
			EventType: eventType,
			UserID:    userID,
			MentorID:  strings.TrimSpace(rec.MentorID),
			Timestamp: timestamp,
		})
	}

	if dupes > 0 {
		warnings = append(warnings, fmt.Sprintf("схлопнуто %d дубликатов event_id (первое вхождение сохранено)", dupes))
	}
	if badUserIDs > 0 {
		warnings = append(warnings, fmt.Sprintf("отброшено %d событий с нечитаемым user_id", badUserIDs))
	}
	if badTime > 0 {
		warnings = append(warnings, fmt.Sprintf("отброшено %d событий с нечитаемой временной меткой", badTime))
	}

	// Стабильный порядок предупреждений о неизвестных типах
	types := make([]string, 0, len(unknownTypes))
	for t := range unknownTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		warnings = append(warnings, fmt.Sprintf(
			"[DQ] неизвестный event_type '%s': %d событий — строки будут сохранены, но исключены из витрин",
			t, unknownTypes[t]))
	}

	return events, warnings, nil
}

// IngestEvents загружает поток событий бронирования в raw_events.
// Вставка инкрементальная по event_id. Возвращает количество новых строк.
func (i *Ingestor) IngestEvents(ctx context.Context) (int, error) {
	src := i.sourcePath(EventsFile)

	issues := ValidateJSONFile(src)
	if len(issues) > 0 {
		for _, issue := range issues {
			i.logger.Error(issue)
		}
		return 0, fmt.Errorf("файл %s не прошел предварительную проверку: %s", EventsFile, issues[0])
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return 0, fmt.Errorf("не удалось прочитать %s: %w", EventsFile, err)
	}

	events, warnings, err := parseEvents(data)
	if err != nil {
		return 0, fmt.Errorf("ошибка разбора %s: %w", EventsFile, err)
	}
	for _, w := range warnings {
		i.logger.Warn("%s: %s", EventsFile, w)
	}
	i.logger.Info("События: %d строк после нормализации", len(events))

	if _, err := i.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS raw_events (
			event_id VARCHAR(64) PRIMARY KEY,
			event_type VARCHAR(64),
			user_id BIGINT,
			mentor_id VARCHAR(64),
			event_ts DATETIME NOT NULL
		)
	`); err != nil {
		return 0, fmt.Errorf("ошибка при создании таблицы raw_events: %w", err)
	}

	stmt, err := i.db.PrepareContext(ctx, `
		INSERT IGNORE INTO raw_events (event_id, event_type, user_id, mentor_id, event_ts)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	txStmt := tx.Stmt(stmt)
	defer txStmt.Close()

	newRows := 0
	batch := 0
	for _, event := range events {
		result, err := txStmt.Exec(event.EventID, event.EventType, event.UserID, event.MentorID, event.Timestamp)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("ошибка при вставке события %s: %w", event.EventID, err)
		}
		affected, _ := result.RowsAffected()
		newRows += int(affected)
		batch++

		// Фиксируем пакетами, чтобы не держать одну гигантскую транзакцию
		if batch >= 500 {
			if err := tx.Commit(); err != nil {
				tx.Rollback()
				return 0, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
			}
			tx, err = i.db.BeginTx(ctx, nil)
			if err != nil {
				return 0, fmt.Errorf("ошибка при начале новой транзакции: %w", err)
			}
			txStmt = tx.Stmt(stmt)
			batch = 0
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("ошибка при фиксации последней транзакции: %w", err)
	}

	i.logger.Info("✓ raw_events: %d новых строк", newRows)
	return newRows, nil
}
