package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// RunLogRepository определяет контракт журнала запусков конвейера
type RunLogRepository interface {
	CreateRunLogTable() error
	CreateLogEntry(startTime time.Time, configSnapshot []byte) (int, string, error)
	UpdateLogEntrySuccess(runID int, endTime time.Time, newUsers, newEvents int, dqPassed bool, warnings []string) error
	UpdateLogEntryFailure(runID int, endTime time.Time, status string, errorMessage string, warnings []string) error
	GetRecentRuns(limit int) ([]PipelineRunLog, error)
}

// MySQLRunLogRepository реализация RunLogRepository для MySQL
type MySQLRunLogRepository struct {
	db *sql.DB
}

// NewMySQLRunLogRepository создает новый экземпляр MySQLRunLogRepository
func NewMySQLRunLogRepository(db *sql.DB) *MySQLRunLogRepository {
	return &MySQLRunLogRepository{
		db: db,
	}
}

// CreateRunLogTable создает таблицу журнала запусков, если она не существует
func (r *MySQLRunLogRepository) CreateRunLogTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS pipeline_run_log (
		run_id INT PRIMARY KEY,
		run_token CHAR(36) NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NULL,
		status ENUM('in_progress', 'success', 'failed', 'timeout') NOT NULL DEFAULT 'in_progress',
		config_snapshot BLOB,
		new_users_ingested INT DEFAULT 0,
		new_events_ingested INT DEFAULT 0,
		dq_checks_passed BOOLEAN DEFAULT FALSE,
		warnings TEXT,
		error_message TEXT,
		execution_time_seconds FLOAT
	);
	`

	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("ошибка при создании таблицы pipeline_run_log: %w", err)
	}

	return nil
}

// CreateLogEntry создает новую запись о запуске конвейера.
// Идентификатор запуска монотонно возрастает: количество всех прежних
// записей журнала плюс один. Снимок конфигурации сжимается snappy.
func (r *MySQLRunLogRepository) CreateLogEntry(startTime time.Time, configSnapshot []byte) (int, string, error) {
	var total int
	err := r.db.QueryRow("SELECT COUNT(*) FROM pipeline_run_log").Scan(&total)
	if err != nil {
		return 0, "", fmt.Errorf("ошибка при подсчете записей журнала: %w", err)
	}
	runID := total + 1

	// Корреляционный токен запуска — для сопоставления строк лога и статусных событий
	runToken := uuid.New().String()

	compressed := snappy.Encode(nil, configSnapshot)

	query := `
	INSERT INTO pipeline_run_log (run_id, run_token, start_time, status, config_snapshot)
	VALUES (?, ?, ?, 'in_progress', ?)
	`

	_, err = r.db.Exec(query, runID, runToken, startTime, compressed)
	if err != nil {
		return 0, "", fmt.Errorf("ошибка при создании записи о запуске конвейера: %w", err)
	}

	return runID, runToken, nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении конвейера
func (r *MySQLRunLogRepository) UpdateLogEntrySuccess(
	runID int,
	endTime time.Time,
	newUsers, newEvents int,
	dqPassed bool,
	warnings []string) error {

	executionTime, err := r.executionSeconds(runID, endTime)
	if err != nil {
		return err
	}

	warningsJSON, err := marshalWarnings(warnings)
	if err != nil {
		return err
	}

	query := `
	UPDATE pipeline_run_log
	SET
		end_time = ?,
		status = 'success',
		new_users_ingested = ?,
		new_events_ingested = ?,
		dq_checks_passed = ?,
		warnings = ?,
		execution_time_seconds = ?
	WHERE run_id = ?
	`

	_, err = r.db.Exec(query, endTime, newUsers, newEvents, dqPassed, warningsJSON, executionTime, runID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске конвейера: %w", err)
	}

	return nil
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении или таймауте
func (r *MySQLRunLogRepository) UpdateLogEntryFailure(
	runID int,
	endTime time.Time,
	status string,
	errorMessage string,
	warnings []string) error {

	if status != RunStatusFailed && status != RunStatusTimeout {
		return fmt.Errorf("недопустимый статус завершения с ошибкой: %q", status)
	}

	executionTime, err := r.executionSeconds(runID, endTime)
	if err != nil {
		return err
	}

	warningsJSON, err := marshalWarnings(warnings)
	if err != nil {
		return err
	}

	query := `
	UPDATE pipeline_run_log
	SET
		end_time = ?,
		status = ?,
		warnings = ?,
		error_message = ?,
		execution_time_seconds = ?
	WHERE run_id = ?
	`

	_, err = r.db.Exec(query, endTime, status, warningsJSON, errorMessage, executionTime, runID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске конвейера: %w", err)
	}

	return nil
}

// marshalWarnings сериализует предупреждения в JSON-массив.
// nil дает "[]", а не "null" — читателям журнала всегда приходит массив.
func marshalWarnings(warnings []string) (string, error) {
	if warnings == nil {
		warnings = []string{}
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return "", fmt.Errorf("ошибка при сериализации предупреждений: %w", err)
	}
	return string(data), nil
}

// executionSeconds рассчитывает длительность запуска в секундах
func (r *MySQLRunLogRepository) executionSeconds(runID int, endTime time.Time) (float64, error) {
	var startTime time.Time
	err := r.db.QueryRow("SELECT start_time FROM pipeline_run_log WHERE run_id = ?", runID).Scan(&startTime)
	if err != nil {
		return 0, fmt.Errorf("ошибка при получении времени начала запуска %d: %w", runID, err)
	}
	return endTime.Sub(startTime).Seconds(), nil
}

// GetRecentRuns возвращает последние записи журнала (новые — первыми)
func (r *MySQLRunLogRepository) GetRecentRuns(limit int) ([]PipelineRunLog, error) {
	query := `
	SELECT run_id, run_token, start_time, end_time, status, config_snapshot,
	       new_users_ingested, new_events_ingested, dq_checks_passed,
	       warnings, error_message, execution_time_seconds
	FROM pipeline_run_log
	ORDER BY run_id DESC
	LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении журнала запусков: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRunLog
	for rows.Next() {
		var (
			run          PipelineRunLog
			endTime      sql.NullTime
			snapshot     []byte
			warningsJSON sql.NullString
			errorMessage sql.NullString
			execSeconds  sql.NullFloat64
		)

		err := rows.Scan(
			&run.RunID, &run.RunToken, &run.StartTime, &endTime, &run.Status, &snapshot,
			&run.NewUsers, &run.NewEvents, &run.DQChecksPassed,
			&warningsJSON, &errorMessage, &execSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при чтении строки журнала: %w", err)
		}

		if endTime.Valid {
			run.EndTime = endTime.Time
		}
		if errorMessage.Valid {
			run.ErrorMessage = errorMessage.String
		}
		if execSeconds.Valid {
			run.DurationSeconds = execSeconds.Float64
		}

		// Снимок конфигурации хранится сжатым — распаковываем для отдачи наружу
		if len(snapshot) > 0 {
			decoded, err := snappy.Decode(nil, snapshot)
			if err != nil {
				return nil, fmt.Errorf("ошибка при распаковке снимка конфигурации запуска %d: %w", run.RunID, err)
			}
			run.ConfigSnapshot = string(decoded)
		}

		if warningsJSON.Valid && warningsJSON.String != "" {
			if err := json.Unmarshal([]byte(warningsJSON.String), &run.Warnings); err != nil {
				return nil, fmt.Errorf("ошибка при разборе предупреждений запуска %d: %w", run.RunID, err)
			}
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при обходе журнала запусков: %w", err)
	}

	return runs, nil
}
