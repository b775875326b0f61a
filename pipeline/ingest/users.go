package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
)

// parseUsers читает выгрузку пользователей и нормализует строки:
// user_id приводится к int64 (источник смешивает числа и строки),
// строки с нечитаемым user_id отбрасываются, дубликаты схлопываются
// (первое вхождение побеждает, порядок первых вхождений сохраняется),
// статус обрезается и приводится к нижнему регистру.
func parseUsers(r io.Reader) ([]models.RawUser, []string, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось прочитать заголовок CSV: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var (
		users    []models.RawUser
		warnings []string
		seen     = make(map[int64]bool)
		dropped  int
		dupes    int
	)

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка чтения CSV: %w", err)
		}

		userID, err := strconv.ParseInt(field(record, "user_id"), 10, 64)
		if err != nil {
			dropped++
			continue
		}

		if seen[userID] {
			dupes++
			continue
		}
		seen[userID] = true

		companyID, _ := strconv.ParseInt(field(record, "company_id"), 10, 64)

		user := models.RawUser{
			UserID:     userID,
			CompanyID:  companyID,
			SignupDate: parseFlexibleTime(field(record, "signup_date")),
			Status:     strings.ToLower(field(record, "status")),
		}
		users = append(users, user)
	}

	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("отброшено %d строк с нечитаемым user_id", dropped))
	}
	if dupes > 0 {
		warnings = append(warnings, fmt.Sprintf("схлопнуто %d дубликатов user_id (первое вхождение сохранено)", dupes))
	}

	return users, warnings, nil
}

// IngestUsers загружает выгрузку пользователей в raw_users.
// Вставка инкрементальная по user_id: существующие строки не трогаются.
// Возвращает количество новых строк.
func (i *Ingestor) IngestUsers(ctx context.Context) (int, error) {
	src := i.sourcePath(UsersFile)

	issues := ValidateCSV(src, []string{"user_id"})
	if len(issues) > 0 {
		for _, issue := range issues {
			i.logger.Error(issue)
		}
		return 0, fmt.Errorf("файл %s не прошел предварительную проверку: %s", UsersFile, issues[0])
	}

	total, dupCount := DetectCSVDuplicates(src, "user_id")
	if dupCount > 0 {
		i.logger.Warn("[DuplicateCheck] %s: %d/%d дубликатов user_id в источнике — будут схлопнуты при загрузке", UsersFile, dupCount, total)
	}

	file, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("не удалось открыть %s: %w", UsersFile, err)
	}
	defer file.Close()

	users, warnings, err := parseUsers(file)
	if err != nil {
		return 0, fmt.Errorf("ошибка разбора %s: %w", UsersFile, err)
	}
	for _, w := range warnings {
		i.logger.Warn("%s: %s", UsersFile, w)
	}
	i.logger.Info("Пользователи: %d уникальных строк после нормализации", len(users))

	if _, err := i.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS raw_users (
			user_id BIGINT PRIMARY KEY,
			company_id BIGINT,
			signup_date DATE NULL,
			status VARCHAR(32)
		)
	`); err != nil {
		return 0, fmt.Errorf("ошибка при создании таблицы raw_users: %w", err)
	}

	// INSERT IGNORE: существующий user_id остается нетронутым (append-only по ключу)
	stmt, err := i.db.PrepareContext(ctx, `
		INSERT IGNORE INTO raw_users (user_id, company_id, signup_date, status)
		VALUES (?, ?, ?, ?)
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
	for _, user := range users {
		var signup interface{}
		if !user.SignupDate.IsZero() {
			signup = user.SignupDate
		}
		result, err := txStmt.Exec(user.UserID, user.CompanyID, signup, user.Status)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("ошибка при вставке пользователя %d: %w", user.UserID, err)
		}
		affected, _ := result.RowsAffected()
		newRows += int(affected)
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	i.logger.Info("✓ raw_users: %d новых строк", newRows)
	return newRows, nil
}

// parseFlexibleTime разбирает временную метку в нескольких принятых форматах.
// Нечитаемое значение дает нулевое время — вызывающий решает, что с ним делать.
func parseFlexibleTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
