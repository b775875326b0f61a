package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/packlabs/mentor_analytics/pipeline/models"
)

// parseMentors читает справочник тарифов менторов и нормализует строки:
// mentor_id и tier обрезаются, tier приводится к Title Case, ставка
// по умолчанию 0. Пустой tier после нормализации — фатальная ошибка:
// справочник с безтарифным ментором сломал бы групповой анализ.
func parseMentors(r io.Reader) ([]models.RawMentor, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать заголовок CSV: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var (
		mentors   []models.RawMentor
		nullTiers int
		seen      = make(map[string]bool)
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения CSV: %w", err)
		}

		mentorID := field(record, "mentor_id")
		if mentorID == "" || seen[mentorID] {
			continue
		}
		seen[mentorID] = true

		tier := titleCase(field(record, "tier"))
		if tier == "" {
			nullTiers++
			continue
		}

		rate, _ := strconv.Atoi(field(record, "hourly_rate"))

		mentors = append(mentors, models.RawMentor{
			MentorID:   mentorID,
			Tier:       tier,
			HourlyRate: rate,
		})
	}

	if nullTiers > 0 {
		return nil, fmt.Errorf("%d строк с пустым tier после нормализации", nullTiers)
	}

	return mentors, nil
}

// titleCase приводит название тарифа к виду "Gold" / "Silver Plus".
// Первая руна слова может быть многобайтной, поэтому срез по байтам не годится.
func titleCase(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(first)) + w[size:]
	}
	return strings.Join(words, " ")
}

// IngestMentors загружает справочник менторов в raw_mentors.
// Всегда полная замена: смена тарифа должна применяться сразу,
// накопительная история здесь не нужна.
func (i *Ingestor) IngestMentors(ctx context.Context) error {
	src := i.sourcePath(MentorsFile)

	issues := ValidateCSV(src, []string{"mentor_id", "tier", "hourly_rate"})
	if len(issues) > 0 {
		for _, issue := range issues {
			i.logger.Error(issue)
		}
		return fmt.Errorf("файл %s не прошел предварительную проверку: %s", MentorsFile, issues[0])
	}

	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("не удалось открыть %s: %w", MentorsFile, err)
	}
	defer file.Close()

	mentors, err := parseMentors(file)
	if err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", MentorsFile, err)
	}
	i.logger.Info("Менторы: %d строк после нормализации", len(mentors))

	// Полная замена таблицы
	if _, err := i.db.ExecContext(ctx, "DROP TABLE IF EXISTS raw_mentors"); err != nil {
		return fmt.Errorf("ошибка при удалении raw_mentors: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, `
		CREATE TABLE raw_mentors (
			mentor_id VARCHAR(64) PRIMARY KEY,
			tier VARCHAR(64) NOT NULL,
			hourly_rate INT
		)
	`); err != nil {
		return fmt.Errorf("ошибка при создании таблицы raw_mentors: %w", err)
	}

	stmt, err := i.db.PrepareContext(ctx, `
		INSERT INTO raw_mentors (mentor_id, tier, hourly_rate)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	txStmt := tx.Stmt(stmt)
	defer txStmt.Close()

	for _, mentor := range mentors {
		if _, err := txStmt.Exec(mentor.MentorID, mentor.Tier, mentor.HourlyRate); err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при вставке ментора %s: %w", mentor.MentorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	i.logger.Info("✓ raw_mentors: таблица заменена (%d строк)", len(mentors))
	return nil
}
