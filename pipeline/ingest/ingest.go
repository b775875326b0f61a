// Package ingest загружает исходные файлы данных в raw-слой хранилища.
//
// Идемпотентность: пользователи и события вставляются инкрементально по
// первичному ключу (повторная загрузка того же файла дает ноль новых строк);
// справочник менторов всегда заменяется целиком — переназначение тарифа
// должно распространяться немедленно.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// Имена исходных файлов в каталоге данных
const (
	UsersFile   = "users_db_export.csv"
	MentorsFile = "mentor_tiers.csv"
	EventsFile  = "booking_events.json"
)

// Result содержит счетчики фазы загрузки
type Result struct {
	NewUsers  int
	NewEvents int
}

// Ingestor координирует загрузку raw-слоя
type Ingestor struct {
	db      *sql.DB
	logger  *utils.PipelineLogger
	dataDir string
}

// NewIngestor создает новый экземпляр Ingestor
func NewIngestor(db *sql.DB, logger *utils.PipelineLogger, dataDir string) *Ingestor {
	return &Ingestor{
		db:      db,
		logger:  logger,
		dataDir: dataDir,
	}
}

// Run выполняет полную фазу загрузки: пользователи, менторы, события
func (i *Ingestor) Run(ctx context.Context) (*Result, error) {
	i.logger.Info("=== Начало фазы Ingest ===")

	newUsers, err := i.IngestUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при загрузке пользователей: %w", err)
	}

	if err := i.IngestMentors(ctx); err != nil {
		return nil, fmt.Errorf("ошибка при загрузке менторов: %w", err)
	}

	newEvents, err := i.IngestEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при загрузке событий: %w", err)
	}

	// Итоговые счетчики raw-слоя
	for _, table := range []string{"raw_users", "raw_mentors", "raw_events"} {
		var count int
		if err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("ошибка при подсчете строк %s: %w", table, err)
		}
		i.logger.Info("  %s: всего строк %d", table, count)
	}

	i.logger.Info("=== Фаза Ingest завершена ===")
	return &Result{NewUsers: newUsers, NewEvents: newEvents}, nil
}

// sourcePath возвращает путь к исходному файлу в каталоге данных
func (i *Ingestor) sourcePath(name string) string {
	return filepath.Join(i.dataDir, name)
}
