// Package validate выполняет проверки качества данных над построенными витринами.
//
// Контракт: нарушение бизнес-правила — это не ошибка, а данные. Провалы и
// предупреждения собираются в списки, чтобы вызывающий увидел сразу все
// проблемы, а не первую попавшуюся. Ошибкой (error) считается только
// инфраструктурный сбой — когда движок запросов вернул NULL или пустой
// результат там, где данные обязаны быть: «данные говорят X» и «сломана
// обвязка запросов» различаются типом *InfraError.
package validate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/packlabs/mentor_analytics/pipeline/config"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// InfraError — инфраструктурный сбой при выполнении проверки качества данных
type InfraError struct {
	Check string
	Err   error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("[%s] инфраструктурная ошибка: %v", e.Check, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

// Checker выполняет проверки качества данных
type Checker struct {
	db     *sql.DB
	logger *utils.PipelineLogger
}

// NewChecker создает новый экземпляр Checker
func NewChecker(db *sql.DB, logger *utils.PipelineLogger) *Checker {
	return &Checker{
		db:     db,
		logger: logger,
	}
}

// RunChecks выполняет все проверки качества данных.
// Возвращает (провалы, предупреждения, инфраструктурная ошибка).
// Провалы фатальны для запуска, предупреждения — нет.
func (c *Checker) RunChecks(ctx context.Context, cfg *config.PipelineConfig) ([]string, []string, error) {
	var failures []string
	var warnings []string

	// 1. Отрицательные длительности — признак повреждения данных
	// (session_ended раньше session_started) выше по конвейеру
	negCount, err := c.countValue(ctx, "Check 1",
		"SELECT COUNT(*) FROM fct_sessions WHERE duration_minutes < 0")
	if err != nil {
		return nil, nil, err
	}
	if negCount > 0 {
		failures = append(failures, fmt.Sprintf(
			"FAIL [Check 1]: %d сессий с отрицательной длительностью — session_ended раньше session_started (повреждение данных)",
			negCount))
	} else {
		c.logger.Info("PASS [Check 1]: отрицательных длительностей сессий нет")
	}

	// 2. Ссылочная целостность: каждая сессия должна ссылаться на известного пользователя
	orphanUsers, err := c.countValue(ctx, "Check 2", `
		SELECT COUNT(*)
		FROM fct_sessions s
		LEFT JOIN dim_users u ON s.user_id = u.user_id
		WHERE u.user_id IS NULL`)
	if err != nil {
		return nil, nil, err
	}
	if orphanUsers > 0 {
		failures = append(failures, fmt.Sprintf(
			"FAIL [Check 2]: %d сессий ссылаются на user_id, отсутствующий в dim_users",
			orphanUsers))
	} else {
		c.logger.Info("PASS [Check 2]: ссылочная целостность fct_sessions → dim_users соблюдена")
	}

	// 3. Уникальность идентификатора сессии
	dupSessions, err := c.countValue(ctx, "Check 3", `
		SELECT COUNT(*) FROM (
			SELECT session_id FROM fct_sessions GROUP BY session_id HAVING COUNT(*) > 1
		) d`)
	if err != nil {
		return nil, nil, err
	}
	if dupSessions > 0 {
		failures = append(failures, fmt.Sprintf(
			"FAIL [Check 3]: %d значений session_id встречаются в fct_sessions более одного раза",
			dupSessions))
	} else {
		c.logger.Info("PASS [Check 3]: session_id уникальны")
	}

	// 4. Выбросы длительности — только предупреждение, запуск не останавливаем
	outliers, err := c.countValue(ctx, "Check 4",
		"SELECT COUNT(*) FROM fct_sessions WHERE duration_minutes > ?", cfg.DQMaxDurationMinutes)
	if err != nil {
		return nil, nil, err
	}
	if outliers > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"WARN [Check 4]: %d сессий длиннее %d минут — вероятен дрейф часов",
			outliers, cfg.DQMaxDurationMinutes))
	} else {
		c.logger.Info("PASS [Check 4]: сессий длиннее %d минут нет", cfg.DQMaxDurationMinutes)
	}

	// 5. Доля orphan-запросов бронирования.
	// Проверка выполняется только когда витрина fct_bookings материализована:
	// отсутствие таблицы — это SKIP, а не провал (намеренно мягкое поведение,
	// видимое в логе каждого запуска).
	if err := c.checkOrphanRate(ctx, cfg, &warnings); err != nil {
		return nil, nil, err
	}

	// 6. Каждый настроенный тариф обязан существовать в dim_mentors —
	// опечатка в конфигурации не должна молча давать пустую группу анализа
	if err := c.checkConfiguredTiers(ctx, cfg, &failures); err != nil {
		return nil, nil, err
	}

	for _, w := range warnings {
		c.logger.Warn("%s", w)
	}

	return failures, warnings, nil
}

// checkOrphanRate выполняет проверку 5
func (c *Checker) checkOrphanRate(ctx context.Context, cfg *config.PipelineConfig, warnings *[]string) error {
	exists, err := c.tableExists(ctx, "fct_bookings")
	if err != nil {
		return &InfraError{Check: "Check 5", Err: err}
	}
	if !exists {
		c.logger.Info("SKIP [Check 5]: fct_bookings еще не материализована — сначала выполните фазу Transform")
		return nil
	}

	var total sql.NullInt64
	var orphans sql.NullInt64
	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*)                                              AS total_bookings,
		       SUM(CASE WHEN is_orphan_request THEN 1 ELSE 0 END)    AS orphan_count
		FROM fct_bookings
	`).Scan(&total, &orphans)
	if err != nil {
		return &InfraError{Check: "Check 5", Err: err}
	}
	if !total.Valid {
		return &InfraError{Check: "Check 5", Err: fmt.Errorf("COUNT(*) вернул NULL")}
	}
	if total.Int64 == 0 {
		c.logger.Info("SKIP [Check 5]: fct_bookings пуста — проверка orphan-запросов не нужна")
		return nil
	}
	if !orphans.Valid {
		return &InfraError{Check: "Check 5", Err: fmt.Errorf("SUM по orphan-запросам вернул NULL при %d строках", total.Int64)}
	}

	orphanRate := float64(orphans.Int64) / float64(total.Int64)
	if orphanRate > cfg.DQMaxOrphanRate {
		*warnings = append(*warnings, fmt.Sprintf(
			"WARN [Check 5]: %d/%d бронирований (%.1f%%) — orphan-запросы без исхода confirmed/cancelled, порог %.0f%%. Возможная причина: события вне порядка или потерянные записи исходов",
			orphans.Int64, total.Int64, orphanRate*100, cfg.DQMaxOrphanRate*100))
	} else {
		c.logger.Info("PASS [Check 5]: доля orphan-запросов %.1f%% в пределах порога %.0f%% (%d/%d)",
			orphanRate*100, cfg.DQMaxOrphanRate*100, orphans.Int64, total.Int64)
	}

	return nil
}

// checkConfiguredTiers выполняет проверку 6
func (c *Checker) checkConfiguredTiers(ctx context.Context, cfg *config.PipelineConfig, failures *[]string) error {
	configured := append(append([]string{}, cfg.TiersGroupA...), cfg.TiersGroupB...)

	// Список тарифов подставляется в текст запроса через единую точку санитизации
	inList := utils.BuildInList(configured)

	existing := make(map[string]bool)
	rows, err := c.db.QueryContext(ctx,
		"SELECT DISTINCT tier FROM dim_mentors WHERE tier IN ("+inList+")")
	if err != nil {
		return &InfraError{Check: "Check 6", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		if err := rows.Scan(&tier); err != nil {
			return &InfraError{Check: "Check 6", Err: err}
		}
		existing[tier] = true
	}
	if err := rows.Err(); err != nil {
		return &InfraError{Check: "Check 6", Err: err}
	}

	var available []string
	availRows, err := c.db.QueryContext(ctx, "SELECT DISTINCT tier FROM dim_mentors ORDER BY tier")
	if err != nil {
		return &InfraError{Check: "Check 6", Err: err}
	}
	defer availRows.Close()
	for availRows.Next() {
		var tier string
		if err := availRows.Scan(&tier); err != nil {
			return &InfraError{Check: "Check 6", Err: err}
		}
		available = append(available, tier)
	}
	if err := availRows.Err(); err != nil {
		return &InfraError{Check: "Check 6", Err: err}
	}

	var missing []string
	for _, tier := range configured {
		if !existing[tier] {
			missing = append(missing, tier)
		}
	}

	if len(missing) > 0 {
		*failures = append(*failures, fmt.Sprintf(
			"FAIL [Check 6]: настроенные тарифы %v отсутствуют в dim_mentors (имеются: %v) — проверьте конфигурацию на опечатки",
			missing, available))
	} else {
		c.logger.Info("PASS [Check 6]: все настроенные тарифы существуют в dim_mentors")
	}

	return nil
}

// countValue выполняет запрос одного счетчика и различает «данные говорят 0»
// и «обвязка запросов сломана»
func (c *Checker) countValue(ctx context.Context, checkName, query string, args ...interface{}) (int64, error) {
	var value sql.NullInt64
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return 0, &InfraError{Check: checkName, Err: err}
	}
	if !value.Valid {
		return 0, &InfraError{Check: checkName, Err: fmt.Errorf("COUNT вернул NULL вместо числа")}
	}
	return value.Int64, nil
}

// tableExists сообщает, материализована ли таблица в текущей схеме
func (c *Checker) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?
	`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
