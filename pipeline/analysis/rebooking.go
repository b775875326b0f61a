// Package analysis вычисляет метрики повторных бронирований и надежности
// по двум настроенным группам тарифов менторов.
//
// Оценка доли всегда публикуется вместе с 95% доверительным интервалом
// Уилсона: точечная оценка на малой выборке без интервала вводит в
// заблуждение. Дополнительно анализатор помечает подозрительные результаты
// предупреждениями, не останавливая запуск.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/config"
	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// minSampleSize — порог, ниже которого результат считается ориентировочным
const minSampleSize = 30

// RebookingAnalyzer вычисляет долю пользователей, повторно бронирующих
// сессии, по группам тарифов менторов
type RebookingAnalyzer struct {
	repo   *Repository
	cfg    *config.PipelineConfig
	logger *utils.PipelineLogger
}

// NewRebookingAnalyzer создает новый экземпляр RebookingAnalyzer
func NewRebookingAnalyzer(repo *Repository, cfg *config.PipelineConfig, logger *utils.PipelineLogger) *RebookingAnalyzer {
	return &RebookingAnalyzer{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// Analyze вычисляет метрику повторных бронирований для обеих групп тарифов.
// Возвращает строки результата и предупреждения о качестве выборки.
func (a *RebookingAnalyzer) Analyze(ctx context.Context) ([]models.RebookingRow, []string, error) {
	groups := []struct {
		label    string
		tiersSQL string
	}{
		{a.cfg.GroupALabel(), a.cfg.TiersASQL()},
		{a.cfg.GroupBLabel(), a.cfg.TiersBSQL()},
	}

	window, hasWindow := a.cfg.RebookingWindow()

	var results []models.RebookingRow
	var warnings []string

	for _, group := range groups {
		starts, err := a.repo.FetchUserSessionStarts(ctx, group.tiersSQL)
		if err != nil {
			return nil, nil, err
		}

		row := computeRebookingRow(group.label, starts, window, hasWindow)
		results = append(results, row)

		if warning := sampleWarning(row); warning != "" {
			warnings = append(warnings, warning)
		}
	}

	return results, warnings, nil
}

// computeRebookingRow сворачивает времена начала сессий группы в строку результата.
// Пользователь считается повторно бронирующим, если его вторая сессия началась
// не позже первой плюс окно (граница окна включительно). Без окна достаточно
// любой второй сессии.
func computeRebookingRow(label string, starts map[int64][]time.Time, window time.Duration, hasWindow bool) models.RebookingRow {
	totalUsers := 0
	usersRebooked := 0

	for _, sessionStarts := range starts {
		if len(sessionStarts) == 0 {
			continue
		}
		totalUsers++

		if len(sessionStarts) < 2 {
			continue
		}

		sort.Slice(sessionStarts, func(i, j int) bool {
			return sessionStarts[i].Before(sessionStarts[j])
		})

		if !hasWindow {
			usersRebooked++
			continue
		}

		deadline := sessionStarts[0].Add(window)
		if !sessionStarts[1].After(deadline) {
			usersRebooked++
		}
	}

	row := models.RebookingRow{
		MentorTier:    label,
		TotalUsers:    totalUsers,
		UsersRebooked: usersRebooked,
	}

	if totalUsers > 0 {
		row.RebookingRatePct = RoundToTenth(float64(usersRebooked) / float64(totalUsers) * 100)
	}
	row.CILowerPct, row.CIUpperPct = WilsonInterval(usersRebooked, totalUsers)

	return row
}

// sampleWarning формирует предупреждение о качестве выборки для строки результата.
// Малая выборка важнее подозрительной доли: на 3 пользователях доля 0% или 100%
// ожидаема и отдельного предупреждения не заслуживает.
func sampleWarning(row models.RebookingRow) string {
	if row.TotalUsers == 0 {
		return fmt.Sprintf("[Анализ] группа %s: нет пользователей с сессиями — результат пуст", row.MentorTier)
	}
	if row.TotalUsers < minSampleSize {
		return fmt.Sprintf("[Анализ] группа %s: выборка %d < %d пользователей — результат ориентировочный",
			row.MentorTier, row.TotalUsers, minSampleSize)
	}
	if row.RebookingRatePct == 0 || row.RebookingRatePct == 100 {
		return fmt.Sprintf("[Анализ] группа %s: доля повторных бронирований ровно %.0f%% на %d пользователях — проверьте исходные данные",
			row.MentorTier, row.RebookingRatePct, row.TotalUsers)
	}
	return ""
}
