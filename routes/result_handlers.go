package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/atomic"

	"github.com/packlabs/mentor_analytics/pipeline"
	"github.com/packlabs/mentor_analytics/pipeline/analysis"
	"github.com/packlabs/mentor_analytics/pipeline/config"
	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// writeJSON сериализует ответ API
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError отдает ошибку API в едином формате
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// GetRunsHandler возвращает последние записи журнала запусков
func GetRunsHandler(db *sql.DB) http.HandlerFunc {
	repo := models.NewMySQLRunLogRepository(db)

	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "параметр limit должен быть положительным числом")
				return
			}
			limit = parsed
		}
		if limit > maxRunsLimit {
			limit = maxRunsLimit
		}

		runs, err := repo.GetRecentRuns(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
	}
}

// GetRebookingHandler вычисляет метрику повторных бронирований по текущим витринам
func GetRebookingHandler(db *sql.DB, cfg *config.PipelineConfig, logger *utils.PipelineLogger) http.HandlerFunc {
	analyzer := analysis.NewRebookingAnalyzer(analysis.NewRepository(db, logger), cfg, logger)

	return func(w http.ResponseWriter, r *http.Request) {
		rows, warnings, err := analyzer.Analyze(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"rebooking": rows,
			"warnings":  warnings,
		})
	}
}

// GetReliabilityHandler вычисляет метрики надежности по тарифам по текущим витринам
func GetReliabilityHandler(db *sql.DB, logger *utils.PipelineLogger) http.HandlerFunc {
	analyzer := analysis.NewReliabilityAnalyzer(analysis.NewRepository(db, logger), logger)

	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := analyzer.Analyze(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"reliability": rows})
	}
}

// TriggerRunHandler запускает конвейер по HTTP-запросу.
// Запуск асинхронный: ответ приходит сразу, прогресс виден по /ws/status
// и в журнале /api/runs. Одновременно допускается только один запуск.
func TriggerRunHandler(runner *pipeline.Runner, logger *utils.PipelineLogger) http.HandlerFunc {
	running := atomic.NewBool(false)

	return func(w http.ResponseWriter, r *http.Request) {
		modeParam := r.URL.Query().Get("mode")
		if modeParam == "" {
			modeParam = string(pipeline.ModeFull)
		}

		mode, err := pipeline.ParseMode(modeParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if !running.CompareAndSwap(false, true) {
			writeError(w, http.StatusConflict, "конвейер уже выполняется")
			return
		}

		// Контекст запроса умирает вместе с ответом — фоновому запуску
		// нужен собственный
		go func() {
			defer running.Store(false)
			if _, err := runner.Run(context.Background(), mode); err != nil {
				logger.Error("Запуск конвейера по API завершился с ошибкой: %v", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "started",
			"mode":   string(mode),
		})
	}
}
