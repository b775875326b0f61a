// Package pipeline связывает фазы конвейера в один наблюдаемый запуск:
// Ingest → Extract/Transform/Load → Validate → Analyze.
//
// Каждая фаза выполняется под присмотром стража таймаута (guard.StepGuard),
// каждый запуск фиксируется в журнале pipeline_run_log, а смены статусов
// публикуются подписчикам через StatusNotifier.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/analysis"
	"github.com/packlabs/mentor_analytics/pipeline/config"
	"github.com/packlabs/mentor_analytics/pipeline/extractors"
	"github.com/packlabs/mentor_analytics/pipeline/guard"
	"github.com/packlabs/mentor_analytics/pipeline/ingest"
	"github.com/packlabs/mentor_analytics/pipeline/load"
	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/transform"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
	"github.com/packlabs/mentor_analytics/pipeline/validate"
)

// Mode определяет состав фаз одного запуска конвейера
type Mode string

const (
	ModeFull      Mode = "full"
	ModeIngest    Mode = "ingest"
	ModeTransform Mode = "transform"
	ModeAnalyze   Mode = "analyze"
)

// ParseMode преобразует строку аргумента командной строки в Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeIngest, ModeTransform, ModeAnalyze:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("неизвестный режим запуска %q (ожидается full, ingest, transform или analyze)", s)
	}
}

// StatusNotifier получает события смены статуса конвейера.
// Реализация не должна блокировать вызывающую горутину.
type StatusNotifier interface {
	Notify(update models.StatusUpdate)
}

// RunResult — итог одного запуска конвейера
type RunResult struct {
	RunID          int               `json:"run_id"`
	RunToken       string            `json:"run_token"`
	Status         string            `json:"status"`
	DQChecksPassed bool              `json:"dq_checks_passed"`
	Ingest         *ingest.Result    `json:"ingest,omitempty"`
	Analysis       *analysis.Results `json:"analysis,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// Runner выполняет запуски конвейера
type Runner struct {
	db       *sql.DB
	cfg      *config.PipelineConfig
	logger   *utils.PipelineLogger
	runLog   models.RunLogRepository
	notifier StatusNotifier

	ingestor    *ingest.Ingestor
	extractor   *extractors.Extractor
	transformer *transform.Transformer
	loader      *load.LoadManager
	checker     *validate.Checker
	analysis    *analysis.AnalysisManager
}

// NewRunner создает новый экземпляр Runner
func NewRunner(db *sql.DB, cfg *config.PipelineConfig, logger *utils.PipelineLogger) *Runner {
	return &Runner{
		db:          db,
		cfg:         cfg,
		logger:      logger,
		runLog:      models.NewMySQLRunLogRepository(db),
		ingestor:    ingest.NewIngestor(db, logger, cfg.DataDir),
		extractor:   extractors.NewExtractor(db, logger),
		transformer: transform.NewTransformer(logger, cfg.DefaultSessionDurationMinutes),
		loader:      load.NewLoadManager(db, logger),
		checker:     validate.NewChecker(db, logger),
		analysis:    analysis.NewAnalysisManager(db, cfg, logger),
	}
}

// SetNotifier подключает подписчика статусных событий (например, WebSocket-хаб)
func (r *Runner) SetNotifier(notifier StatusNotifier) {
	r.notifier = notifier
}

// Run выполняет один запуск конвейера в заданном режиме.
// Возвращаемый RunResult заполнен даже при ошибке — в нем идентификаторы
// запуска и накопленные предупреждения.
func (r *Runner) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	if err := r.runLog.CreateRunLogTable(); err != nil {
		return nil, err
	}

	snapshot, err := r.cfg.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("ошибка при снятии снимка конфигурации: %w", err)
	}

	startTime := time.Now()
	runID, runToken, err := r.runLog.CreateLogEntry(startTime, snapshot)
	if err != nil {
		return nil, err
	}

	result := &RunResult{RunID: runID, RunToken: runToken, Status: models.RunStatusInProgress}
	r.logger.Info("=== Запуск конвейера #%d (режим %s, токен %s) ===", runID, mode, runToken)

	runErr := r.runPhases(ctx, mode, result)
	r.finishRun(result, startTime, runErr)

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// runPhases выполняет фазы, входящие в режим запуска
func (r *Runner) runPhases(ctx context.Context, mode Mode, result *RunResult) error {
	if mode == ModeFull || mode == ModeIngest {
		err := r.runPhase(ctx, result, "Ingest", func(ctx context.Context) error {
			ingestResult, err := r.ingestor.Run(ctx)
			if err != nil {
				return err
			}
			result.Ingest = ingestResult
			return nil
		})
		if err != nil {
			return err
		}
	}

	if mode == ModeFull || mode == ModeTransform {
		err := r.runPhase(ctx, result, "Transform", func(ctx context.Context) error {
			extracted, err := r.extractor.Extract(ctx)
			if err != nil {
				return err
			}
			transformed, err := r.transformer.Transform(extracted)
			if err != nil {
				return err
			}
			return r.loader.Load(ctx, extracted, transformed)
		})
		if err != nil {
			return err
		}

		err = r.runPhase(ctx, result, "Validate", func(ctx context.Context) error {
			failures, warnings, err := r.checker.RunChecks(ctx, r.cfg)
			if err != nil {
				return err
			}
			result.Warnings = append(result.Warnings, warnings...)
			if len(failures) > 0 {
				return fmt.Errorf("проверки качества данных провалены: %s", strings.Join(failures, "; "))
			}
			// Флаг журнала ставится только здесь: запуск без фазы Validate
			// (режим ingest или analyze) фиксируется с dq_checks_passed = false
			result.DQChecksPassed = true
			return nil
		})
		if err != nil {
			return err
		}
	}

	if mode == ModeFull || mode == ModeAnalyze {
		err := r.runPhase(ctx, result, "Analyze", func(ctx context.Context) error {
			analysisResults, err := r.analysis.Run(ctx)
			if err != nil {
				return err
			}
			result.Analysis = analysisResults
			result.Warnings = append(result.Warnings, analysisResults.Warnings...)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// runPhase выполняет одну фазу под стражем таймаута и публикует статусные события
func (r *Runner) runPhase(ctx context.Context, result *RunResult, phase string, fn func(ctx context.Context) error) error {
	startTime := time.Now()
	r.logger.LogPhaseStart(phase)
	r.notify(result, phase, "started", "")

	stepGuard := guard.NewStepGuard(phase, r.cfg.StepTimeout(), r.logger)
	if err := stepGuard.Run(ctx, fn); err != nil {
		r.notify(result, phase, "failed", err.Error())
		return err
	}

	r.logger.LogPhaseComplete(phase, startTime)
	r.notify(result, phase, "completed", "")
	return nil
}

// finishRun записывает итог запуска в журнал и лог
func (r *Runner) finishRun(result *RunResult, startTime time.Time, runErr error) {
	endTime := time.Now()

	if runErr == nil {
		result.Status = models.RunStatusSuccess
		newUsers, newEvents := 0, 0
		if result.Ingest != nil {
			newUsers = result.Ingest.NewUsers
			newEvents = result.Ingest.NewEvents
		}
		if err := r.runLog.UpdateLogEntrySuccess(result.RunID, endTime, newUsers, newEvents, result.DQChecksPassed, result.Warnings); err != nil {
			r.logger.Error("Не удалось обновить журнал запуска #%d: %v", result.RunID, err)
		}
		r.notify(result, "Pipeline", models.RunStatusSuccess, "")
		r.logger.Info("=== Запуск #%d завершен успешно. Длительность: %v, предупреждений: %d ===",
			result.RunID, endTime.Sub(startTime), len(result.Warnings))
		return
	}

	status := models.RunStatusFailed
	var timeoutErr *guard.TimeoutError
	if errors.As(runErr, &timeoutErr) {
		status = models.RunStatusTimeout
	}
	result.Status = status

	if err := r.runLog.UpdateLogEntryFailure(result.RunID, endTime, status, runErr.Error(), result.Warnings); err != nil {
		r.logger.Error("Не удалось обновить журнал запуска #%d: %v", result.RunID, err)
	}
	r.notify(result, "Pipeline", status, runErr.Error())
	r.logger.Error("=== Запуск #%d завершен со статусом %s: %v ===", result.RunID, status, runErr)
}

// notify публикует статусное событие, если подписчик подключен
func (r *Runner) notify(result *RunResult, phase, status, message string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(models.StatusUpdate{
		RunID:     result.RunID,
		RunToken:  result.RunToken,
		Phase:     phase,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	})
}
