// Package guard ограничивает длительность одной фазы конвейера по настенным часам.
//
// Двухступенчатая эскалация отмены:
//  1. Мягкая остановка (soft kill): по истечении таймаута фоновый наблюдатель
//     отменяет контекст фазы — кооперативный код замечает отмену в безопасных точках.
//  2. Жесткая остановка (hard kill): если фаза не отчиталась о завершении в течение
//     льготного периода, процесс завершается безусловно. Это страховка на случай,
//     когда фаза заблокирована внутри вызова, который не наблюдает контекст
//     (например, долгий запрос в драйвере без поддержки отмены).
package guard

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/utils"
	"go.uber.org/atomic"
)

// GraceSeconds — льготный период между мягкой и жесткой остановкой
const GraceSeconds = 10

// TimeoutError возвращается, когда фаза превысила таймаут, но мягкая остановка сработала
type TimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("фаза '%s' превысила таймаут %v; при необходимости увеличьте step_timeout_seconds в конфигурации", e.Step, e.Timeout)
}

// StepGuard ограничивает длительность одной фазы конвейера
type StepGuard struct {
	name    string
	timeout time.Duration
	grace   time.Duration
	logger  *utils.PipelineLogger

	// timedOut выставляется наблюдателем и читается вызывающей горутиной —
	// единственное разделяемое состояние помимо канала done
	timedOut *atomic.Bool

	// exitFunc подменяется в тестах; в продакшене — os.Exit
	exitFunc func(code int)
}

// NewStepGuard создает нового стража фазы. Таймаут 0 отключает стража полностью.
func NewStepGuard(name string, timeout time.Duration, logger *utils.PipelineLogger) *StepGuard {
	return &StepGuard{
		name:     name,
		timeout:  timeout,
		grace:    GraceSeconds * time.Second,
		logger:   logger,
		timedOut: atomic.NewBool(false),
		exitFunc: os.Exit,
	}
}

// Run выполняет fn под присмотром наблюдателя.
//
// Если fn завершается до истечения таймаута, наблюдатель снимается и отмены
// не происходит. Если таймаут истек, контекст fn отменяется (мягкая остановка),
// а по истечении льготного периода без завершения процесс убивается (жесткая).
// Когда мягкая остановка сработала, Run возвращает *TimeoutError.
func (g *StepGuard) Run(parent context.Context, fn func(ctx context.Context) error) error {
	// Отключенный страж — никакого наблюдателя не запускаем
	if g.timeout <= 0 {
		return fn(parent)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	go g.watchdog(done, cancel)

	err := fn(ctx)

	// Сигнализируем наблюдателю, что фаза отчиталась о завершении
	close(done)

	if g.timedOut.Load() {
		return &TimeoutError{Step: g.name, Timeout: g.timeout}
	}

	return err
}

// watchdog — фоновый наблюдатель фазы.
// Он только наблюдает и сигнализирует: не трогает никакие данные фазы,
// кроме флага timedOut и функции отмены контекста.
func (g *StepGuard) watchdog(done <-chan struct{}, cancel context.CancelFunc) {
	select {
	case <-done:
		// Фаза уложилась в таймаут
		return
	case <-time.After(g.timeout):
	}

	// Мягкая остановка: отменяем контекст фазы
	g.timedOut.Store(true)
	g.logger.Error("[Timeout] фаза '%s' превысила %v — отправлен сигнал мягкой остановки (soft kill)", g.name, g.timeout)
	cancel()

	select {
	case <-done:
		// Мягкая остановка сработала
		return
	case <-time.After(g.grace):
	}

	// Жесткая остановка: фаза не наблюдает отмену контекста
	g.logger.Error("[Timeout] фаза '%s' не ответила на мягкую остановку за %v — безусловное завершение процесса", g.name, g.grace)
	g.exitFunc(1)
}
