package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// exitFunc вызывается из горутины наблюдателя, поэтому код выхода атомарный
func testGuard(timeout, grace time.Duration) (*StepGuard, *atomic.Int32) {
	g := NewStepGuard("TestPhase", timeout, utils.NewPipelineLogger(false))
	g.grace = grace

	exitCode := atomic.NewInt32(-1)
	g.exitFunc = func(code int) {
		exitCode.Store(int32(code))
	}
	return g, exitCode
}

func TestStepGuardDisabled(t *testing.T) {
	g, exitCode := testGuard(0, time.Second)

	called := false
	err := g.Run(context.Background(), func(ctx context.Context) error {
		called = true
		// Контекст фазы — родительский, без наблюдателя
		assert.NoError(t, ctx.Err())
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, int32(-1), exitCode.Load())
}

func TestStepGuardCompletesInTime(t *testing.T) {
	g, exitCode := testGuard(time.Second, time.Second)

	err := g.Run(context.Background(), func(ctx context.Context) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(-1), exitCode.Load())
}

func TestStepGuardPropagatesPhaseError(t *testing.T) {
	g, _ := testGuard(time.Second, time.Second)

	phaseErr := errors.New("ошибка фазы")
	err := g.Run(context.Background(), func(ctx context.Context) error {
		return phaseErr
	})

	assert.ErrorIs(t, err, phaseErr)
}

func TestStepGuardSoftKill(t *testing.T) {
	g, exitCode := testGuard(30*time.Millisecond, time.Second)

	err := g.Run(context.Background(), func(ctx context.Context) error {
		// Кооперативная фаза: замечает отмену контекста
		<-ctx.Done()
		return ctx.Err()
	})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "TestPhase", timeoutErr.Step)
	assert.Contains(t, timeoutErr.Error(), "step_timeout_seconds")

	// Мягкая остановка сработала — жесткая не понадобилась
	assert.Equal(t, int32(-1), exitCode.Load())
}

func TestStepGuardHardKill(t *testing.T) {
	g, exitCode := testGuard(20*time.Millisecond, 20*time.Millisecond)

	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		g.Run(context.Background(), func(ctx context.Context) error {
			// Фаза игнорирует отмену контекста
			<-release
			return nil
		})
	}()

	// Ждем срабатывания жесткой остановки
	assert.Eventually(t, func() bool {
		return exitCode.Load() == 1
	}, time.Second, 5*time.Millisecond)

	close(release)
	<-done
}
