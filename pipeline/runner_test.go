package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packlabs/mentor_analytics/pipeline/guard"
	"github.com/packlabs/mentor_analytics/pipeline/ingest"
	"github.com/packlabs/mentor_analytics/pipeline/models"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// fakeRunLog фиксирует аргументы обновления журнала вместо записи в MySQL
type fakeRunLog struct {
	successDQ  *bool
	failStatus string
}

func (f *fakeRunLog) CreateRunLogTable() error { return nil }

func (f *fakeRunLog) CreateLogEntry(startTime time.Time, configSnapshot []byte) (int, string, error) {
	return 1, "run-token", nil
}

func (f *fakeRunLog) UpdateLogEntrySuccess(runID int, endTime time.Time, newUsers, newEvents int, dqPassed bool, warnings []string) error {
	f.successDQ = &dqPassed
	return nil
}

func (f *fakeRunLog) UpdateLogEntryFailure(runID int, endTime time.Time, status string, errorMessage string, warnings []string) error {
	f.failStatus = status
	return nil
}

func (f *fakeRunLog) GetRecentRuns(limit int) ([]models.PipelineRunLog, error) {
	return nil, nil
}

func newTestRunner(runLog models.RunLogRepository) *Runner {
	return &Runner{
		logger: utils.NewPipelineLogger(false),
		runLog: runLog,
	}
}

func TestFinishRunIngestOnlyKeepsDQFlagFalse(t *testing.T) {
	// Запуск без фазы Validate не имеет права числиться прошедшим проверки
	runLog := &fakeRunLog{}
	r := newTestRunner(runLog)

	result := &RunResult{RunID: 1, Ingest: &ingest.Result{NewUsers: 12, NewEvents: 340}}
	r.finishRun(result, time.Now(), nil)

	require.NotNil(t, runLog.successDQ)
	assert.False(t, *runLog.successDQ)
	assert.Equal(t, models.RunStatusSuccess, result.Status)
}

func TestFinishRunRecordsDQFlagWhenValidateRan(t *testing.T) {
	runLog := &fakeRunLog{}
	r := newTestRunner(runLog)

	result := &RunResult{RunID: 2, DQChecksPassed: true}
	r.finishRun(result, time.Now(), nil)

	require.NotNil(t, runLog.successDQ)
	assert.True(t, *runLog.successDQ)
}

func TestFinishRunTimeoutStatus(t *testing.T) {
	runLog := &fakeRunLog{}
	r := newTestRunner(runLog)

	result := &RunResult{RunID: 3}
	runErr := fmt.Errorf("фаза не уложилась: %w", &guard.TimeoutError{Step: "Transform", Timeout: 300 * time.Second})
	r.finishRun(result, time.Now(), runErr)

	assert.Equal(t, models.RunStatusTimeout, runLog.failStatus)
	assert.Equal(t, models.RunStatusTimeout, result.Status)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("transform")
	require.NoError(t, err)
	assert.Equal(t, ModeTransform, mode)

	_, err = ParseMode("dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "неизвестный режим")
}
