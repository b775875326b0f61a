package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWilsonIntervalZeroTrials(t *testing.T) {
	lower, upper := WilsonInterval(0, 0)
	assert.Equal(t, 0.0, lower)
	assert.Equal(t, 0.0, upper)
}

func TestWilsonIntervalKnownValue(t *testing.T) {
	// 2 успеха из 4: интервал Уилсона при z=1.96 дает (15.0%, 85.0%)
	lower, upper := WilsonInterval(2, 4)
	assert.Equal(t, 15.0, lower)
	assert.Equal(t, 85.0, upper)
}

func TestWilsonIntervalBounds(t *testing.T) {
	cases := []struct {
		successes int
		trials    int
	}{
		{0, 1}, {1, 1}, {0, 10}, {10, 10}, {5, 10}, {1, 100}, {99, 100}, {250, 1000},
	}

	for _, tc := range cases {
		lower, upper := WilsonInterval(tc.successes, tc.trials)
		pointEstimate := float64(tc.successes) / float64(tc.trials) * 100

		assert.GreaterOrEqual(t, lower, 0.0, "нижняя граница для %d/%d", tc.successes, tc.trials)
		assert.LessOrEqual(t, upper, 100.0, "верхняя граница для %d/%d", tc.successes, tc.trials)
		assert.LessOrEqual(t, lower, upper, "порядок границ для %d/%d", tc.successes, tc.trials)

		// Точечная оценка лежит внутри интервала (с запасом на округление)
		assert.LessOrEqual(t, lower, pointEstimate+0.05)
		assert.GreaterOrEqual(t, upper, pointEstimate-0.05)
	}
}

func TestWilsonIntervalNarrowsWithSampleSize(t *testing.T) {
	smallLower, smallUpper := WilsonInterval(5, 10)
	largeLower, largeUpper := WilsonInterval(500, 1000)

	assert.Greater(t, smallUpper-smallLower, largeUpper-largeLower)
}

func TestRoundToTenth(t *testing.T) {
	assert.Equal(t, 15.0, RoundToTenth(15.003))
	assert.Equal(t, 15.1, RoundToTenth(15.05))
	assert.Equal(t, 0.0, RoundToTenth(0.04))
	assert.Equal(t, 100.0, RoundToTenth(99.96))
}
