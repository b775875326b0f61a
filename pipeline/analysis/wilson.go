package analysis

import "math"

// zScore95 — квантиль нормального распределения для 95% доверительного уровня
const zScore95 = 1.96

// WilsonInterval вычисляет 95% доверительный интервал Уилсона для доли
// successes/trials. Возвращает границы в процентах, ограниченные [0, 100]
// и округленные до десятых. При trials == 0 интервал вырожден: (0, 0).
//
// Интервал Уилсона выбран вместо нормального приближения, потому что он
// корректно ведет себя на малых выборках и на долях, близких к 0 и 1.
func WilsonInterval(successes, trials int) (lower, upper float64) {
	if trials <= 0 {
		return 0, 0
	}

	n := float64(trials)
	p := float64(successes) / n
	z2 := zScore95 * zScore95

	denominator := 1 + z2/n
	centre := p + z2/(2*n)
	margin := zScore95 * math.Sqrt(p*(1-p)/n+z2/(4*n*n))

	lower = (centre - margin) / denominator * 100
	upper = (centre + margin) / denominator * 100

	if lower < 0 {
		lower = 0
	}
	if upper > 100 {
		upper = 100
	}

	return RoundToTenth(lower), RoundToTenth(upper)
}

// RoundToTenth округляет значение до одного знака после запятой
func RoundToTenth(value float64) float64 {
	return math.Round(value*10) / 10
}
