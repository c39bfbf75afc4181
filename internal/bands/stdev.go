package bands

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Stdev рассчитывает стандартное отклонение генеральной совокупности
// (делитель = period) по окну из period последних значений.
// Для первых period-1 индексов истории недостаточно, там 0.
func Stdev(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if period < 1 {
		return out
	}

	for i := period - 1; i < len(series); i++ {
		_, variance := stat.PopMeanVariance(series[i-period+1:i+1], nil)
		out[i] = math.Sqrt(variance)
	}
	return out
}

// RollingStdev то же, что Stdev, но через накопленные суммы talib за O(n).
// Отличия от Stdev: дисперсия меньше 1e-14 обнуляется, а NaN портит
// все последующие окна, а не только содержащие его.
func RollingStdev(series []float64, period int) []float64 {
	if period < 1 || period > len(series) {
		return make([]float64, len(series))
	}
	return talib.StdDev(series, period, 1)
}
