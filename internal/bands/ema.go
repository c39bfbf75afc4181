package bands

// EMA рассчитывает экспоненциальную скользящую среднюю.
// Первое значение берется без сглаживания, поэтому начало ряда смещено
// к первым данным, пока EMA не накопит достаточно истории.
func EMA(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}

	k := 2 / (float64(period) + 1)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = series[i]*k + out[i-1]*(1-k)
	}
	return out
}
