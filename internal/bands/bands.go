package bands

import (
	"sort"
	"time"
)

// Bar входная свеча. Нулевой Volume означает отсутствие объема.
type Bar struct {
	Time   time.Time
	High   float64
	Low    float64
	Volume float64
}

// Point точка полосы
type Point struct {
	Time  time.Time
	Value float64
}

// Set результат расчета: две верхние (T1, T2) и две нижние (B1, B2) полосы
type Set struct {
	T1 []Point
	T2 []Point
	B1 []Point
	B2 []Point
}

// Len возвращает количество точек в каждой полосе
func (s Set) Len() int {
	return len(s.T1)
}

// From возвращает точки со временем не раньше t. Точки должны идти по возрастанию времени.
func (s Set) From(t time.Time) Set {
	i := sort.Search(s.Len(), func(i int) bool { return !s.T1[i].Time.Before(t) })
	return Set{
		T1: s.T1[i:],
		T2: s.T2[i:],
		B1: s.B1[i:],
		B2: s.B2[i:],
	}
}

// Levels значения всех полос в одной точке времени
type Levels struct {
	Time time.Time
	T1   float64
	T2   float64
	B1   float64
	B2   float64
}

// Last возвращает последние значения полос
func (s Set) Last() (Levels, bool) {
	n := s.Len()
	if n == 0 {
		return Levels{}, false
	}
	return Levels{
		Time: s.T1[n-1].Time,
		T1:   s.T1[n-1].Value,
		T2:   s.T2[n-1].Value,
		B1:   s.B1[n-1].Value,
		B2:   s.B2[n-1].Value,
	}, true
}

// Breakdown все промежуточные ряды расчета, выровненные по индексу свечей
type Breakdown struct {
	Times  []time.Time
	High   []float64
	Low    []float64
	Volume []float64

	PVHigh    []float64
	PVLow     []float64
	VolumeEMA []float64
	PVHighEMA []float64
	PVLowEMA  []float64

	// Средние, взвешенные по объему
	MA1 []float64
	MA2 []float64

	// Процентные отклонения цены от MA1/MA2 и их стандартные отклонения
	P1  []float64
	P2  []float64
	SD1 []float64
	SD2 []float64

	UpperFactor1 []float64
	UpperFactor2 []float64
	LowerFactor1 []float64
	LowerFactor2 []float64
}

// Set собирает полосы из промежуточных рядов
func (b *Breakdown) Set() Set {
	n := len(b.Times)
	set := Set{
		T1: make([]Point, n),
		T2: make([]Point, n),
		B1: make([]Point, n),
		B2: make([]Point, n),
	}
	for i, t := range b.Times {
		set.T1[i] = Point{Time: t, Value: b.MA1[i] * b.UpperFactor1[i]}
		set.T2[i] = Point{Time: t, Value: b.MA1[i] * b.UpperFactor2[i]}
		set.B1[i] = Point{Time: t, Value: b.MA2[i] * b.LowerFactor1[i]}
		set.B2[i] = Point{Time: t, Value: b.MA2[i] * b.LowerFactor2[i]}
	}
	return set
}

// Calculator рассчитывает полосы с заданными параметрами.
// Не хранит состояния между вызовами и безопасен для параллельного использования.
type Calculator struct {
	params Params
}

// NewCalculator создает калькулятор полос
func NewCalculator(params Params) Calculator {
	return Calculator{params: params}
}

// Params возвращает параметры калькулятора
func (c Calculator) Params() Params {
	return c.params
}

// EMA см. пакетную функцию EMA
func (c Calculator) EMA(series []float64, period int) []float64 {
	return EMA(series, period)
}

// Stdev рассчитывает стандартное отклонение выбранным в параметрах способом
func (c Calculator) Stdev(series []float64, period int) []float64 {
	if c.params.StdevMode == StdevRolling {
		return RollingStdev(series, period)
	}
	return Stdev(series, period)
}

// Calculate рассчитывает полосы для последовательности свечей
func (c Calculator) Calculate(bars []Bar) Set {
	return c.Breakdown(bars).Set()
}

// Breakdown рассчитывает полосы и возвращает все промежуточные ряды.
// Деление на ноль не перехватывается: NaN и Inf переходят в результат.
func (c Calculator) Breakdown(bars []Bar) *Breakdown {
	n := len(bars)
	b := &Breakdown{
		Times:  make([]time.Time, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Volume: make([]float64, n),
		PVHigh: make([]float64, n),
		PVLow:  make([]float64, n),
	}

	for i, bar := range bars {
		b.Times[i] = bar.Time
		b.High[i] = bar.High
		b.Low[i] = bar.Low
		b.Volume[i] = bar.Volume
		b.PVHigh[i] = bar.High * bar.Volume
		b.PVLow[i] = bar.Low * bar.Volume
	}

	b.VolumeEMA = c.EMA(b.Volume, c.params.VolumePeriod)
	b.PVHighEMA = c.EMA(b.PVHigh, c.params.VolumePeriod)
	b.PVLowEMA = c.EMA(b.PVLow, c.params.VolumePeriod)

	b.MA1 = make([]float64, n)
	b.MA2 = make([]float64, n)
	b.P1 = make([]float64, n)
	b.P2 = make([]float64, n)
	for i := 0; i < n; i++ {
		// Без объема берем сырую цену
		if b.VolumeEMA[i] != 0 {
			b.MA1[i] = b.PVHighEMA[i] / b.VolumeEMA[i]
			b.MA2[i] = b.PVLowEMA[i] / b.VolumeEMA[i]
		} else {
			b.MA1[i] = b.High[i]
			b.MA2[i] = b.Low[i]
		}

		b.P1[i] = (b.High[i] - b.MA1[i]) / b.MA1[i]
		b.P2[i] = (b.Low[i] - b.MA2[i]) / b.MA2[i]
	}

	b.SD1 = c.Stdev(b.P1, c.params.DeviationPeriod)
	b.SD2 = c.Stdev(b.P2, c.params.DeviationPeriod)

	b.UpperFactor1 = make([]float64, n)
	b.UpperFactor2 = make([]float64, n)
	b.LowerFactor1 = make([]float64, n)
	b.LowerFactor2 = make([]float64, n)
	for i := 0; i < n; i++ {
		b.UpperFactor1[i] = 1 + b.SD1[i]*c.params.UpperMultiplier1
		b.UpperFactor2[i] = 1 + b.SD1[i]*c.params.UpperMultiplier2
		b.LowerFactor1[i] = 1 - b.SD2[i]*c.params.LowerMultiplier1
		b.LowerFactor2[i] = 1 - b.SD2[i]*c.params.LowerFactor2Multiplier
	}

	return b
}

// CalculateBands рассчитывает полосы с параметрами по умолчанию
func CalculateBands(bars []Bar) Set {
	return NewCalculator(DefaultParams()).Calculate(bars)
}
