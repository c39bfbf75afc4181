package vwbands

import (
	"context"
	"fmt"
	"math"

	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/internal/storage"
	"github.com/skalibog/vwbands/pkg/models"
)

// minCandles минимум свечей для расчета
const minCandles = 2

// Сигналы по зонам в диапазоне -100..100
const (
	signalAboveT2 = -100.0
	signalAboveT1 = -60.0
	signalInside  = 40.0
	signalBelowB1 = 60.0
	signalBelowB2 = 100.0
)

// Result результат анализа полос по символу
type Result struct {
	Set      bands.Set
	Snapshot *models.BandSnapshot
	Signal   float64
}

// Analyzer анализирует положение цены относительно полос
type Analyzer struct {
	calc bands.Calculator
}

// NewAnalyzer создает анализатор полос
func NewAnalyzer(params bands.Params) *Analyzer {
	return &Analyzer{
		calc: bands.NewCalculator(params),
	}
}

// Analyze рассчитывает полосы по последним lookback свечам и оценивает последнюю цену закрытия
func (a *Analyzer) Analyze(ctx context.Context, storage storage.Storage, symbol, interval string, lookback int) (*Result, error) {
	// Получаем исторические свечи
	candles, err := storage.GetCandles(ctx, symbol, interval, lookback)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	if len(candles) < minCandles {
		return nil, fmt.Errorf("недостаточно данных для анализа: %d свечей", len(candles))
	}

	set := a.calc.Calculate(CandlesToBars(candles))
	levels, _ := set.Last()
	last := candles[len(candles)-1]

	zone := Classify(last.Close, levels)
	snapshot := &models.BandSnapshot{
		Symbol:   symbol,
		Interval: interval,
		Time:     levels.Time,
		Close:    last.Close,
		T1:       levels.T1,
		T2:       levels.T2,
		B1:       levels.B1,
		B2:       levels.B2,
		Zone:     zone,
	}

	return &Result{
		Set:      set,
		Snapshot: snapshot,
		Signal:   Signal(last.Close, levels, zone),
	}, nil
}

// CandlesToBars преобразует свечи во входные бары калькулятора
func CandlesToBars(candles []*models.Candle) []bands.Bar {
	bars := make([]bands.Bar, len(candles))
	for i, c := range candles {
		bars[i] = bands.Bar{
			Time:   c.OpenTime,
			High:   c.High,
			Low:    c.Low,
			Volume: c.Volume,
		}
	}
	return bars
}

// Classify определяет зону цены. Нижняя вторая полоса проверяется раньше первой
// и учитывается только если лежит ниже нее.
func Classify(price float64, l bands.Levels) models.Zone {
	for _, v := range []float64{price, l.T1, l.T2, l.B1, l.B2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.ZoneUnknown
		}
	}

	switch {
	case price > l.T2 && l.T2 >= l.T1:
		return models.ZoneAboveT2
	case price > l.T1:
		return models.ZoneAboveT1
	case price < l.B2 && l.B2 < l.B1:
		return models.ZoneBelowB2
	case price < l.B1:
		return models.ZoneBelowB1
	default:
		return models.ZoneInside
	}
}

// Signal переводит зону в сигнал: выше полос продажа, ниже покупка
func Signal(price float64, l bands.Levels, zone models.Zone) float64 {
	switch zone {
	case models.ZoneAboveT2:
		return signalAboveT2
	case models.ZoneAboveT1:
		return signalAboveT1
	case models.ZoneBelowB1:
		return signalBelowB1
	case models.ZoneBelowB2:
		return signalBelowB2
	case models.ZoneInside:
		mid := (l.T1 + l.B1) / 2
		halfWidth := (l.T1 - l.B1) / 2
		if halfWidth <= 0 {
			return 0
		}
		signal := (mid - price) / halfWidth * signalInside
		return math.Max(-signalInside, math.Min(signalInside, signal))
	default:
		return 0
	}
}
