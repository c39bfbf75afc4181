package vwbands

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/internal/storage"
	"github.com/skalibog/vwbands/pkg/models"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// flatCandles дает полосы t1 = t2 = 110 и b1 = b2 = 90
func flatCandles(n int, lastClose float64) []*models.Candle {
	candles := make([]*models.Candle, n)
	for i := range candles {
		open := t0.Add(time.Duration(i) * time.Minute)
		candles[i] = &models.Candle{
			Symbol:    "BTCUSDT",
			Interval:  "1m",
			OpenTime:  open,
			High:      110,
			Low:       90,
			Close:     100,
			Volume:    3,
			CloseTime: open.Add(time.Minute),
		}
	}
	candles[n-1].Close = lastClose
	return candles
}

func seeded(t *testing.T, candles []*models.Candle) *storage.MemoryStorage {
	t.Helper()
	s := storage.NewMemoryStorage()
	require.NoError(t, s.SaveCandles(context.Background(), candles))
	return s
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name   string
		close  float64
		zone   models.Zone
		signal float64
	}{
		{"middle", 100, models.ZoneInside, 0},
		{"lower half", 95, models.ZoneInside, 20},
		{"upper half", 105, models.ZoneInside, -20},
		{"on upper band", 110, models.ZoneInside, -40},
		{"above upper", 120, models.ZoneAboveT2, -100},
		{"below lower", 80, models.ZoneBelowB1, 60},
	}

	a := NewAnalyzer(bands.DefaultParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seeded(t, flatCandles(20, tt.close))

			result, err := a.Analyze(context.Background(), s, "BTCUSDT", "1m", 10)
			require.NoError(t, err)

			assert.Equal(t, 10, result.Set.Len())
			assert.Equal(t, tt.zone, result.Snapshot.Zone)
			assert.InDelta(t, tt.signal, result.Signal, 1e-9)
			assert.Equal(t, tt.close, result.Snapshot.Close)
			assert.InDelta(t, 110, result.Snapshot.T1, 1e-9)
			assert.InDelta(t, 90, result.Snapshot.B1, 1e-9)
			assert.True(t, result.Snapshot.Time.Equal(t0.Add(19*time.Minute)))
		})
	}
}

func TestAnalyze_NotEnoughCandles(t *testing.T) {
	a := NewAnalyzer(bands.DefaultParams())

	_, err := a.Analyze(context.Background(), storage.NewMemoryStorage(), "BTCUSDT", "1m", 100)
	assert.Error(t, err)

	_, err = a.Analyze(context.Background(), seeded(t, flatCandles(1, 100)), "BTCUSDT", "1m", 100)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	levels := bands.Levels{T1: 110, T2: 120, B1: 90, B2: 80}

	assert.Equal(t, models.ZoneAboveT2, Classify(121, levels))
	assert.Equal(t, models.ZoneAboveT1, Classify(115, levels))
	assert.Equal(t, models.ZoneInside, Classify(100, levels))
	assert.Equal(t, models.ZoneBelowB1, Classify(85, levels))
	assert.Equal(t, models.ZoneBelowB2, Classify(79, levels))

	// с множителями по умолчанию b1 == b2
	same := bands.Levels{T1: 110, T2: 120, B1: 90, B2: 90}
	assert.Equal(t, models.ZoneBelowB1, Classify(10, same))

	nan := levels
	nan.B2 = math.NaN()
	assert.Equal(t, models.ZoneUnknown, Classify(100, nan))
	assert.Equal(t, models.ZoneUnknown, Classify(math.Inf(1), levels))
}

func TestSignal(t *testing.T) {
	levels := bands.Levels{T1: 110, T2: 120, B1: 90, B2: 80}

	assert.Equal(t, -100.0, Signal(130, levels, models.ZoneAboveT2))
	assert.Equal(t, -60.0, Signal(115, levels, models.ZoneAboveT1))
	assert.Equal(t, 60.0, Signal(85, levels, models.ZoneBelowB1))
	assert.Equal(t, 100.0, Signal(70, levels, models.ZoneBelowB2))
	assert.Equal(t, 0.0, Signal(100, levels, models.ZoneUnknown))
	assert.InDelta(t, 8.0, Signal(98, levels, models.ZoneInside), 1e-9)

	collapsed := bands.Levels{T1: 100, T2: 100, B1: 100, B2: 100}
	assert.Equal(t, 0.0, Signal(100, collapsed, models.ZoneInside))
}

func TestCandlesToBars(t *testing.T) {
	bars := CandlesToBars(flatCandles(3, 100))
	require.Len(t, bars, 3)
	assert.Equal(t, bands.Bar{Time: t0.Add(2 * time.Minute), High: 110, Low: 90, Volume: 3}, bars[2])
}
