package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/internal/storage"
	"github.com/skalibog/vwbands/pkg/models"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func seedCandles(t *testing.T, s storage.Storage, symbol string, n int, lastClose float64) {
	t.Helper()
	candles := make([]*models.Candle, n)
	for i := range candles {
		open := t0.Add(time.Duration(i) * time.Minute)
		candles[i] = &models.Candle{
			Symbol:    symbol,
			Interval:  "1m",
			OpenTime:  open,
			High:      110,
			Low:       90,
			Close:     100,
			Volume:    1,
			CloseTime: open.Add(time.Minute),
		}
	}
	candles[n-1].Close = lastClose
	require.NoError(t, s.SaveCandles(context.Background(), candles))
}

func testConfig(symbols ...string) *config.Config {
	cfg := config.Default()
	cfg.Trading.Symbols = symbols
	cfg.Storage.Type = "memory"
	cfg.Analysis.Lookback = 10
	return cfg
}

func TestGenerateSignals(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	seedCandles(t, s, "BTCUSDT", 20, 80)
	seedCandles(t, s, "ETHUSDT", 20, 120)
	seedCandles(t, s, "SOLUSDT", 20, 100)

	a := NewAnalyzer(testConfig("BTCUSDT", "ETHUSDT", "SOLUSDT"), s)
	a.now = func() time.Time { return t0.Add(time.Hour) }

	results, err := a.GenerateSignals(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)

	btc := results["BTCUSDT"]
	assert.Equal(t, RecommendationBuy, btc.Recommendation)
	assert.Equal(t, 60.0, btc.SignalStrength)
	assert.Equal(t, 80.0, btc.CurrentPrice)
	assert.Equal(t, models.ZoneBelowB1, btc.Bands.Zone)
	assert.Equal(t, 60.0, btc.Components["bands"])

	assert.Equal(t, RecommendationStrongSell, results["ETHUSDT"].Recommendation)
	assert.Equal(t, RecommendationNeutral, results["SOLUSDT"].Recommendation)

	// один идентификатор цикла на все символы
	_, err = uuid.Parse(btc.CycleID)
	require.NoError(t, err)
	assert.Equal(t, btc.CycleID, results["ETHUSDT"].CycleID)
	assert.Equal(t, btc.CycleID, results["SOLUSDT"].CycleID)

	history, err := a.GetSignalHistory(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, btc.CycleID, history[0].CycleID)
	assert.True(t, history[0].Timestamp.Equal(t0.Add(time.Hour)))

	saved, err := s.GetBands(ctx, "BTCUSDT", "1m", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, saved.Len())
}

func TestGenerateSignals_PartialFailure(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	seedCandles(t, s, "BTCUSDT", 20, 100)

	a := NewAnalyzer(testConfig("BTCUSDT", "ETHUSDT", "XRPUSDT"), s)

	results, err := a.GenerateSignals(ctx)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "ETHUSDT")
	assert.Contains(t, err.Error(), "XRPUSDT")

	require.Len(t, results, 1)
	assert.Contains(t, results, "BTCUSDT")
}

// countingStorage запоминает размер каждого сохраненного набора полос
type countingStorage struct {
	*storage.MemoryStorage
	saved []int
}

func (s *countingStorage) SaveBands(ctx context.Context, symbol, interval string, set bands.Set, cycleID string) error {
	s.saved = append(s.saved, set.Len())
	return s.MemoryStorage.SaveBands(ctx, symbol, interval, set, cycleID)
}

func TestGenerateSignals_SavesOnlyNewBandPoints(t *testing.T) {
	ctx := context.Background()
	s := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	seedCandles(t, s, "BTCUSDT", 20, 100)

	a := NewAnalyzer(testConfig("BTCUSDT"), s)

	_, err := a.GenerateSignals(ctx)
	require.NoError(t, err)

	// новая свеча: перезаписывается последняя сохраненная точка и добавляется новая
	open := t0.Add(20 * time.Minute)
	require.NoError(t, s.SaveCandles(ctx, []*models.Candle{{
		Symbol: "BTCUSDT", Interval: "1m", OpenTime: open,
		High: 110, Low: 90, Close: 100, Volume: 1, CloseTime: open.Add(time.Minute),
	}}))
	_, err = a.GenerateSignals(ctx)
	require.NoError(t, err)

	// без новых свечей обновляется только последняя точка
	_, err = a.GenerateSignals(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 2, 1}, s.saved)

	saved, err := s.GetBands(ctx, "BTCUSDT", "1m", 0)
	require.NoError(t, err)
	assert.Equal(t, 11, saved.Len())
	last, ok := saved.Last()
	require.True(t, ok)
	assert.True(t, last.Time.Equal(open))
}

func TestRecommend(t *testing.T) {
	thresholds := config.SignalThresholds{StrongBuy: 70, Buy: 30, Sell: -30, StrongSell: -70}

	tests := []struct {
		strength float64
		want     string
	}{
		{100, RecommendationStrongBuy},
		{70, RecommendationStrongBuy},
		{60, RecommendationBuy},
		{30, RecommendationBuy},
		{29.9, RecommendationNeutral},
		{0, RecommendationNeutral},
		{-30, RecommendationSell},
		{-60, RecommendationSell},
		{-70, RecommendationStrongSell},
		{-100, RecommendationStrongSell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Recommend(tt.strength, thresholds), "strength %v", tt.strength)
	}
}
