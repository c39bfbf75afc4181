package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/pkg/models"
)

// MemoryStorage хранит данные в памяти процесса
type MemoryStorage struct {
	mu      sync.RWMutex
	candles map[string][]*models.Candle
	bands   map[string][]bands.Levels
	signals map[string][]*models.SignalResult
}

// NewMemoryStorage создает хранилище в памяти
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		candles: make(map[string][]*models.Candle),
		bands:   make(map[string][]bands.Levels),
		signals: make(map[string][]*models.SignalResult),
	}
}

func key(symbol, interval string) string { return symbol + "@" + interval }

// SaveCandles добавляет свечи, свеча с тем же временем открытия заменяется
func (s *MemoryStorage) SaveCandles(ctx context.Context, candles []*models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, candle := range candles {
		c := *candle
		k := key(c.Symbol, c.Interval)
		cur := s.candles[k]

		idx := sort.Search(len(cur), func(i int) bool { return !cur[i].OpenTime.Before(c.OpenTime) })
		if idx < len(cur) && cur[idx].OpenTime.Equal(c.OpenTime) {
			cur[idx] = &c
		} else {
			cur = append(cur, nil)
			copy(cur[idx+1:], cur[idx:])
			cur[idx] = &c
		}
		s.candles[k] = cur
	}
	return nil
}

// GetCandles возвращает последние limit свечей по возрастанию времени
func (s *MemoryStorage) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := s.candles[key(symbol, interval)]
	if limit > 0 && len(cur) > limit {
		cur = cur[len(cur)-limit:]
	}

	result := make([]*models.Candle, len(cur))
	for i, c := range cur {
		copied := *c
		result[i] = &copied
	}
	return result, nil
}

// SaveBands объединяет полосы с ранее сохраненными по времени
func (s *MemoryStorage) SaveBands(ctx context.Context, symbol, interval string, set bands.Set, cycleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(symbol, interval)
	byTime := make(map[int64]bands.Levels, len(s.bands[k])+set.Len())
	for _, l := range s.bands[k] {
		byTime[l.Time.UnixNano()] = l
	}
	for i := 0; i < set.Len(); i++ {
		t := set.T1[i].Time
		byTime[t.UnixNano()] = bands.Levels{
			Time: t,
			T1:   set.T1[i].Value,
			T2:   set.T2[i].Value,
			B1:   set.B1[i].Value,
			B2:   set.B2[i].Value,
		}
	}

	merged := make([]bands.Levels, 0, len(byTime))
	for _, l := range byTime {
		merged = append(merged, l)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })
	s.bands[k] = merged
	return nil
}

// GetBands возвращает последние limit точек полос
func (s *MemoryStorage) GetBands(ctx context.Context, symbol, interval string, limit int) (bands.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := s.bands[key(symbol, interval)]
	if limit > 0 && len(levels) > limit {
		levels = levels[len(levels)-limit:]
	}
	return setFromLevels(levels), nil
}

// SaveSignal сохраняет сигнал
func (s *MemoryStorage) SaveSignal(ctx context.Context, signal *models.SignalResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals[signal.Symbol] = append(s.signals[signal.Symbol], copySignal(signal))
	return nil
}

// GetSignalHistory возвращает историю сигналов, новые первыми
func (s *MemoryStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.SignalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.signals[symbol]
	result := make([]*models.SignalResult, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, copySignal(history[i]))
	}
	return result, nil
}

// copySignal копирует сигнал вместе с компонентами и снимком полос
func copySignal(signal *models.SignalResult) *models.SignalResult {
	copied := *signal
	if signal.Components != nil {
		copied.Components = make(map[string]float64, len(signal.Components))
		for k, v := range signal.Components {
			copied.Components[k] = v
		}
	}
	if signal.Bands != nil {
		snapshot := *signal.Bands
		copied.Bands = &snapshot
	}
	return &copied
}

// Close ничего не делает
func (s *MemoryStorage) Close() error {
	return nil
}
