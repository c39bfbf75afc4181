package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/skalibog/vwbands/pkg/logger"
	"github.com/skalibog/vwbands/pkg/models"
)

// pollLimit последняя закрытая и текущая свечи
const pollLimit = 2

// maxAttempts попыток получить свечи до пропуска символа в этом цикле
const maxAttempts = 5

// DataCollector интерфейс сборщика данных
type DataCollector interface {
	Start(ctx context.Context) error
	Stop()
}

// CandleSaver принимает собранные свечи
type CandleSaver interface {
	SaveCandles(ctx context.Context, candles []*models.Candle) error
}

// CollectorOptions настройки сборщика свечей
type CollectorOptions struct {
	Symbols      []string
	Interval     string
	HistoryLimit int
	PollInterval time.Duration
	BackoffMin   time.Duration
	BackoffMax   time.Duration
}

// CandleCollector загружает историю свечей и затем периодически дозагружает новые
type CandleCollector struct {
	source KlineSource
	saver  CandleSaver
	opts   CollectorOptions

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCandleCollector создает сборщик свечей
func NewCandleCollector(source KlineSource, saver CandleSaver, opts CollectorOptions) *CandleCollector {
	return &CandleCollector{
		source: source,
		saver:  saver,
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start загружает историю и опрашивает биржу до отмены контекста или Stop
func (c *CandleCollector) Start(ctx context.Context) error {
	logger.Info("Загрузка истории свечей",
		zap.Strings("symbols", c.opts.Symbols),
		zap.String("interval", c.opts.Interval),
		zap.Int("limit", c.opts.HistoryLimit))
	c.Collect(ctx, c.opts.HistoryLimit)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopCh:
			return nil
		case <-ticker.C:
			c.Collect(ctx, pollLimit)
		}
	}
}

// Stop останавливает сборщик
func (c *CandleCollector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Collect выполняет один проход по всем символам. Ошибки символа логируются
// и не прерывают сбор по остальным.
func (c *CandleCollector) Collect(ctx context.Context, limit int) {
	for _, symbol := range c.opts.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := c.collectWithRetry(ctx, symbol, limit); err != nil {
			logger.Error("Не удалось получить свечи", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

func (c *CandleCollector) collectWithRetry(ctx context.Context, symbol string, limit int) error {
	b := &backoff.Backoff{
		Min:    c.opts.BackoffMin,
		Max:    c.opts.BackoffMax,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = c.collect(ctx, symbol, limit); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		wait := b.Duration()
		logger.Warn("Повтор запроса свечей",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return err
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("исчерпаны попытки (%d): %w", maxAttempts, err)
}

func (c *CandleCollector) collect(ctx context.Context, symbol string, limit int) error {
	candles, err := c.source.GetKlines(ctx, symbol, c.opts.Interval, limit)
	if err != nil {
		return err
	}
	if err := c.saver.SaveCandles(ctx, candles); err != nil {
		return fmt.Errorf("ошибка сохранения свечей: %w", err)
	}
	logger.Debug("Свечи сохранены", zap.String("symbol", symbol), zap.Int("count", len(candles)))
	return nil
}
