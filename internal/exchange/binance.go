package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/pkg/models"
)

// KlineSource источник исторических свечей
type KlineSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
}

// BinanceClient клиент для взаимодействия с фьючерсами Binance
type BinanceClient struct {
	futures *futures.Client
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	// Переключение на testnet глобальное для пакета futures и действует на новые клиенты
	futures.UseTestnet = cfg.Testnet

	return &BinanceClient{
		futures: futures.NewClient(cfg.APIKey, cfg.APISecret),
	}, nil
}

// GetKlines получает исторические свечи по возрастанию времени
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]*models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(k, symbol, interval)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseKline преобразует свечу Binance, где цены и объем приходят строками
func parseKline(k *futures.Kline, symbol, interval string) (*models.Candle, error) {
	values := make([]float64, 5)
	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора свечи %s %d: %w", symbol, k.OpenTime, err)
		}
		values[i] = d.InexactFloat64()
	}

	return &models.Candle{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
	}, nil
}
