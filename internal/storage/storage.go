package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/pkg/models"
)

// Storage интерфейс для работы с хранилищем данных
type Storage interface {
	// Методы для свечей. GetCandles возвращает свечи по возрастанию времени.
	SaveCandles(ctx context.Context, candles []*models.Candle) error
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)

	// Методы для полос
	SaveBands(ctx context.Context, symbol, interval string, set bands.Set, cycleID string) error
	GetBands(ctx context.Context, symbol, interval string, limit int) (bands.Set, error)

	// Методы для сигналов
	SaveSignal(ctx context.Context, signal *models.SignalResult) error
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.SignalResult, error)

	Close() error
}

// New создает хранилище по типу из конфигурации
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "influxdb", "":
		s, err := NewInfluxDBStorage(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %q", cfg.Type)
	}
}

// getIntervalDuration конвертирует строковый интервал в duration
func getIntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "3d":
		return 72 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
