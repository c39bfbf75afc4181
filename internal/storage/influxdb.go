// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/pkg/models"
)

const (
	measurementCandles = "candles"
	measurementBands   = "bands"
	measurementSignals = "signals"
)

// fluxParams доступны в запросе как params.<имя>
type fluxParams struct {
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
	Symbol      string `json:"symbol"`
	Interval    string `json:"interval"`
}

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() error {
	s.client.Close()
	return nil
}

// candlePoint создает точку InfluxDB для свечи
func candlePoint(candle *models.Candle) *write.Point {
	return influxdb2.NewPoint(
		measurementCandles,
		map[string]string{
			"symbol":   candle.Symbol,
			"interval": candle.Interval,
		},
		map[string]interface{}{
			"open":   candle.Open,
			"high":   candle.High,
			"low":    candle.Low,
			"close":  candle.Close,
			"volume": candle.Volume,
		},
		candle.OpenTime,
	)
}

// bandPoints создает точки InfluxDB для полос.
// Line protocol не передает NaN и Inf, такие значения пропускаются,
// а точки без единого конечного значения не записываются.
func bandPoints(symbol, interval string, set bands.Set, cycleID string) []*write.Point {
	points := make([]*write.Point, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		fields := make(map[string]interface{}, 5)
		addFinite(fields, "t1", set.T1[i].Value)
		addFinite(fields, "t2", set.T2[i].Value)
		addFinite(fields, "b1", set.B1[i].Value)
		addFinite(fields, "b2", set.B2[i].Value)
		if len(fields) == 0 {
			continue
		}
		if cycleID != "" {
			fields["cycle_id"] = cycleID
		}

		points = append(points, influxdb2.NewPoint(
			measurementBands,
			map[string]string{
				"symbol":   symbol,
				"interval": interval,
			},
			fields,
			set.T1[i].Time,
		))
	}
	return points
}

func addFinite(fields map[string]interface{}, key string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	fields[key] = value
}

// signalPoint создает точку InfluxDB для сигнала
func signalPoint(signal *models.SignalResult) *write.Point {
	fields := map[string]interface{}{
		"recommendation": signal.Recommendation,
		"strength":       signal.SignalStrength,
		"price":          signal.CurrentPrice,
		"cycle_id":       signal.CycleID,
	}
	if signal.Bands != nil {
		fields["zone"] = string(signal.Bands.Zone)
	}
	return influxdb2.NewPoint(
		measurementSignals,
		map[string]string{
			"symbol": signal.Symbol,
		},
		fields,
		signal.Timestamp,
	)
}

// SaveCandles сохраняет множество свечей
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	points := make([]*write.Point, len(candles))
	for i, candle := range candles {
		points[i] = candlePoint(candle)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	return nil
}

// rangeStart возвращает глубину запроса, достаточную для limit свечей
func rangeStart(interval string, limit int) string {
	d := getIntervalDuration(interval) * time.Duration(limit+1) * 2
	return fmt.Sprintf("-%ds", int64(d/time.Second))
}

// GetCandles получает исторические свечи
func (s *InfluxDBStorage) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	// Строковые значения передаются через params, а не подставляются в текст запроса
	query := fmt.Sprintf(`
		from(bucket: params.bucket)
			|> range(start: %s)
			|> filter(fn: (r) => r._measurement == params.measurement)
			|> filter(fn: (r) => r.symbol == params.symbol)
			|> filter(fn: (r) => r.interval == params.interval)
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, rangeStart(interval, limit), limit)

	result, err := s.queryAPI.QueryWithParams(ctx, query, fluxParams{
		Bucket:      s.bucket,
		Measurement: measurementCandles,
		Symbol:      symbol,
		Interval:    interval,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}

	// Обрабатываем результаты
	var candles []*models.Candle
	for result.Next() {
		record := result.Record()

		// Извлекаем поля
		timestamp := record.Time()
		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		close, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		candles = append(candles, &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  timestamp,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: timestamp.Add(getIntervalDuration(interval)),
		})
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	// Запрос отдает свечи от новых к старым
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// SaveBands сохраняет рассчитанные полосы
func (s *InfluxDBStorage) SaveBands(ctx context.Context, symbol, interval string, set bands.Set, cycleID string) error {
	points := bandPoints(symbol, interval, set, cycleID)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи полос: %w", err)
	}
	return nil
}

// GetBands получает последние limit точек полос
func (s *InfluxDBStorage) GetBands(ctx context.Context, symbol, interval string, limit int) (bands.Set, error) {
	query := fmt.Sprintf(`
		from(bucket: params.bucket)
			|> range(start: %s)
			|> filter(fn: (r) => r._measurement == params.measurement)
			|> filter(fn: (r) => r.symbol == params.symbol)
			|> filter(fn: (r) => r.interval == params.interval)
			|> filter(fn: (r) => r._field != "cycle_id")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, rangeStart(interval, limit), limit)

	result, err := s.queryAPI.QueryWithParams(ctx, query, fluxParams{
		Bucket:      s.bucket,
		Measurement: measurementBands,
		Symbol:      symbol,
		Interval:    interval,
	})
	if err != nil {
		return bands.Set{}, fmt.Errorf("ошибка запроса полос: %w", err)
	}

	var levels []bands.Levels
	for result.Next() {
		record := result.Record()
		levels = append(levels, bands.Levels{
			Time: record.Time(),
			T1:   floatOrNaN(record.ValueByKey("t1")),
			T2:   floatOrNaN(record.ValueByKey("t2")),
			B1:   floatOrNaN(record.ValueByKey("b1")),
			B2:   floatOrNaN(record.ValueByKey("b2")),
		})
	}
	if result.Err() != nil {
		return bands.Set{}, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	// От старых к новым
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
	return setFromLevels(levels), nil
}

// floatOrNaN возвращает NaN для пропущенных при записи значений
func floatOrNaN(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return math.NaN()
}

// setFromLevels собирает Set из строк значений
func setFromLevels(levels []bands.Levels) bands.Set {
	set := bands.Set{
		T1: make([]bands.Point, len(levels)),
		T2: make([]bands.Point, len(levels)),
		B1: make([]bands.Point, len(levels)),
		B2: make([]bands.Point, len(levels)),
	}
	for i, l := range levels {
		set.T1[i] = bands.Point{Time: l.Time, Value: l.T1}
		set.T2[i] = bands.Point{Time: l.Time, Value: l.T2}
		set.B1[i] = bands.Point{Time: l.Time, Value: l.B1}
		set.B2[i] = bands.Point{Time: l.Time, Value: l.B2}
	}
	return set
}

// SaveSignal сохраняет сигнал
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, signal *models.SignalResult) error {
	if err := s.writeAPI.WritePoint(ctx, signalPoint(signal)); err != nil {
		return fmt.Errorf("ошибка записи сигнала: %w", err)
	}
	return nil
}

// GetSignalHistory получает историю сигналов, новые первыми
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.SignalResult, error) {
	query := fmt.Sprintf(`
		from(bucket: params.bucket)
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == params.measurement)
			|> filter(fn: (r) => r.symbol == params.symbol)
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, limit)

	result, err := s.queryAPI.QueryWithParams(ctx, query, fluxParams{
		Bucket:      s.bucket,
		Measurement: measurementSignals,
		Symbol:      symbol,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории сигналов: %w", err)
	}

	// Обрабатываем результаты
	var signals []*models.SignalResult
	for result.Next() {
		record := result.Record()

		recommendation, _ := record.ValueByKey("recommendation").(string)
		strength, _ := record.ValueByKey("strength").(float64)
		price, _ := record.ValueByKey("price").(float64)
		cycleID, _ := record.ValueByKey("cycle_id").(string)

		signals = append(signals, &models.SignalResult{
			Symbol:         symbol,
			CycleID:        cycleID,
			Timestamp:      record.Time(),
			Recommendation: recommendation,
			SignalStrength: strength,
			CurrentPrice:   price,
			Components:     make(map[string]float64),
		})
	}

	// Проверяем на ошибки
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return signals, nil
}
