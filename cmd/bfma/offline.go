package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/pkg/logger"
)

// runOffline рассчитывает полосы по барам из JSON-файла без биржи и хранилища
func runOffline(cfg *config.Config, inputPath, outputPath string) error {
	params := cfg.Bands.Params()
	if err := params.Validate(); err != nil {
		return fmt.Errorf("некорректные параметры полос: %w", err)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения входного файла: %w", err)
	}

	bars, err := parseBars(data)
	if err != nil {
		return err
	}

	set := bands.NewCalculator(params).Calculate(bars)
	out := marshalSet(set)

	logger.Info("Полосы рассчитаны",
		zap.String("input", inputPath),
		zap.Int("bars", len(bars)))

	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return fmt.Errorf("ошибка записи результата: %w", err)
	}
	return nil
}

// parseBars разбирает массив [{"time": 1709251200, "high": 1, "low": 1, "volume": 1}].
// time должен быть целым числом секунд. Отсутствующий объем считается нулевым.
func parseBars(data []byte) ([]bands.Bar, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора баров: %w", err)
	}

	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("ожидается массив баров: %w", err)
	}

	bars := make([]bands.Bar, len(items))
	for i, item := range items {
		ts, err := requiredSeconds(item, "time")
		if err != nil {
			return nil, fmt.Errorf("бар %d: %w", i, err)
		}
		high, err := requiredNumber(item, "high")
		if err != nil {
			return nil, fmt.Errorf("бар %d: %w", i, err)
		}
		low, err := requiredNumber(item, "low")
		if err != nil {
			return nil, fmt.Errorf("бар %d: %w", i, err)
		}

		var volume float64
		if vol := item.Get("volume"); vol != nil && vol.Type() != fastjson.TypeNull {
			if volume, err = vol.Float64(); err != nil {
				return nil, fmt.Errorf("бар %d: volume: %w", i, err)
			}
		}

		bars[i] = bands.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			High:   high,
			Low:    low,
			Volume: volume,
		}
	}
	return bars, nil
}

// requiredSeconds не допускает дробных значений, чтобы время вернулось в ответе без изменений
func requiredSeconds(item *fastjson.Value, key string) (int64, error) {
	v := item.Get(key)
	if v == nil {
		return 0, fmt.Errorf("отсутствует поле %s", key)
	}
	n, err := v.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s должно быть целым числом секунд: %w", key, err)
	}
	return n, nil
}

func requiredNumber(item *fastjson.Value, key string) (float64, error) {
	v := item.Get(key)
	if v == nil {
		return 0, fmt.Errorf("отсутствует поле %s", key)
	}
	f, err := v.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// marshalSet сериализует полосы в {"t1":[{"time":..,"value":..}],...}.
// NaN и Inf записываются как null.
func marshalSet(set bands.Set) []byte {
	var a fastjson.Arena

	obj := a.NewObject()
	for _, line := range []struct {
		key    string
		points []bands.Point
	}{
		{"t1", set.T1},
		{"t2", set.T2},
		{"b1", set.B1},
		{"b2", set.B2},
	} {
		arr := a.NewArray()
		for i, p := range line.points {
			point := a.NewObject()
			point.Set("time", a.NewNumberString(strconv.FormatInt(p.Time.Unix(), 10)))
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				point.Set("value", a.NewNull())
			} else {
				point.Set("value", a.NewNumberFloat64(p.Value))
			}
			arr.SetArrayItem(i, point)
		}
		obj.Set(line.key, arr)
	}

	return append(obj.MarshalTo(nil), '\n')
}
