package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/vwbands/internal/analysis/vwbands"
	"github.com/skalibog/vwbands/internal/bands"
	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/internal/storage"
	"github.com/skalibog/vwbands/pkg/logger"
	"github.com/skalibog/vwbands/pkg/models"
)

// maxConcurrency одновременно анализируемых символов
const maxConcurrency = 4

// Рекомендации
const (
	RecommendationStrongBuy  = "СИЛЬНАЯ ПОКУПКА"
	RecommendationBuy        = "ПОКУПКА"
	RecommendationNeutral    = "НЕЙТРАЛЬНО"
	RecommendationSell       = "ПРОДАЖА"
	RecommendationStrongSell = "СИЛЬНАЯ ПРОДАЖА"
)

// Analyzer запускает анализ полос по всем символам и сохраняет результаты
type Analyzer struct {
	config    config.AnalysisConfig
	storage   storage.Storage
	bandsAnal *vwbands.Analyzer
	symbols   []string
	interval  string
	now       func() time.Time

	// Время последней сохраненной точки полос по символу
	savedMutex sync.Mutex
	savedUntil map[string]time.Time
}

// NewAnalyzer создает новый анализатор
func NewAnalyzer(cfg *config.Config, storage storage.Storage) *Analyzer {
	return &Analyzer{
		config:    cfg.Analysis,
		storage:   storage,
		bandsAnal: vwbands.NewAnalyzer(cfg.Bands.Params()),
		symbols:   cfg.Trading.Symbols,
		interval:  cfg.Trading.Interval,
		now:       time.Now,

		savedUntil: make(map[string]time.Time),
	}
}

// GenerateSignals генерирует сигналы для всех отслеживаемых символов.
// Возвращает успешные результаты и объединенную ошибку по остальным символам.
func (a *Analyzer) GenerateSignals(ctx context.Context) (map[string]*models.SignalResult, error) {
	cycleID := uuid.NewString()
	logger.Debug("AGGREGATOR: Начало цикла", zap.String("cycle_id", cycleID), zap.Int("symbols", len(a.symbols)))

	results := make(map[string]*models.SignalResult, len(a.symbols))
	var mutex sync.Mutex
	var errs error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for _, symbol := range a.symbols {
		sym := symbol
		g.Go(func() error {
			signal, err := a.generateSignalForSymbol(gctx, sym, cycleID)

			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				// Ошибка одного символа не останавливает остальные
				logger.Warn("Ошибка генерации сигнала", zap.String("symbol", sym), zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", sym, err))
				return nil
			}
			results[sym] = signal
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return results, errs
}

// generateSignalForSymbol генерирует сигнал для одного символа
func (a *Analyzer) generateSignalForSymbol(ctx context.Context, symbol, cycleID string) (*models.SignalResult, error) {
	result, err := a.bandsAnal.Analyze(ctx, a.storage, symbol, a.interval, a.config.Lookback)
	if err != nil {
		return nil, err
	}
	logger.Debug("AGGREGATOR: Анализ полос завершен",
		zap.String("symbol", symbol),
		zap.String("zone", string(result.Snapshot.Zone)),
		zap.Float64("signal", result.Signal))

	signal := &models.SignalResult{
		Symbol:         symbol,
		CycleID:        cycleID,
		Timestamp:      a.now(),
		Recommendation: Recommend(result.Signal, a.config.SignalThresholds),
		SignalStrength: result.Signal,
		CurrentPrice:   result.Snapshot.Close,
		Components: map[string]float64{
			"bands": result.Signal,
		},
		Bands: result.Snapshot,
	}

	// Ошибки сохранения не отменяют рассчитанный сигнал
	var saveErr error
	if err := a.saveBands(ctx, symbol, result.Set, cycleID); err != nil {
		saveErr = multierr.Append(saveErr, err)
	}
	if err := a.storage.SaveSignal(ctx, signal); err != nil {
		saveErr = multierr.Append(saveErr, err)
	}
	if saveErr != nil {
		logger.Warn("Предупреждение: не удалось сохранить результаты", zap.String("symbol", symbol), zap.Error(saveErr))
	}

	return signal, nil
}

// saveBands сохраняет только точки, начиная с последней сохраненной. Последняя точка
// перезаписывается каждый цикл, пока свеча не закрыта.
func (a *Analyzer) saveBands(ctx context.Context, symbol string, set bands.Set, cycleID string) error {
	a.savedMutex.Lock()
	since := a.savedUntil[symbol]
	a.savedMutex.Unlock()

	fresh := set.From(since)
	if err := a.storage.SaveBands(ctx, symbol, a.interval, fresh, cycleID); err != nil {
		return err
	}

	if last, ok := fresh.Last(); ok {
		a.savedMutex.Lock()
		a.savedUntil[symbol] = last.Time
		a.savedMutex.Unlock()
	}
	return nil
}

// Recommend определяет рекомендацию по силе сигнала
func Recommend(strength float64, thresholds config.SignalThresholds) string {
	switch {
	case strength >= thresholds.StrongBuy:
		return RecommendationStrongBuy
	case strength >= thresholds.Buy:
		return RecommendationBuy
	case strength <= thresholds.StrongSell:
		return RecommendationStrongSell
	case strength <= thresholds.Sell:
		return RecommendationSell
	default:
		return RecommendationNeutral
	}
}

// GetSignalHistory возвращает историю сигналов для символа
func (a *Analyzer) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.SignalResult, error) {
	return a.storage.GetSignalHistory(ctx, symbol, limit)
}
