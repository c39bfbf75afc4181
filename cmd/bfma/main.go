package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/vwbands/internal/analysis/aggregator"
	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/internal/exchange"
	"github.com/skalibog/vwbands/internal/storage"
	"github.com/skalibog/vwbands/internal/ui"
	"github.com/skalibog/vwbands/pkg/logger"
	"github.com/skalibog/vwbands/pkg/models"
)

// Файл читаемого лога, когда консоль занята интерфейсом
const defaultUILogFile = "app.log"

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	inputPath := flag.String("input", "", "JSON-файл с барами для расчета полос без подключения к бирже")
	outputPath := flag.String("output", "", "файл для результата расчета (по умолчанию stdout)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *inputPath != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	if *inputPath == "" && cfg.UI.Enabled && cfg.Log.File == "" {
		cfg.Log.File = defaultUILogFile
	}
	if err := logger.Init(logger.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		JSONFile: cfg.Log.JSONFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *inputPath != "" {
		if err := runOffline(cfg, *inputPath, *outputPath); err != nil {
			logger.Fatal("Ошибка расчета полос", zap.Error(err))
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Некорректная конфигурация", zap.Error(err))
	}

	// Контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Ошибка выполнения", zap.Error(err))
	}
	logger.Info("Завершение работы")
}

// loadConfig читает файл конфигурации. В расчете по файлу конфигурация необязательна.
func loadConfig(path string, optional bool) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && optional {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(ctx context.Context, cfg *config.Config) error {
	// Инициализируем хранилище
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	defer store.Close()

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента биржи: %w", err)
	}

	analyzer := aggregator.NewAnalyzer(cfg, store)

	collector := exchange.NewCandleCollector(client, store, exchange.CollectorOptions{
		Symbols:      cfg.Trading.Symbols,
		Interval:     cfg.Trading.Interval,
		HistoryLimit: cfg.Trading.HistoryLimit,
		PollInterval: time.Duration(cfg.Collector.PollSeconds) * time.Second,
		BackoffMin:   time.Duration(cfg.Collector.BackoffMinMs) * time.Millisecond,
		BackoffMax:   time.Duration(cfg.Collector.BackoffMaxMs) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	// Сборщик свечей
	go func() {
		defer wg.Done()
		defer collector.Stop()
		if err := collector.Start(ctx); err != nil {
			logger.Error("Ошибка сборщика свечей", zap.Error(err))
		}
	}()

	var userInterface *ui.TermUI
	if cfg.UI.Enabled {
		userInterface = ui.NewTermUI(ctx, cfg.UI, cfg.Log.JSONFile)
	}

	// Аналитический цикл
	go func() {
		defer wg.Done()
		runAnalysis(ctx, cfg.Analysis, analyzer, func(signals map[string]*models.SignalResult) {
			if userInterface != nil {
				userInterface.UpdateSignals(signals)
			}
		})
	}()

	if userInterface != nil {
		// Блокируется до выхода из интерфейса
		if err := userInterface.Start(ctx); err != nil {
			logger.Error("Ошибка интерфейса", zap.Error(err))
		}
		cancel()
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	return nil
}

// runAnalysis запускает генерацию сигналов по таймеру до отмены ctx
func runAnalysis(ctx context.Context, cfg config.AnalysisConfig, analyzer *aggregator.Analyzer, publish func(map[string]*models.SignalResult)) {
	ticker := time.NewTicker(time.Duration(cfg.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			signals, err := analyzer.GenerateSignals(ctx)
			if err != nil {
				logger.Warn("Предупреждение: ошибка при генерации сигналов", zap.Error(err))
			}
			for symbol, signal := range signals {
				logger.Info("Сигнал",
					zap.String("symbol", symbol),
					zap.String("recommendation", signal.Recommendation),
					zap.Float64("strength", signal.SignalStrength),
					zap.Float64("price", signal.CurrentPrice),
					zap.String("zone", string(signal.Bands.Zone)))
			}
			if len(signals) > 0 {
				publish(signals)
			}
		}
	}
}
