package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"

	"github.com/skalibog/vwbands/internal/bands"
)

// Символы и интервалы попадают в Flux-запросы, поэтому допускаются только безопасные значения
var (
	symbolPattern   = regexp.MustCompile(`^[A-Z0-9]+$`)
	intervalPattern = regexp.MustCompile(`^[0-9]+[mhdwM]$`)
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance   BinanceConfig   `yaml:"binance"`
	Trading   TradingConfig   `yaml:"trading"`
	Bands     BandsConfig     `yaml:"bands"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Collector CollectorConfig `yaml:"collector"`
	Storage   StorageConfig   `yaml:"storage"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TradingConfig содержит список инструментов и таймфрейм
type TradingConfig struct {
	Symbols      []string `yaml:"symbols"`
	Interval     string   `yaml:"interval"`
	HistoryLimit int      `yaml:"history_limit"`
}

// BandsConfig параметры расчета полос. Незаданные значения заменяются значениями по умолчанию.
// Множители - указатели, чтобы явный 0 отличался от отсутствующего ключа;
// нулевой период недопустим и тоже означает значение по умолчанию.
type BandsConfig struct {
	VolumePeriod           int      `yaml:"volume_period"`
	DeviationPeriod        int      `yaml:"deviation_period"`
	UpperMultiplier1       *float64 `yaml:"upper_multiplier_1"`
	UpperMultiplier2       *float64 `yaml:"upper_multiplier_2"`
	LowerMultiplier1       *float64 `yaml:"lower_multiplier_1"`
	LowerFactor2Multiplier *float64 `yaml:"lower_factor2_multiplier"`
	StdevMode              string   `yaml:"stdev_mode"`
}

// AnalysisConfig настройки аналитического цикла
type AnalysisConfig struct {
	IntervalSeconds  int              `yaml:"interval_seconds"`
	Lookback         int              `yaml:"lookback"`
	SignalThresholds SignalThresholds `yaml:"signal"`
}

// SignalThresholds пороговые значения для сигналов
type SignalThresholds struct {
	StrongBuy  float64 `yaml:"threshold_strong_buy"`
	Buy        float64 `yaml:"threshold_buy"`
	Sell       float64 `yaml:"threshold_sell"`
	StrongSell float64 `yaml:"threshold_strong_sell"`
}

// CollectorConfig настройки сборщика свечей
type CollectorConfig struct {
	PollSeconds  int `yaml:"poll_seconds"`
	BackoffMinMs int `yaml:"backoff_min_ms"`
	BackoffMaxMs int `yaml:"backoff_max_ms"`
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML и заполняет значения по умолчанию
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// Default возвращает конфигурацию без файла
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Trading.Interval == "" {
		c.Trading.Interval = "1m"
	}
	if c.Trading.HistoryLimit == 0 {
		// максимум KlinesService фьючерсов Binance
		c.Trading.HistoryLimit = 1500
	}

	defaults := bands.DefaultParams()
	if c.Bands.VolumePeriod == 0 {
		c.Bands.VolumePeriod = defaults.VolumePeriod
	}
	if c.Bands.DeviationPeriod == 0 {
		c.Bands.DeviationPeriod = defaults.DeviationPeriod
	}
	setDefaultFloat(&c.Bands.UpperMultiplier1, defaults.UpperMultiplier1)
	setDefaultFloat(&c.Bands.UpperMultiplier2, defaults.UpperMultiplier2)
	setDefaultFloat(&c.Bands.LowerMultiplier1, defaults.LowerMultiplier1)
	setDefaultFloat(&c.Bands.LowerFactor2Multiplier, defaults.LowerFactor2Multiplier)
	if c.Bands.StdevMode == "" {
		c.Bands.StdevMode = string(defaults.StdevMode)
	}

	if c.Analysis.IntervalSeconds == 0 {
		c.Analysis.IntervalSeconds = 60
	}
	if c.Analysis.Lookback == 0 {
		c.Analysis.Lookback = 3000
	}
	if c.Analysis.SignalThresholds == (SignalThresholds{}) {
		c.Analysis.SignalThresholds = SignalThresholds{
			StrongBuy:  70,
			Buy:        30,
			Sell:       -30,
			StrongSell: -70,
		}
	}

	if c.Collector.PollSeconds == 0 {
		c.Collector.PollSeconds = 30
	}
	if c.Collector.BackoffMinMs == 0 {
		c.Collector.BackoffMinMs = 500
	}
	if c.Collector.BackoffMaxMs == 0 {
		c.Collector.BackoffMaxMs = 60000
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "influxdb"
	}
	if c.UI.RefreshRate == 0 {
		c.UI.RefreshRate = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
}

func setDefaultFloat(v **float64, def float64) {
	if *v == nil {
		*v = &def
	}
}

// Params преобразует настройки в параметры калькулятора.
// Незаданные множители берутся по умолчанию и без вызова applyDefaults.
func (b BandsConfig) Params() bands.Params {
	defaults := bands.DefaultParams()
	return bands.Params{
		VolumePeriod:           b.VolumePeriod,
		DeviationPeriod:        b.DeviationPeriod,
		UpperMultiplier1:       floatOr(b.UpperMultiplier1, defaults.UpperMultiplier1),
		UpperMultiplier2:       floatOr(b.UpperMultiplier2, defaults.UpperMultiplier2),
		LowerMultiplier1:       floatOr(b.LowerMultiplier1, defaults.LowerMultiplier1),
		LowerFactor2Multiplier: floatOr(b.LowerFactor2Multiplier, defaults.LowerFactor2Multiplier),
		StdevMode:              bands.StdevMode(b.StdevMode),
	}
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Validate проверяет конфигурацию для работы в режиме сервиса
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols не может быть пустым")
	}
	for _, symbol := range c.Trading.Symbols {
		if !symbolPattern.MatchString(symbol) {
			return fmt.Errorf("некорректный символ: %q", symbol)
		}
	}
	if !intervalPattern.MatchString(c.Trading.Interval) {
		return fmt.Errorf("некорректный интервал: %q", c.Trading.Interval)
	}
	switch c.Storage.Type {
	case "influxdb":
		if c.Storage.URL == "" || c.Storage.Bucket == "" || c.Storage.Organization == "" {
			return fmt.Errorf("для storage.type=influxdb требуются url, organization и bucket")
		}
	case "memory":
	default:
		return fmt.Errorf("неизвестный тип хранилища: %q", c.Storage.Type)
	}
	if c.Analysis.Lookback < 2 {
		return fmt.Errorf("analysis.lookback должен быть >= 2: %d", c.Analysis.Lookback)
	}
	if err := c.Bands.Params().Validate(); err != nil {
		return fmt.Errorf("некорректные параметры полос: %w", err)
	}
	return nil
}
