package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options настройки логгера
type Options struct {
	Level    string
	File     string
	JSONFile string
}

// Глобальный экземпляр логгера
var (
	globalLogger *zap.Logger
	once         sync.Once
	mu           sync.RWMutex
)

// Init инициализирует глобальный логгер.
// Повторные вызовы ничего не меняют.
func Init(opts Options) error {
	var initErr error
	once.Do(func() {
		// Очистка JSON-лога при перезапуске
		if opts.JSONFile != "" {
			if err := os.Truncate(opts.JSONFile, 0); err != nil && !os.IsNotExist(err) {
				initErr = fmt.Errorf("ошибка очистки файла логов: %w", err)
				return
			}
		}

		l, err := newLogger(opts)
		if err != nil {
			initErr = err
			return
		}

		mu.Lock()
		globalLogger = l
		mu.Unlock()
	})
	return initErr
}

// GetLogger возвращает глобальный экземпляр логгера.
// До вызова Init возвращает no-op логгер.
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Вспомогательные функции для удобства использования
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// Sync сбрасывает буферы логгера
func Sync() {
	_ = GetLogger().Sync()
}

// ParseLevel разбирает уровень логирования, по умолчанию debug
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil || level == "" {
		return zapcore.DebugLevel
	}
	return l
}

// newLogger создает новый экземпляр логгера
func newLogger(opts Options) (*zap.Logger, error) {
	// Конфигурация энкодера
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("02.01.2006 - 15:04:05.000000000Z07:00")
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	readableEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	level := ParseLevel(opts.Level)

	var cores []zapcore.Core
	if opts.File != "" {
		readableFile, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия файла логов: %w", err)
		}
		cores = append(cores, zapcore.NewCore(readableEncoder, zapcore.AddSync(readableFile), level))
	} else {
		cores = append(cores, zapcore.NewCore(readableEncoder, zapcore.Lock(os.Stderr), level))
	}
	if opts.JSONFile != "" {
		jsonFile, err := os.OpenFile(opts.JSONFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия JSON-файла логов: %w", err)
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(jsonFile), level))
	}

	// Tee: читаемый вывод + JSON файл
	core := zapcore.NewTee(cores...)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}
