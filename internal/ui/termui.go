package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skalibog/vwbands/internal/analysis/aggregator"
	"github.com/skalibog/vwbands/internal/config"
	"github.com/skalibog/vwbands/pkg/logger"
	"github.com/skalibog/vwbands/pkg/models"
)

// maxLogs строк хвоста логов в памяти
const maxLogs = 50

// Формат времени логгера
const logTimeLayout = "02.01.2006 - 15:04:05.999999999Z07:00"

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	mutedColor     = lipgloss.Color("#999999")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// TermUI представляет терминальный интерфейс
type TermUI struct {
	signals       map[string]*models.SignalResult
	signalsMutex  sync.RWMutex
	logs          []string
	logsMutex     sync.RWMutex
	program       *tea.Program
	selectedIndex int
	width         int
	height        int
	logFile       string
}

// Сообщения для обновления UI
type refreshMsg struct{}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает интерфейс. Хвост logFile перечитывается с частотой обновления до отмены ctx.
func NewTermUI(ctx context.Context, cfg config.UIConfig, logFile string) *TermUI {
	ui := &TermUI{
		signals: make(map[string]*models.SignalResult),
		logs:    []string{"vwbands запущен. Ожидание данных..."},
		width:   120,
		height:  40,
		logFile: logFile,
	}
	ui.program = tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ctx))

	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	go func() {
		refresh := time.Duration(cfg.RefreshRate) * time.Millisecond
		if refresh <= 0 {
			refresh = time.Second
		}
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ui.loadLogsFromFile(); err != nil {
					logger.Warn("Ошибка загрузки логов", zap.Error(err))
				}
				ui.refresh()
			}
		}
	}()

	return ui
}

// Start запускает интерфейс и блокируется до выхода пользователя или отмены ctx
func (ui *TermUI) Start(ctx context.Context) error {
	if _, err := ui.program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// UpdateSignals заменяет отображаемые сигналы
func (ui *TermUI) UpdateSignals(signals map[string]*models.SignalResult) {
	ui.signalsMutex.Lock()
	ui.signals = signals
	ui.signalsMutex.Unlock()

	ui.refresh()
}

func (ui *TermUI) refresh() {
	ui.program.Send(refreshMsg{})
}

// loadLogsFromFile перечитывает последние строки JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	if ui.logFile == "" {
		return nil
	}

	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Файл еще не создан
			return nil
		}
		return err
	}
	defer file.Close()

	var logs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > maxLogs {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(logs) > 0 {
		ui.logsMutex.Lock()
		ui.logs = logs
		ui.logsMutex.Unlock()
	}
	return nil
}

// formatLogLine превращает JSON-запись zap в строку "[время] [уровень] сообщение (поле: значение)"
func formatLogLine(line string) string {
	var zapLog map[string]interface{}
	if err := json.Unmarshal([]byte(line), &zapLog); err != nil {
		return line
	}

	level, _ := zapLog["level"].(string)
	ts, _ := zapLog["ts"].(string)
	msg, _ := zapLog["msg"].(string)

	// Удаляем ANSI-цвета из уровня логирования
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse(logTimeLayout, ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp, level, msg)

	keys := make([]string, 0, len(zapLog))
	for k := range zapLog {
		switch k {
		case "level", "ts", "msg", "caller":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " (%s: %v)", k, zapLog[k])
	}
	return b.String()
}

func renderLogsSection(logs []string, maxLines int) string {
	var content strings.Builder

	start := 0
	if maxLines > 0 && len(logs) > maxLines {
		start = len(logs) - maxLines
	}

	for _, log := range logs[start:] {
		// Выделение по уровню логирования
		switch {
		case strings.Contains(log, "[ERROR]"):
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[DEBUG]"):
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}
		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render("ЛОГИ"),
			content.String(),
		),
	)
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			m.ui.selectedIndex = max(0, m.ui.selectedIndex-1)
		case "down":
			m.ui.signalsMutex.RLock()
			count := len(m.ui.signals)
			m.ui.signalsMutex.RUnlock()
			m.ui.selectedIndex = max(0, min(count-1, m.ui.selectedIndex+1))
		case "r":
			if err := m.ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}

	case tea.WindowSizeMsg:
		m.ui.width = msg.Width
		m.ui.height = msg.Height

	case refreshMsg:
		// Просто перерисовываем
	}

	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.signalsMutex.RLock()
	m.ui.logsMutex.RLock()
	defer m.ui.signalsMutex.RUnlock()
	defer m.ui.logsMutex.RUnlock()

	title := titleStyle.Render("vwbands - Volume Weighted Bands")
	signals := renderSignalsSection(m.ui.signals, m.ui.selectedIndex)
	// Под логи остается место за вычетом заголовка, сигналов и рамок
	logs := renderLogsSection(m.ui.logs, m.ui.height-len(m.ui.signals)-16)
	footer := footerStyle.Render("Клавиши: ↑/↓ - навигация, R - перезагрузить логи, Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			signals,
			"\n",
			logs,
			"\n",
			footer,
		),
	)
}

func renderSignalsSection(signals map[string]*models.SignalResult, selectedIndex int) string {
	var content strings.Builder

	symbols := sortedSymbols(signals)
	if len(symbols) == 0 {
		content.WriteString("  Ожидание данных...\n")
	}

	for i, symbol := range symbols {
		line := "  " + formatSignalLine(signals[symbol])

		// Выделяем выбранную строку
		if i == selectedIndex {
			line = "> " + line[2:]
			line = lipgloss.NewStyle().Background(lipgloss.Color("#222222")).Render(line)
		}
		content.WriteString(line + "\n")
	}

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render("ПОЛОСЫ"),
			content.String(),
		),
	)
}

// formatSignalLine строка символа без стилей кроме рекомендации
func formatSignalLine(signal *models.SignalResult) string {
	line := fmt.Sprintf("%-10s %s (%.2f) Цена: %s",
		signal.Symbol,
		formatSignalText(signal.Recommendation),
		signal.SignalStrength,
		formatLevel(signal.CurrentPrice))

	if b := signal.Bands; b != nil {
		line += fmt.Sprintf(" | t2 %s t1 %s b1 %s b2 %s | %s",
			formatLevel(b.T2), formatLevel(b.T1), formatLevel(b.B1), formatLevel(b.B2), b.Zone)
	}
	return line
}

// formatLevel печатает значение полосы, пропуски как "-"
func formatLevel(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatSignalText(recommendation string) string {
	var style lipgloss.Style

	switch recommendation {
	case aggregator.RecommendationStrongBuy:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case aggregator.RecommendationBuy:
		style = lipgloss.NewStyle().Foreground(successColor)
	case aggregator.RecommendationStrongSell:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	case aggregator.RecommendationSell:
		style = lipgloss.NewStyle().Foreground(errorColor)
	default:
		style = lipgloss.NewStyle().Foreground(warningColor)
	}

	return style.Render(recommendation)
}

func sortedSymbols(signals map[string]*models.SignalResult) []string {
	symbols := make([]string, 0, len(signals))
	for symbol := range signals {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
