package ui

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/skalibog/vwbands/internal/analysis/aggregator"
	"github.com/skalibog/vwbands/pkg/models"
)

func TestFormatLogLine(t *testing.T) {
	line := `{"level":"\u001b[34mINFO\u001b[0m","ts":"01.03.2024 - 12:30:45.123456789Z","caller":"cmd/main.go:10","msg":"Свечи сохранены","symbol":"BTCUSDT","count":2}`

	assert.Equal(t, "[12:30:45] [INFO] Свечи сохранены (count: 2) (symbol: BTCUSDT)", formatLogLine(line))
	assert.Equal(t, "plain text", formatLogLine("plain text"))
}

func TestFormatSignalLine(t *testing.T) {
	signal := &models.SignalResult{
		Symbol:         "BTCUSDT",
		Recommendation: aggregator.RecommendationBuy,
		SignalStrength: 60,
		CurrentPrice:   61000,
		Bands: &models.BandSnapshot{
			T1:   62000,
			T2:   63000.5,
			B1:   61500,
			B2:   math.NaN(),
			Zone: models.ZoneBelowB1,
		},
	}

	line := formatSignalLine(signal)
	assert.True(t, strings.HasPrefix(line, "BTCUSDT"), line)
	assert.Contains(t, line, aggregator.RecommendationBuy)
	assert.Contains(t, line, "(60.00) Цена: 61000.00")
	assert.Contains(t, line, "t2 63000.50 t1 62000.00 b1 61500.00 b2 -")
	assert.True(t, strings.HasSuffix(line, "below_b1"), line)

	signal.Bands = nil
	assert.NotContains(t, formatSignalLine(signal), "t1")
}

func TestSortedSymbols(t *testing.T) {
	signals := map[string]*models.SignalResult{"SOLUSDT": {}, "BTCUSDT": {}, "ETHUSDT": {}}
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, sortedSymbols(signals))
}

func TestUpdate_Navigation(t *testing.T) {
	ui := &TermUI{
		signals: map[string]*models.SignalResult{
			"BTCUSDT": {Symbol: "BTCUSDT"},
			"ETHUSDT": {Symbol: "ETHUSDT"},
		},
	}
	m := bubbleModel{ui: ui}

	down := tea.KeyMsg{Type: tea.KeyDown}
	up := tea.KeyMsg{Type: tea.KeyUp}

	m.Update(down)
	assert.Equal(t, 1, ui.selectedIndex)
	m.Update(down)
	assert.Equal(t, 1, ui.selectedIndex)
	m.Update(up)
	m.Update(up)
	assert.Equal(t, 0, ui.selectedIndex)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	assert.Equal(t, 30, ui.height)
	assert.Contains(t, m.View(), "BTCUSDT")
}
