package models

import (
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Zone положение цены относительно полос
type Zone string

const (
	ZoneAboveT2 Zone = "above_t2"
	ZoneAboveT1 Zone = "above_t1"
	ZoneInside  Zone = "inside"
	ZoneBelowB1 Zone = "below_b1"
	ZoneBelowB2 Zone = "below_b2"
	ZoneUnknown Zone = "unknown"
)

// BandSnapshot последние значения полос для символа
type BandSnapshot struct {
	Symbol   string
	Interval string
	Time     time.Time
	Close    float64
	T1       float64
	T2       float64
	B1       float64
	B2       float64
	Zone     Zone
}

// SignalResult представляет результат сигнала
type SignalResult struct {
	Symbol         string
	CycleID        string
	Timestamp      time.Time
	Recommendation string
	SignalStrength float64
	CurrentPrice   float64
	Components     map[string]float64
	Bands          *BandSnapshot
}
