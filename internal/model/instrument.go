package model

import (
	"time"

	"stock-monitor/internal/dto"
)

// InstrumentConfig is the persisted identity and alert policy of a tracked
// instrument. Position keeps the user-visible ordering; pin-to-front moves
// an entry to position 0.
type InstrumentConfig struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	Code                     string    `gorm:"not null;uniqueIndex" json:"code"`
	Name                     string    `gorm:"not null" json:"name"`
	FallbackThresholdPercent float64   `gorm:"not null" json:"fallback_threshold_percent"`
	Enabled                  bool      `gorm:"not null;default:true" json:"enabled"`
	Position                 int       `gorm:"not null" json:"position"`
	CreatedAt                time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (InstrumentConfig) TableName() string {
	return "instruments"
}

// InstrumentState holds the session metrics derived from the price samples
// of one instrument. It is volatile: created on the first successful sample,
// destroyed when the instrument is removed, never persisted.
type InstrumentState struct {
	Code               string     `json:"code"`
	OpenPrice          float64    `json:"open_price"`
	HighestPrice       float64    `json:"highest_price"`
	CurrentPrice       float64    `json:"current_price"`
	ChangePercent      float64    `json:"change_percent"`
	CurrentRisePercent float64    `json:"current_rise_percent"`
	MaxRisePercent     float64    `json:"max_rise_percent"`
	FallbackPercent    float64    `json:"fallback_percent"`
	AlertEnabled       bool       `json:"alert_enabled"`
	LastAlertTime      *time.Time `json:"last_alert_time,omitempty"`
	MutedUntil         *time.Time `json:"muted_until,omitempty"`
}

// NewInstrumentState seeds the state from the first sample of the session.
// The open price is captured once and the highest price starts there, so
// the high-water mark only ever moves up from the open.
func NewInstrumentState(sample *dto.PriceSample) *InstrumentState {
	return &InstrumentState{
		Code:               sample.Code,
		OpenPrice:          sample.OpenPrice,
		HighestPrice:       sample.OpenPrice,
		CurrentPrice:       sample.CurrentPrice,
		ChangePercent:      sample.ChangePercent,
		CurrentRisePercent: RiseOf(sample.CurrentPrice, sample.OpenPrice),
		MaxRisePercent:     0,
		FallbackPercent:    0,
		AlertEnabled:       true,
	}
}

// Apply folds one sample into the state. The high-water mark advances only
// on a strictly new price high; fallback is measured against it and is zero
// until the instrument has risen above its open at least once.
func (s *InstrumentState) Apply(sample *dto.PriceSample) {
	s.CurrentPrice = sample.CurrentPrice
	s.ChangePercent = sample.ChangePercent
	s.CurrentRisePercent = RiseOf(sample.CurrentPrice, s.OpenPrice)

	if sample.CurrentPrice > s.HighestPrice {
		s.HighestPrice = sample.CurrentPrice
		s.MaxRisePercent = s.CurrentRisePercent
	}

	if s.MaxRisePercent > 0 {
		s.FallbackPercent = s.MaxRisePercent - s.CurrentRisePercent
	} else {
		s.FallbackPercent = 0
	}
}

// Clone returns a copy safe to hand out while the engine keeps mutating the
// original between poll cycles.
func (s *InstrumentState) Clone() *InstrumentState {
	if s == nil {
		return nil
	}
	clone := *s
	if s.LastAlertTime != nil {
		t := *s.LastAlertTime
		clone.LastAlertTime = &t
	}
	if s.MutedUntil != nil {
		t := *s.MutedUntil
		clone.MutedUntil = &t
	}
	return &clone
}

// RiseOf returns the percentage change of cur relative to open.
// A zero open price yields 0 to guard the division.
func RiseOf(cur, open float64) float64 {
	if open == 0 {
		return 0
	}
	return (cur - open) / open * 100
}
