package service

import (
	"time"

	"stock-monitor/internal/model"
)

// alertThrottle suppresses a re-fire for the same instrument within this
// window, regardless of how far the fallback has moved since.
const alertThrottle = 5 * time.Minute

// AlertPolicy decides whether a fallback alert fires for one instrument.
type AlertPolicy struct {
	clock *MarketClock
}

func NewAlertPolicy(clock *MarketClock) *AlertPolicy {
	return &AlertPolicy{clock: clock}
}

// ShouldAlert evaluates the full rule chain and, when it fires, stamps
// state.LastAlertTime. The stamp makes the decision stateful: an identical
// call right after a fire is throttled.
func (p *AlertPolicy) ShouldAlert(cfg *model.InstrumentConfig, state *model.InstrumentState, now time.Time) bool {
	if cfg == nil || state == nil {
		return false
	}
	if !cfg.Enabled || !state.AlertEnabled {
		return false
	}
	if !p.clock.IsOpen(now) {
		return false
	}
	if state.MutedUntil != nil && now.Before(*state.MutedUntil) {
		return false
	}
	// Never alert on an instrument that has not risen above its open.
	if state.MaxRisePercent <= 0 {
		return false
	}
	if state.FallbackPercent < cfg.FallbackThresholdPercent {
		return false
	}
	if state.LastAlertTime != nil && now.Sub(*state.LastAlertTime) < alertThrottle {
		return false
	}

	state.LastAlertTime = &now
	return true
}

// MuteToday suppresses alerts until the next 15:00 market close.
func (p *AlertPolicy) MuteToday(state *model.InstrumentState, now time.Time) {
	expiry := p.clock.MuteExpiry(now)
	state.MutedUntil = &expiry
}

// ToggleAlert flips the per-instrument alert switch. Turning alerts back on
// also clears any standing mute.
func (p *AlertPolicy) ToggleAlert(state *model.InstrumentState) bool {
	state.AlertEnabled = !state.AlertEnabled
	if state.AlertEnabled {
		state.MutedUntil = nil
	}
	return state.AlertEnabled
}
