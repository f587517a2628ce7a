package service

import (
	"time"

	"stock-monitor/pkg/utils"
)

// closedPollInterval is used between cycles while the market is closed. The
// engine re-evaluates IsOpen on every tick instead of precomputing a wake
// time, so at most one tick is wasted at a session boundary.
const closedPollInterval = 5 * time.Minute

// MarketClock answers whether the A-share market is open and what the next
// poll delay should be. It is stateless and knows nothing about holidays.
type MarketClock struct {
	loc *time.Location
}

func NewMarketClock() *MarketClock {
	return &MarketClock{loc: utils.GetMarketLocation()}
}

// IsOpen reports whether now falls inside a trading session:
// weekdays, [09:30, 11:30] or [13:00, 15:00] inclusive, market time.
func (c *MarketClock) IsOpen(now time.Time) bool {
	local := now.In(c.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	morning := minutes >= 9*60+30 && minutes <= 11*60+30
	afternoon := minutes >= 13*60 && minutes <= 15*60
	return morning || afternoon
}

// NextPollDelay returns the configured interval during trading hours and a
// fixed long interval otherwise.
func (c *MarketClock) NextPollDelay(now time.Time, interval time.Duration) time.Duration {
	if c.IsOpen(now) {
		return interval
	}
	return closedPollInterval
}

// MuteExpiry returns 15:00 market time on the current day when that moment
// has not yet passed, otherwise 15:00 the next calendar day.
func (c *MarketClock) MuteExpiry(now time.Time) time.Time {
	local := now.In(c.loc)
	expiry := time.Date(local.Year(), local.Month(), local.Day(), 15, 0, 0, 0, c.loc)
	if !local.Before(expiry) {
		expiry = expiry.AddDate(0, 0, 1)
	}
	return expiry
}
