package service

import (
	"testing"
	"time"

	"stock-monitor/pkg/utils"

	"github.com/stretchr/testify/assert"
)

// 2026-08-24 is a Monday, 2026-08-29 a Saturday.
func marketTime(day int, hour, minute int) time.Time {
	return time.Date(2026, time.August, day, hour, minute, 0, 0, utils.GetMarketLocation())
}

func TestMarketClock_IsOpen(t *testing.T) {
	clock := NewMarketClock()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before open", now: marketTime(24, 8, 0), want: false},
		{name: "just before morning open", now: marketTime(24, 9, 29), want: false},
		{name: "morning open boundary", now: marketTime(24, 9, 30), want: true},
		{name: "mid morning", now: marketTime(24, 10, 0), want: true},
		{name: "morning close boundary", now: marketTime(24, 11, 30), want: true},
		{name: "lunch break", now: marketTime(24, 12, 0), want: false},
		{name: "afternoon open boundary", now: marketTime(24, 13, 0), want: true},
		{name: "afternoon close boundary", now: marketTime(24, 15, 0), want: true},
		{name: "after close", now: marketTime(24, 15, 1), want: false},
		{name: "saturday during session hours", now: marketTime(29, 10, 0), want: false},
		{name: "sunday during session hours", now: marketTime(30, 10, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clock.IsOpen(tt.now))
		})
	}
}

func TestMarketClock_NextPollDelay(t *testing.T) {
	clock := NewMarketClock()
	interval := 3 * time.Second

	assert.Equal(t, interval, clock.NextPollDelay(marketTime(24, 10, 0), interval))
	assert.Equal(t, closedPollInterval, clock.NextPollDelay(marketTime(24, 12, 0), interval))
	assert.Equal(t, closedPollInterval, clock.NextPollDelay(marketTime(29, 10, 0), interval))
}

func TestMarketClock_MuteExpiry(t *testing.T) {
	clock := NewMarketClock()

	t.Run("before close mutes until today 15:00", func(t *testing.T) {
		expiry := clock.MuteExpiry(marketTime(24, 14, 0))
		assert.Equal(t, marketTime(24, 15, 0), expiry)
	})

	t.Run("after close mutes until tomorrow 15:00", func(t *testing.T) {
		expiry := clock.MuteExpiry(marketTime(24, 15, 30))
		assert.Equal(t, marketTime(25, 15, 0), expiry)
	})

	t.Run("exactly at close rolls to tomorrow", func(t *testing.T) {
		expiry := clock.MuteExpiry(marketTime(24, 15, 0))
		assert.Equal(t, marketTime(25, 15, 0), expiry)
	})
}
