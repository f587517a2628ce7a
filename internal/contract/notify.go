package contract

import (
	"context"
	"time"
)

// Action is the follow-up a user picked on a delivered alert.
type Action string

const (
	ActionNone       Action = "NONE"
	ActionViewDetail Action = "VIEW_DETAIL"
	ActionMuteToday  Action = "MUTE_TODAY"
)

// Alert carries everything a notifier needs to render a fallback alert.
type Alert struct {
	Code            string
	Name            string
	CurrentPrice    float64
	MaxRisePercent  float64
	CurrentRise     float64
	FallbackPercent float64
	Threshold       float64
	FiredAt         time.Time
}

// Notifier delivers alert and report messages to the user. Notify returns
// the action the user selected, or ActionNone when delivery is
// fire-and-forget (the Telegram notifier resolves its buttons through
// callbacks instead). The engine never blocks its scheduling on Notify.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) (Action, error)
	Send(ctx context.Context, text string) error
}
