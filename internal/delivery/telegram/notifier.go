package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"stock-monitor/config"
	"stock-monitor/internal/contract"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/telegram"
	"stock-monitor/pkg/utils"

	"gopkg.in/telebot.v3"
)

// Notifier delivers engine alerts to the configured chat. Button follow-ups
// (detail, mute) resolve through the bot's callback handlers rather than the
// Notify return value, so Notify always reports ActionNone.
type Notifier struct {
	cfg      *config.Config
	log      *logger.Logger
	telegram *telegram.TelegramRateLimiter
	chatID   int64
}

func NewNotifier(cfg *config.Config, log *logger.Logger, tg *telegram.TelegramRateLimiter) (*Notifier, error) {
	chatID, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat_id: %w", err)
	}

	return &Notifier{
		cfg:      cfg,
		log:      log,
		telegram: tg,
		chatID:   chatID,
	}, nil
}

func (n *Notifier) Notify(ctx context.Context, alert contract.Alert) (contract.Action, error) {
	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("⚠️ [%s] %s fallback alert\n", alert.Code, alert.Name))
	msg.WriteString(fmt.Sprintf("Peak rise: %s\n", utils.FormatPercentage(alert.MaxRisePercent)))
	msg.WriteString(fmt.Sprintf("Current rise: %s\n", utils.FormatPercentage(alert.CurrentRise)))
	msg.WriteString(fmt.Sprintf("Fallback: %s (threshold %s)\n", utils.FormatPercentage(alert.FallbackPercent), utils.FormatPercentage(alert.Threshold)))
	msg.WriteString(fmt.Sprintf("Price: %s\n", utils.FormatPrice(alert.CurrentPrice)))
	msg.WriteString(utils.PrettyDate(alert.FiredAt))

	menu := &telebot.ReplyMarkup{}
	menu.Inline(
		menu.Row(
			menu.Data(btnDetail.Text, btnDetail.Unique, alert.Code),
			menu.Data(btnMuteToday.Text, btnMuteToday.Unique, alert.Code),
		),
	)

	if _, err := n.telegram.SendToChat(ctx, n.chatID, msg.String(), menu); err != nil {
		return contract.ActionNone, err
	}
	return contract.ActionNone, nil
}

func (n *Notifier) Send(ctx context.Context, text string) error {
	_, err := n.telegram.SendToChat(ctx, n.chatID, text)
	return err
}
