package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"stock-monitor/internal/service"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/utils"

	"gopkg.in/telebot.v3"
)

var (
	menuSelector = &telebot.ReplyMarkup{}

	btnDetail      = menuSelector.Data("🔍 Detail", "btn_instrument_detail", "")
	btnPin         = menuSelector.Data("📌 Pin", "btn_instrument_pin", "")
	btnToggleAlert = menuSelector.Data("🔔 Alert on/off", "btn_instrument_toggle_alert", "")
	btnDelete      = menuSelector.Data("🗑 Delete", "btn_instrument_delete", "")
	btnMuteToday   = menuSelector.Data("🔕 Mute today", "btn_instrument_mute_today", "")
)

func (t *TelegramBotHandler) handleStart(ctx context.Context, c telebot.Context) error {
	message := `👋 Welcome to the fallback monitor bot.

I watch your instruments during trading hours and ping you when one falls
back from its session high by more than your threshold.

Commands:
📈 /watch <code> [threshold%] - track an instrument
🗑 /unwatch <code> - stop tracking
📋 /list - watch list with live session metrics
🔍 /detail <code> - full metrics for one instrument
▶️ /monitor - start or stop the monitor
🆘 /help - show this message again`
	_, err := t.telegram.Send(ctx, c, message)
	return err
}

func (t *TelegramBotHandler) handleWatch(ctx context.Context, c telebot.Context) error {
	args := c.Args()
	if len(args) == 0 {
		_, err := t.telegram.Send(ctx, c, "Usage: /watch <code> [threshold%], e.g. /watch 600000 2.5")
		return err
	}

	code := strings.TrimSpace(args[0])
	if len(code) != 6 {
		_, err := t.telegram.Send(ctx, c, "The instrument code must be 6 digits, e.g. 600000.")
		return err
	}

	var threshold *float64
	if len(args) > 1 {
		v, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
		if err != nil || v <= 0 {
			_, err := t.telegram.Send(ctx, c, "The threshold must be a positive number, e.g. 2.5")
			return err
		}
		threshold = utils.ToPointer(v)
	}

	// Resolve the display name before committing the config.
	sample, err := t.service.MonitorEngine.Preview(ctx, code)
	if err != nil {
		t.log.WarnContext(ctx, "Failed to preview instrument", logger.StringField("code", code), logger.ErrorField(err))
		_, sendErr := t.telegram.Send(ctx, c, fmt.Sprintf("Could not fetch a quote for %s, please check the code.", code))
		return sendErr
	}

	cfg, err := t.service.MonitorEngine.AddInstrument(ctx, code, sample.Name, threshold)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to add instrument", logger.StringField("code", code), logger.ErrorField(err))
		_, sendErr := t.telegram.Send(ctx, c, fmt.Sprintf("Tracking %s was saved but seeding its data failed; it will retry on the next poll.", code))
		return sendErr
	}

	msg := fmt.Sprintf("✅ Now tracking %s (%s), fallback threshold %s.",
		cfg.Name, cfg.Code, utils.FormatPercentage(cfg.FallbackThresholdPercent))
	if !t.service.MonitorEngine.IsRunning() {
		msg += "\nThe monitor is stopped — use /monitor to start it."
	}
	_, err = t.telegram.Send(ctx, c, msg)
	return err
}

func (t *TelegramBotHandler) handleUnwatch(ctx context.Context, c telebot.Context) error {
	args := c.Args()
	if len(args) == 0 {
		_, err := t.telegram.Send(ctx, c, "Usage: /unwatch <code>")
		return err
	}

	code := strings.TrimSpace(args[0])
	if err := t.service.MonitorEngine.RemoveInstrument(ctx, code); err != nil {
		if err == service.ErrInstrumentNotFound {
			_, sendErr := t.telegram.Send(ctx, c, fmt.Sprintf("%s is not tracked.", code))
			return sendErr
		}
		t.log.ErrorContext(ctx, "Failed to remove instrument", logger.StringField("code", code), logger.ErrorField(err))
		_, sendErr := t.telegram.Send(ctx, c, "Something went wrong removing the instrument.")
		return sendErr
	}

	_, err := t.telegram.Send(ctx, c, fmt.Sprintf("🗑 Stopped tracking %s.", code))
	return err
}

func (t *TelegramBotHandler) handleList(ctx context.Context, c telebot.Context) error {
	snapshots := t.service.MonitorEngine.Snapshot()
	if len(snapshots) == 0 {
		_, err := t.telegram.Send(ctx, c, "No tracked instruments yet. Add one with /watch <code>.")
		return err
	}

	msg := strings.Builder{}
	msg.WriteString("📋 Watch list:\n\n")

	menu := &telebot.ReplyMarkup{}
	rows := []telebot.Row{}

	for _, snap := range snapshots {
		line := fmt.Sprintf("%s (%s) — threshold %s",
			snap.Config.Name, snap.Config.Code, utils.FormatPercentage(snap.Config.FallbackThresholdPercent))
		if !snap.Config.Enabled {
			line += " [disabled]"
		}
		if snap.State != nil {
			line += fmt.Sprintf("\n    now %s | change %s | peak %s | fallback %s",
				utils.FormatPrice(snap.State.CurrentPrice),
				utils.FormatPercentage(snap.State.ChangePercent),
				utils.FormatPercentage(snap.State.MaxRisePercent),
				utils.FormatPercentage(snap.State.FallbackPercent),
			)
			if !snap.State.AlertEnabled {
				line += " 🔕"
			}
		} else {
			line += "\n    no data yet"
		}
		msg.WriteString(line + "\n")

		rows = append(rows, menu.Row(
			menu.Data(snap.Config.Code+" 🔍", btnDetail.Unique, snap.Config.Code),
			menu.Data("📌", btnPin.Unique, snap.Config.Code),
			menu.Data("🔔", btnToggleAlert.Unique, snap.Config.Code),
			menu.Data("🗑", btnDelete.Unique, snap.Config.Code),
		))
	}
	menu.Inline(rows...)

	_, err := t.telegram.Send(ctx, c, msg.String(), menu)
	return err
}

func (t *TelegramBotHandler) handleDetailCommand(ctx context.Context, c telebot.Context) error {
	args := c.Args()
	if len(args) == 0 {
		_, err := t.telegram.Send(ctx, c, "Usage: /detail <code>")
		return err
	}
	return t.sendDetail(ctx, c, strings.TrimSpace(args[0]))
}

func (t *TelegramBotHandler) handleMonitorToggle(ctx context.Context, c telebot.Context) error {
	engine := t.service.MonitorEngine
	if engine.IsRunning() {
		engine.Stop()
		_, err := t.telegram.Send(ctx, c, "⏸ Monitor stopped.")
		return err
	}

	if err := engine.Start(t.ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to start monitor", logger.ErrorField(err))
		_, sendErr := t.telegram.Send(ctx, c, "Could not start the monitor, check the logs.")
		return sendErr
	}
	_, err := t.telegram.Send(ctx, c, "▶️ Monitor started.")
	return err
}

func (t *TelegramBotHandler) sendDetail(ctx context.Context, c telebot.Context, code string) error {
	snap, err := t.service.MonitorEngine.Get(code)
	if err != nil {
		_, sendErr := t.telegram.Send(ctx, c, fmt.Sprintf("%s is not tracked.", code))
		return sendErr
	}

	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("🔍 %s (%s)\n", snap.Config.Name, snap.Config.Code))
	msg.WriteString(fmt.Sprintf("Threshold: %s\n", utils.FormatPercentage(snap.Config.FallbackThresholdPercent)))
	msg.WriteString(fmt.Sprintf("Polling: %v\n", snap.Config.Enabled))

	if snap.State != nil {
		msg.WriteString("\nSession metrics:\n")
		msg.WriteString(fmt.Sprintf("Open: %s\n", utils.FormatPrice(snap.State.OpenPrice)))
		msg.WriteString(fmt.Sprintf("High: %s\n", utils.FormatPrice(snap.State.HighestPrice)))
		msg.WriteString(fmt.Sprintf("Current: %s\n", utils.FormatPrice(snap.State.CurrentPrice)))
		msg.WriteString(fmt.Sprintf("Change: %s\n", utils.FormatPercentage(snap.State.ChangePercent)))
		msg.WriteString(fmt.Sprintf("Peak rise: %s\n", utils.FormatPercentage(snap.State.MaxRisePercent)))
		msg.WriteString(fmt.Sprintf("Current rise: %s\n", utils.FormatPercentage(snap.State.CurrentRisePercent)))
		msg.WriteString(fmt.Sprintf("Fallback: %s\n", utils.FormatPercentage(snap.State.FallbackPercent)))
		msg.WriteString(fmt.Sprintf("Alerts: %v\n", snap.State.AlertEnabled))
		if snap.State.MutedUntil != nil {
			msg.WriteString(fmt.Sprintf("Muted until: %s\n", utils.PrettyDate(*snap.State.MutedUntil)))
		}
		if sample, ok := t.service.MonitorEngine.LastSample(code); ok {
			msg.WriteString(fmt.Sprintf("Last update: %s\n", utils.PrettyDate(sample.Timestamp)))
		}
	} else {
		msg.WriteString("\nNo session data yet.")
	}

	_, err = t.telegram.Send(ctx, c, msg.String())
	return err
}

func (t *TelegramBotHandler) handleBtnDetail(ctx context.Context, c telebot.Context) error {
	defer t.telegram.Respond(ctx, c)
	return t.sendDetail(ctx, c, c.Data())
}

func (t *TelegramBotHandler) handleBtnPin(ctx context.Context, c telebot.Context) error {
	defer t.telegram.Respond(ctx, c)

	code := c.Data()
	if err := t.service.MonitorEngine.PinInstrument(ctx, code); err != nil {
		t.log.ErrorContext(ctx, "Failed to pin instrument", logger.StringField("code", code), logger.ErrorField(err))
		_, sendErr := t.telegram.Send(ctx, c, "Something went wrong pinning the instrument.")
		return sendErr
	}
	return t.handleList(ctx, c)
}

func (t *TelegramBotHandler) handleBtnToggleAlert(ctx context.Context, c telebot.Context) error {
	defer t.telegram.Respond(ctx, c)

	code := c.Data()
	enabled, err := t.service.MonitorEngine.ToggleAlert(code)
	if err != nil {
		_, sendErr := t.telegram.Send(ctx, c, fmt.Sprintf("%s has no session data yet, nothing to toggle.", code))
		return sendErr
	}

	state := "off 🔕"
	if enabled {
		state = "on 🔔"
	}
	_, err = t.telegram.Send(ctx, c, fmt.Sprintf("Alerts for %s are now %s", code, state))
	return err
}

func (t *TelegramBotHandler) handleBtnDelete(ctx context.Context, c telebot.Context) error {
	defer t.telegram.Respond(ctx, c)

	code := c.Data()
	if err := t.service.MonitorEngine.RemoveInstrument(ctx, code); err != nil && err != service.ErrInstrumentNotFound {
		t.log.ErrorContext(ctx, "Failed to remove instrument", logger.StringField("code", code), logger.ErrorField(err))
		_, sendErr := t.telegram.Send(ctx, c, "Something went wrong removing the instrument.")
		return sendErr
	}
	_, err := t.telegram.Send(ctx, c, fmt.Sprintf("🗑 Stopped tracking %s.", code))
	return err
}

func (t *TelegramBotHandler) handleBtnMuteToday(ctx context.Context, c telebot.Context) error {
	defer t.telegram.Respond(ctx, c)

	code := c.Data()
	if err := t.service.MonitorEngine.MuteToday(code); err != nil {
		_, sendErr := t.telegram.Send(ctx, c, fmt.Sprintf("%s has no session data yet, nothing to mute.", code))
		return sendErr
	}
	_, err := t.telegram.Send(ctx, c, fmt.Sprintf("🔕 %s is muted until the market close.", code))
	return err
}
