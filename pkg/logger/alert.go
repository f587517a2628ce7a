package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"stock-monitor/pkg/common"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AlertCore mirrors error-level log entries to a Telegram chat when the
// entry carries the send-alert marker field.
type AlertCore struct {
	botToken string
	chatID   string
	core     zapcore.Core
	minLevel zapcore.Level
}

// WithTelegramAlert wraps the logger's core with an AlertCore.
func (l *Logger) WithTelegramAlert(botToken, chatID string) *Logger {
	wrapped := l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &AlertCore{
			botToken: botToken,
			chatID:   chatID,
			core:     core,
			minLevel: zapcore.ErrorLevel,
		}
	}))
	return &Logger{wrapped}
}

// ErrorContextWithAlert logs an error and marks it for Telegram mirroring.
func (l *Logger) ErrorContextWithAlert(ctx context.Context, msg string, fields ...zap.Field) {
	fields = append(fields, zap.Bool(common.KeyLogHookSendAlert, true))
	l.FromContext(ctx).Error(msg, fields...)
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		botToken: a.botToken,
		chatID:   a.chatID,
		core:     a.core.With(fields),
		minLevel: a.minLevel,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return a.core.Check(entry, checkedEntry).AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	shouldSend := false
	for _, f := range fields {
		if f.Key == common.KeyLogHookSendAlert && f.Type == zapcore.BoolType && f.Integer == 1 {
			shouldSend = true
			break
		}
	}
	if entry.Level >= a.minLevel && shouldSend && a.botToken != "" {
		go a.sendTelegramAlert(entry, fields) // async so logging never blocks
	}
	return a.core.Write(entry, fields)
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func (a *AlertCore) sendTelegramAlert(entry zapcore.Entry, fields []zapcore.Field) {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}

	fieldStr := ""
	for k, v := range enc.Fields {
		if k == common.KeyLogHookSendAlert {
			continue
		}
		fieldStr += fmt.Sprintf("• %s: %v\n", k, v)
	}

	message := fmt.Sprintf(
		"🚨 *%s Alert*\n\n*Message:* %s\n\n*Fields:*\n%s\n*Time:* %s",
		entry.Level.CapitalString(),
		entry.Message,
		fieldStr,
		entry.Time.Format("2006-01-02 15:04:05"),
	)

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", a.botToken)
	payload := map[string]interface{}{
		"chat_id":    a.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonBody, _ := json.Marshal(payload)
	http.Post(url, "application/json", bytes.NewBuffer(jsonBody))
}
