package telegram

import (
	"context"
	"time"

	"stock-monitor/config"
	"stock-monitor/internal/service"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/telegram"

	"gopkg.in/telebot.v3"
)

// TelegramBotHandler is the interactive control surface: it registers the
// watch-list commands, the inline buttons on list and alert messages, and
// owns the bot lifecycle.
type TelegramBotHandler struct {
	ctx      context.Context
	cfg      *config.Config
	bot      *telebot.Bot
	log      *logger.Logger
	telegram *telegram.TelegramRateLimiter
	service  *service.Service
}

func NewTelegramBotHandler(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	bot *telebot.Bot,
	telegram *telegram.TelegramRateLimiter,
	service *service.Service,
) *TelegramBotHandler {
	return &TelegramBotHandler{
		ctx:      ctx,
		cfg:      cfg,
		log:      log,
		bot:      bot,
		telegram: telegram,
		service:  service,
	}
}

func (t *TelegramBotHandler) WithContext(handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(t.ctx, time.Minute)
		defer cancel()

		return handler(ctx, c)
	}
}

func (t *TelegramBotHandler) Start() {
	t.log.Info("Starting Telegram bot...")
	t.RegisterHandlers()
	t.bot.Start()
}

func (t *TelegramBotHandler) Stop() {
	t.log.Info("Stopping Telegram bot...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopDone := make(chan struct{}, 1)
	go func() {
		t.bot.Stop()
		stopDone <- struct{}{}
	}()

	select {
	case <-stopDone:
		t.log.Info("Telegram bot stopped successfully")
	case <-ctx.Done():
		t.log.Warn("Timeout while stopping bot, forcing shutdown")
	}
}

func (t *TelegramBotHandler) RegisterHandlers() {
	t.bot.Handle("/start", t.WithContext(t.handleStart))
	t.bot.Handle("/help", t.WithContext(t.handleStart))
	t.bot.Handle("/watch", t.WithContext(t.handleWatch))
	t.bot.Handle("/unwatch", t.WithContext(t.handleUnwatch))
	t.bot.Handle("/list", t.WithContext(t.handleList))
	t.bot.Handle("/detail", t.WithContext(t.handleDetailCommand))
	t.bot.Handle("/monitor", t.WithContext(t.handleMonitorToggle))

	t.bot.Handle(&btnDetail, t.WithContext(t.handleBtnDetail))
	t.bot.Handle(&btnPin, t.WithContext(t.handleBtnPin))
	t.bot.Handle(&btnToggleAlert, t.WithContext(t.handleBtnToggleAlert))
	t.bot.Handle(&btnDelete, t.WithContext(t.handleBtnDelete))
	t.bot.Handle(&btnMuteToday, t.WithContext(t.handleBtnMuteToday))
}
