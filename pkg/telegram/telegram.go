package telegram

import (
	"context"
	"fmt"
	"stock-monitor/config"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/ratelimit"
	"sync"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// TelegramRateLimiter serializes outgoing bot traffic behind a global
// limiter plus a per-chat limiter so the Bot API never throttles us.
type TelegramRateLimiter struct {
	cfg           *config.TelegramConfig
	log           *logger.Logger
	bot           *telebot.Bot
	globalLimiter *rate.Limiter
	chatLimiters  *ratelimit.LimiterStore
	editMu        sync.Mutex
}

func NewTelegramRateLimiter(cfg *config.TelegramConfig, log *logger.Logger, bot *telebot.Bot) *TelegramRateLimiter {
	return &TelegramRateLimiter{
		cfg:           cfg,
		log:           log,
		bot:           bot,
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.MaxGlobalRequestPerSecond), cfg.MaxGlobalRequestPerSecond),
		chatLimiters:  ratelimit.NewLimiterStore(rate.Limit(cfg.MaxChatRequestPerSecond), cfg.MaxChatRequestPerSecond),
	}
}

func (t *TelegramRateLimiter) Send(ctx context.Context, c telebot.Context, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, c.Chat().ID); err != nil {
		return nil, err
	}
	return t.bot.Send(c.Chat(), what, opts...)
}

func (t *TelegramRateLimiter) SendToChat(ctx context.Context, chatID int64, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, chatID); err != nil {
		return nil, err
	}
	return t.bot.Send(&telebot.Chat{ID: chatID}, what, opts...)
}

func (t *TelegramRateLimiter) Edit(ctx context.Context, msg *telebot.Message, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, msg.Chat.ID); err != nil {
		return nil, err
	}

	t.editMu.Lock()
	defer t.editMu.Unlock()
	return t.bot.Edit(msg, what, opts...)
}

func (t *TelegramRateLimiter) Respond(ctx context.Context, c telebot.Context, resp ...*telebot.CallbackResponse) error {
	if err := t.checkRateLimit(ctx, c.Chat().ID); err != nil {
		return err
	}
	return c.Respond(resp...)
}

func (t *TelegramRateLimiter) checkRateLimit(ctx context.Context, chatID int64) error {
	chatLimiter := t.chatLimiters.GetLimiter(fmt.Sprintf("%d", chatID))

	if err := t.globalLimiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for global rate limit", logger.ErrorField(err))
		return err
	}
	if err := chatLimiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for chat rate limit", logger.ErrorField(err))
		return err
	}
	return nil
}
