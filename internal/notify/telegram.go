package notify

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
)

// Notifier is the one-way message channel the engine publishes alarm
// transitions to.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// telegramRatePerSecond caps outgoing messages to stay under bot API limits.
const telegramRatePerSecond = 1

// sendTimeout bounds a single delivery attempt.
const sendTimeout = 10 * time.Second

// Telegram delivers notifications to a fixed chat via the bot API.
type Telegram struct {
	// bot is the shared bot client.
	bot *bot.Bot
	// chatID is the destination chat.
	chatID int64
	// limiter throttles outgoing messages.
	limiter *rate.Limiter
}

// NewTelegram creates a notifier sending to the given chat. The bot client
// is shared with the chat command interface so the process keeps a single
// session.
func NewTelegram(b *bot.Bot, chatID int64) *Telegram {
	return &Telegram{
		bot:     b,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(telegramRatePerSecond), telegramRatePerSecond),
	}
}

// Notify sends the text to the configured chat without blocking the caller.
// Failures are logged and swallowed.
func (t *Telegram) Notify(ctx context.Context, text string) {
	// Detach from the caller's lifetime: an ingestion request must not wait
	// on the bot API.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()

		if err := t.limiter.Wait(sendCtx); err != nil {
			logger.WarnKV(ctx, "Notification dropped by rate limiter", "error", err)

			return
		}

		_, err := t.bot.SendMessage(sendCtx, &bot.SendMessageParams{
			ChatID: t.chatID,
			Text:   text,
		})
		if err != nil {
			logger.ErrorKV(ctx, "Failed to deliver notification", "chat_id", t.chatID, "error", err)
		}
	}()
}

// Noop is a notifier that discards all messages. Used when no bot token is
// configured and in tests.
type Noop struct{}

// Notify discards the message.
func (Noop) Notify(context.Context, string) {}
