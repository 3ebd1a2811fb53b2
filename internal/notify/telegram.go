package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"matchpoller/internal/client"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers notifications as Telegram messages to a single chat.
// Sends are rate-limited to stay under the ~20 messages/sec Telegram cap.
type Telegram struct {
	api     telegramAPI
	chatID  int64
	limiter *rate.Limiter
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newTelegram(api, chatID), nil
}

func newTelegram(api telegramAPI, chatID int64) *Telegram {
	return &Telegram{
		api:     api,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(20), 1),
	}
}

// MatchFound implements Notifier.
func (t *Telegram) MatchFound(ctx context.Context, check client.MatchCheck) error {
	return t.send(ctx, FormatMatchFound(check))
}

// CountIncreased implements Notifier.
func (t *Telegram) CountIncreased(ctx context.Context, previous, newCount int) error {
	return t.send(ctx, FormatCountIncrease(previous, newCount))
}

// ServiceActive implements Notifier.
func (t *Telegram) ServiceActive(ctx context.Context) error {
	return t.send(ctx, FormatServiceActive())
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
