package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"notetracker/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramService delivers reminders through a Telegram bot.
// The bot session is established on first use and retried on later
// deliveries if Telegram was unreachable.
type TelegramService struct {
	token    string
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewTelegramService(token string, timeout time.Duration) *TelegramService {
	return NewTelegramServiceWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
}

// NewTelegramServiceWithEndpoint points the bot at a different Bot API server
func NewTelegramServiceWithEndpoint(token, endpoint string, client *http.Client) *TelegramService {
	return &TelegramService{token: token, endpoint: endpoint, client: client}
}

func (s *TelegramService) Name() string { return models.ChannelTelegram }

func (s *TelegramService) connect() (*tgbotapi.BotAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot != nil {
		return s.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(s.token, s.endpoint, s.client)
	if err != nil {
		return nil, err
	}
	s.bot = bot
	return bot, nil
}

// Deliver sends the reminder to the recipient's chat
func (s *TelegramService) Deliver(ctx context.Context, recipient models.Recipient, msg RenderedMessage) models.Outcome {
	return OutcomeFromError(s.send(ctx, recipient, msg))
}

func (s *TelegramService) send(ctx context.Context, recipient models.Recipient, msg RenderedMessage) error {
	if s.token == "" {
		return fmt.Errorf("%w: telegram token not configured", ErrConfigurationSkip)
	}
	chatID, err := strconv.ParseInt(recipient.Address, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid chat id %q", ErrPermanentDeliveryFailure, recipient.Address)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransientDeliveryFailure, err)
	}

	bot, err := s.connect()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientDeliveryFailure, err)
	}

	out := tgbotapi.NewMessage(chatID, fmt.Sprintf("🔔 <b>%s</b>\n%s\nDue: %s", msg.Subject, msg.SafeTitle, msg.DueLabel))
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := bot.Send(out); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return fmt.Errorf("%w: %v", ErrPermanentDeliveryFailure, err)
		}
		return fmt.Errorf("%w: %v", ErrTransientDeliveryFailure, err)
	}
	return nil
}
