package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"care-ats/internal/actionable"
	"care-ats/internal/logger"
	"care-ats/internal/processor"
	"care-ats/internal/sender"
)

// Telegram sends candidate messages and operator alerts through a bot.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *logger.Logger
}

func NewTelegram(token string, chatID int64, log *logger.Logger) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint, chatID, &http.Client{}, log)
}

// NewTelegramWithEndpoint points the bot at a different Bot API server.
// endpoint is a format string taking the token and the method name.
func NewTelegramWithEndpoint(token, endpoint string, chatID int64, hc *http.Client, log *logger.Logger) (*Telegram, error) {
	if log == nil {
		log = logger.Discard()
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, log: log.Component("telegram")}, nil
}

// Send delivers a candidate message. msg.To is a Telegram chat ID; empty
// means the operator chat.
func (t *Telegram) Send(ctx context.Context, msg sender.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID := t.chatID
	if msg.To != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(msg.To), 10, 64)
		if err != nil {
			return fmt.Errorf("telegram: recipient %q is not a chat id", msg.To)
		}
		chatID = id
	}
	_, err := t.bot.Send(tgbotapi.NewMessage(chatID, msg.Text))
	return err
}

// Alert posts an operator card to the operator chat.
func (t *Telegram) Alert(ctx context.Context, card actionable.ActionCard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("⚠️ <b>%s</b>\n%s\n<i>%s</i>",
		html.EscapeString(card.Insight), html.EscapeString(card.Action), html.EscapeString(card.Impact))
	return t.sendHTML(text)
}

// CallProcessed tells the operator about new candidates and failed calls.
// Delivery errors are logged, never returned to the pipeline.
func (t *Telegram) CallProcessed(ctx context.Context, res processor.Result) {
	var text string
	switch {
	case res.NewCandidate:
		text = fmt.Sprintf("🆕 <b>New candidate</b> from call %s\n%s",
			html.EscapeString(res.CallID), html.EscapeString(res.Message))
	case res.Status == processor.StatusError:
		text = fmt.Sprintf("❌ Call %s: %s\n%s",
			html.EscapeString(res.CallID), html.EscapeString(res.LedgerStatus), html.EscapeString(res.Message))
	default:
		return
	}
	if res.Degraded {
		text += "\n(stored with minimal fields)"
	}
	if err := t.sendHTML(text); err != nil {
		t.log.WithField("call_id", res.CallID).WithField("error", err.Error()).Warn("telegram notify failed")
	}
}

func (t *Telegram) sendHTML(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := t.bot.Send(msg)
	return err
}
