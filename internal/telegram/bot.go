// internal/telegram/bot.go
package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/chat"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	linkHint = "This chat is not linked to an account yet.\n" +
		"Log in to the web app, copy your token and send: /link <token>"
	badTokenText = "That token is invalid or expired. Log in again and send /link <token>."
	failureText  = "Something went wrong. Please try again later."
)

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api       API
	assistant *chat.Assistant
	links     storage.TelegramLinkStorage
	tokens    *auth.TokenService
}

func NewBot(api API, assistant *chat.Assistant, links storage.TelegramLinkStorage, tokens *auth.TokenService) *Bot {
	return &Bot{api: api, assistant: assistant, links: links, tokens: tokens}
}

// HandleMessage returns the reply for one incoming chat message.
func (b *Bot) HandleMessage(ctx context.Context, chatID int64, text string) string {
	text = chat.Normalize(text)
	fields := strings.Fields(text)

	if len(fields) == 2 && (isCommand(fields[0], "/link") || isCommand(fields[0], "/start")) {
		return b.link(ctx, chatID, fields[1])
	}

	accountID, err := b.links.FindAccountByTelegramChat(ctx, chatID)
	if err != nil {
		slog.Error("Failed to look up Telegram link", "error", err, "chat_id", chatID)
		return failureText
	}
	if accountID == 0 {
		return linkHint
	}

	reply, err := b.assistant.Handle(ctx, accountID, text)
	switch {
	case err == nil:
		return reply.Message
	case errors.Is(err, domain.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, domain.ErrAccountNotFound):
		return "The linked account no longer exists. " + linkHint
	default:
		slog.Error("Telegram message failed", "error", err, "chat_id", chatID, "account_id", accountID)
		return failureText
	}
}

func (b *Bot) link(ctx context.Context, chatID int64, token string) string {
	accountID, err := b.tokens.ParseToken(token)
	if err != nil {
		slog.Info("Telegram link rejected", "chat_id", chatID, "error", err)
		return badTokenText
	}
	if err := b.links.LinkTelegramChat(ctx, chatID, accountID); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return badTokenText
		}
		slog.Error("Failed to link Telegram chat", "error", err, "chat_id", chatID, "account_id", accountID)
		return failureText
	}

	slog.Info("Telegram chat linked", "chat_id", chatID, "account_id", accountID)
	return fmt.Sprintf("Linked to account #%d. Send /help to see what I can do.", accountID)
}

func isCommand(word, cmd string) bool {
	word = strings.ToLower(word)
	if at := strings.IndexByte(word, '@'); at > 0 {
		word = word[:at]
	}
	return word == cmd
}

// HandleUpdate answers a single update. Updates without a text message are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	slog.Info("Telegram message received", "chat_id", chatID)

	reply := b.HandleMessage(ctx, chatID, update.Message.Text)
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		slog.Error("Failed to send Telegram reply", "error", err, "chat_id", chatID)
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// SecretTokenHeader carries the secret_token given to setWebhook on every push.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler accepts updates pushed by Telegram. Requests whose secret
// header does not match secret are refused before the body is read.
func (b *Bot) WebhookHandler(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(SecretTokenHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			slog.Warn("Telegram webhook rejected", "remote_addr", c.ClientIP())
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			slog.Error("Failed to parse Telegram update", "error", err)
			c.Status(http.StatusBadRequest)
			return
		}
		b.HandleUpdate(c.Request.Context(), update)
		c.Status(http.StatusOK)
	}
}

// SetWebhook points Telegram at url. Telegram echoes secret in SecretTokenHeader.
// WebhookConfig in this client version has no secret_token field, so the call is
// made with explicit params.
func SetWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
