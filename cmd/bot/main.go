// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"finance-tracker/internal/app"
	"finance-tracker/internal/storage/postgres"
	"finance-tracker/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Long-polling Telegram bot. Use this or the webhook in cmd/api, not both.
func main() {
	cfg := app.MustLoadConfig()
	if cfg.TelegramToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN not set")
		os.Exit(1)
	}

	ctx, stop := app.SignalContext()
	defer stop()

	pool, err := app.OpenPool(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.NewStorage(pool)
	svc, err := app.NewServices(cfg, store)
	if err != nil {
		slog.Error("Failed to initialise services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("Failed to initialise Telegram bot", "error", err)
		os.Exit(1)
	}
	// polling and a webhook are mutually exclusive on Telegram's side
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Warn("Failed to delete webhook", "error", err)
	}

	slog.Info("Bot started", "bot", api.Self.UserName)
	bot := telegram.NewBot(api, svc.Assistant, store, svc.Tokens)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Bot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot stopped")
}
