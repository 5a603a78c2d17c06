// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	_ "finance-tracker/docs"
	"finance-tracker/internal/app"
	"finance-tracker/internal/handler"
	"finance-tracker/internal/middleware"
	"finance-tracker/internal/storage/postgres"
	"finance-tracker/internal/telegram"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
)

// @title Finance Tracker API
// @version 1.0
// @description Personal finance ledger: allowance, expenses, income, savings and spending analytics.
// @BasePath /
// @SecurityDefinitions.apikey ApiKeyAuth
// @In header
// @Name Authorization
func main() {
	cfg := app.MustLoadConfig()

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

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())

	handler.RegisterRoutes(router, handler.Handlers{
		Auth:   handler.NewAuthHandler(svc.Engine, store, svc.Tokens),
		Ledger: handler.NewLedgerHandler(svc.Engine, svc.Projector),
		Chat:   handler.NewChatHandler(svc.Assistant),
	}, middleware.NewAuthMiddleware(svc.Tokens).RequireAuth())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.TelegramToken != "" && cfg.TelegramWebhookURL != "" {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			slog.Error("Failed to initialise Telegram bot", "error", err)
			os.Exit(1)
		}
		secret := cfg.TelegramWebhookSecret
		if secret == "" {
			secret = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		if err := telegram.SetWebhook(api, cfg.TelegramWebhookURL, secret); err != nil {
			slog.Error("Failed to set Telegram webhook", "error", err)
			os.Exit(1)
		}
		bot := telegram.NewBot(api, svc.Assistant, store, svc.Tokens)
		path := cfg.TelegramWebhookPath()
		router.POST(path, bot.WebhookHandler(secret))
		slog.Info("Telegram webhook set", "path", path, "bot", api.Self.UserName)
	}

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server started", "addr", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}
