package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/catalog"
	"finance-tracker/internal/chat"
	"finance-tracker/internal/config"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/storage/memory"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fixture struct {
	bot    *Bot
	api    *fakeAPI
	store  *memory.Storage
	tokens *auth.TokenService
	id     int64
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStorage()
	cat := catalog.Default()
	engine := ledger.NewEngine(store, cat, ledger.Options{})
	projector := ledger.NewProjector(store, cat, 0)

	id, _, err := engine.CreateAccount(context.Background(), domain.NewAccount{
		Name: "Bot", Email: "bot@x.com", Allowance: decimal.RequireFromString("300"),
	})
	require.NoError(t, err)

	tokens := auth.NewTokenService(config.Config{JWTSecret: "telegram-test-secret", JWTExpiresIn: time.Hour})
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
	return fixture{
		bot:    NewBot(api, chat.NewAssistant(engine, projector, store), store, tokens),
		api:    api,
		store:  store,
		tokens: tokens,
		id:     id,
	}
}

func TestHandleMessageLinking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.Equal(t, linkHint, f.bot.HandleMessage(ctx, 100, "/balance"))
	assert.Equal(t, badTokenText, f.bot.HandleMessage(ctx, 100, "/link garbage"))

	orphan, err := f.tokens.GenerateToken(999)
	require.NoError(t, err)
	assert.Equal(t, badTokenText, f.bot.HandleMessage(ctx, 100, "/link "+orphan))

	token, err := f.tokens.GenerateToken(f.id)
	require.NoError(t, err)
	assert.Contains(t, f.bot.HandleMessage(ctx, 100, "/link "+token), "Linked to account")

	assert.Contains(t, f.bot.HandleMessage(ctx, 100, "/balance"), "Balance: 200.00")
	assert.Contains(t, f.bot.HandleMessage(ctx, 100, "/spend weekend 50 cinema"), "Balance: 150.00")
	assert.Equal(t, linkHint, f.bot.HandleMessage(ctx, 200, "/balance"), "other chats stay unlinked")
}

func TestHandleMessageStartDeepLink(t *testing.T) {
	f := setup(t)
	token, err := f.tokens.GenerateToken(f.id)
	require.NoError(t, err)

	assert.Contains(t, f.bot.HandleMessage(context.Background(), 5, "/start "+token), "Linked")
	assert.True(t, strings.HasPrefix(f.bot.HandleMessage(context.Background(), 5, "/start"), "Commands:"))
}

func TestRunRepliesUntilCancelled(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	f.api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "/help", Chat: &tgbotapi.Chat{ID: 9}}}
	f.api.updates <- tgbotapi.Update{}

	require.Eventually(t, func() bool { return len(f.api.messages()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	sent := f.api.messages()
	assert.Equal(t, int64(9), sent[0].ChatID)
	assert.Equal(t, linkHint, sent[0].Text)
	assert.True(t, f.api.stopped)
}

const webhookSecret = "hook-secret_42"

func webhookRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/telegram", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretTokenHeader, secret)
	}
	return req
}

func TestWebhookHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := setup(t)
	r := gin.New()
	r.POST("/telegram", f.bot.WebhookHandler(webhookSecret))

	body := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/balance"}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, webhookRequest(body, webhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	sent := f.api.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].ChatID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, webhookRequest("{", webhookSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsUpdatesWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.store.LinkTelegramChat(ctx, 555, f.id))

	r := gin.New()
	r.POST("/telegram", f.bot.WebhookHandler(webhookSecret))

	forged := `{"update_id":7,"message":{"message_id":1,"date":0,"chat":{"id":555,"type":"private"},"text":"/spend food 150"}}`
	for name, secret := range map[string]string{"missing": "", "wrong": "guess"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, webhookRequest(forged, secret))
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}

	assert.Empty(t, f.api.messages())
	acc, err := f.store.FindAccount(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, "200.00", acc.CurrentBalance.StringFixed(2))
	assert.True(t, acc.TotalSpent.IsZero())
	txns, err := f.store.ListTransactions(ctx, f.id, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestWebhookWithoutConfiguredSecretRejectsAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := setup(t)
	r := gin.New()
	r.POST("/telegram", f.bot.WebhookHandler(""))

	body := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/help"}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, webhookRequest(body, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.api.messages())
}
