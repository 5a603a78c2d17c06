// internal/chat/assistant.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/storage"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
	MaxMessageLength    = 1000

	recentCount = 5
)

const helpText = "Commands:\n" +
	"/balance - current balance, savings and spending\n" +
	"/status - share of the allowance spent\n" +
	"/spend <category> <amount> [description] - record an expense\n" +
	"/income <amount> [source] - record income, split between balance and savings\n" +
	"/recent - last transactions\n" +
	"/categories - expense categories\n" +
	"/help - this message"

const unknownCommandText = "I did not understand that. Send /help for the list of commands."

// Assistant answers chat commands against the ledger and keeps the conversation
// in the chat log.
type Assistant struct {
	engine    *ledger.Engine
	projector *ledger.Projector
	chats     storage.ChatStorage
}

func NewAssistant(engine *ledger.Engine, projector *ledger.Projector, chats storage.ChatStorage) *Assistant {
	return &Assistant{engine: engine, projector: projector, chats: chats}
}

// Handle logs text as the user's message, runs it and logs the reply.
// Ledger validation problems become reply text; store failures and unknown
// accounts are returned as errors. A reply that cannot be saved is still
// returned, with a zero ID.
func (a *Assistant) Handle(ctx context.Context, accountID int64, text string) (*domain.ChatMessage, error) {
	text = Normalize(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}
	if len([]rune(text)) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message is longer than %d characters", domain.ErrInvalidInput, MaxMessageLength)
	}

	if err := a.chats.AppendChatMessage(ctx, &domain.ChatMessage{
		AccountID: accountID,
		Sender:    domain.ChatSenderUser,
		Message:   text,
	}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	reply, err := a.Reply(ctx, accountID, text)
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		AccountID: accountID,
		Sender:    domain.ChatSenderAssistant,
		Message:   reply,
	}
	// the command may already be committed, so a lost reply is not an error
	if err := a.chats.AppendChatMessage(ctx, msg); err != nil {
		slog.Error("Failed to save assistant reply", "error", err, "account_id", accountID)
		msg.CreatedAt = time.Now()
	}
	return msg, nil
}

// History returns the newest limit messages, oldest first.
func (a *Assistant) History(ctx context.Context, accountID int64, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if _, err := a.projector.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return a.chats.ListChatMessages(ctx, accountID, limit)
}

// Reply runs one command without touching the chat log.
func (a *Assistant) Reply(ctx context.Context, accountID int64, text string) (string, error) {
	fields := strings.Fields(Normalize(text))
	if len(fields) == 0 {
		return unknownCommandText, nil
	}

	cmd := strings.ToLower(fields[0])
	// Telegram appends the bot name in groups: /balance@finance_bot
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	args := fields[1:]

	var (
		reply string
		err   error
	)
	switch cmd {
	case "/start", "/help":
		reply = helpText
	case "/balance":
		reply, err = a.balance(ctx, accountID)
	case "/status":
		reply, err = a.status(ctx, accountID)
	case "/spend":
		reply, err = a.spend(ctx, accountID, args)
	case "/income":
		reply, err = a.income(ctx, accountID, args)
	case "/recent":
		reply, err = a.recent(ctx, accountID)
	case "/categories":
		reply = a.categories()
	default:
		reply = unknownCommandText
	}
	if err == nil {
		return reply, nil
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Amount must be a positive number with at most 2 decimal places, e.g. 12.50", nil
	case errors.Is(err, domain.ErrUnknownCategory):
		return "Unknown category. " + a.categories(), nil
	case errors.Is(err, domain.ErrInvalidInput):
		return err.Error(), nil
	}
	slog.Error("Chat command failed", "error", err, "account_id", accountID, "command", cmd)
	return "", err
}

func (a *Assistant) balance(ctx context.Context, accountID int64) (string, error) {
	acc, err := a.projector.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Balance: %s\nSavings: %s\nSpent: %s\nMonthly allowance: %s",
		acc.CurrentBalance.StringFixed(2), acc.TotalSavings.StringFixed(2),
		acc.TotalSpent.StringFixed(2), acc.MonthlyAllowance.StringFixed(2)), nil
}

func (a *Assistant) status(ctx context.Context, accountID int64) (string, error) {
	an, err := a.projector.GetSpendingAnalysis(ctx, accountID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("You have spent %s of %s (%s%%). Status: %s",
		an.TotalSpent.StringFixed(2), an.MonthlyAllowance.StringFixed(2),
		an.SpentPercentage.StringFixed(2), an.Status), nil
}

func (a *Assistant) spend(ctx context.Context, accountID int64, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: /spend <category> <amount> [description]", nil
	}
	amount, err := domain.ParseMoney(args[1])
	if err != nil {
		return "", err
	}

	res, err := a.engine.RecordExpense(ctx, accountID, args[0], amount, strings.Join(args[2:], " "))
	if err != nil {
		return "", err
	}
	if !res.Accepted {
		return res.Message, nil
	}

	label := res.Transaction.Category
	if info, ok := a.projector.Catalog().Lookup(label); ok {
		label = info.Label
	}
	return fmt.Sprintf("Recorded %s on %s. Balance: %s",
		amount.StringFixed(2), label, res.Account.CurrentBalance.StringFixed(2)), nil
}

func (a *Assistant) income(ctx context.Context, accountID int64, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /income <amount> [source]", nil
	}
	amount, err := domain.ParseMoney(args[0])
	if err != nil {
		return "", err
	}

	res, err := a.engine.RecordIncome(ctx, accountID, amount, strings.Join(args[1:], " "), "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Recorded income %s: +%s to balance, +%s to savings. Balance: %s",
		amount.StringFixed(2), res.BalanceDelta.StringFixed(2), res.SavingsDelta.StringFixed(2),
		res.Account.CurrentBalance.StringFixed(2)), nil
}

func (a *Assistant) recent(ctx context.Context, accountID int64) (string, error) {
	page, err := a.projector.ListTransactions(ctx, accountID, recentCount, 0)
	if err != nil {
		return "", err
	}
	if len(page.Transactions) == 0 {
		return "No transactions yet.", nil
	}

	lines := []string{"Recent transactions:"}
	for _, t := range page.Transactions {
		line := fmt.Sprintf("%s %s", t.CreatedAt.Format("2006-01-02"), t.Amount.StringFixed(2))
		if t.Type == domain.TransactionIncome {
			line = fmt.Sprintf("%s +%s income", t.CreatedAt.Format("2006-01-02"), t.Amount.StringFixed(2))
			if t.Source != "" {
				line += " (" + t.Source + ")"
			}
		} else {
			line += " " + t.Category
			if t.Description != "" {
				line += " - " + t.Description
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func (a *Assistant) categories() string {
	items := a.projector.Catalog().All()
	parts := make([]string, len(items))
	for i, c := range items {
		parts[i] = fmt.Sprintf("%s (%s)", c.Key, c.Label)
	}
	return "Categories: " + strings.Join(parts, ", ")
}
