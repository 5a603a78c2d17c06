// internal/storage/storage.go
package storage

import (
	"context"

	"finance-tracker/internal/domain"

	"github.com/shopspring/decimal"
)

type AccountStorage interface {
	// FindAccount returns domain.ErrAccountNotFound when there is no such account.
	FindAccount(ctx context.Context, id int64) (*domain.Account, error)
	// FindAccountByEmail returns nil, nil when the email is not registered.
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateNotes(ctx context.Context, id int64, notes string) error
	UpdateProfile(ctx context.Context, id int64, name string, allowance decimal.Decimal) error
}

// LedgerStorage runs fn as one atomic unit. The unit commits when fn returns nil
// and rolls back otherwise.
type LedgerStorage interface {
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the write side of the ledger, valid only inside InTx.
type LedgerTx interface {
	// UpsertAccount inserts a new account with the opening balances, or updates
	// name and allowance of the account already holding the email.
	UpsertAccount(ctx context.Context, acc domain.NewAccount, opening domain.Balances) (id int64, created bool, err error)
	// LockAccount reads the account and holds it exclusively until the unit ends.
	LockAccount(ctx context.Context, id int64) (*domain.Account, error)
	ApplyDelta(ctx context.Context, id int64, delta domain.BalanceDelta) (*domain.Account, error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	UpsertCategorySummary(ctx context.Context, accountID int64, category string, amount decimal.Decimal) error
	SeedCategorySummaries(ctx context.Context, accountID int64, categories []string) error
}

type TransactionStorage interface {
	ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error)
	ListTransactionsByCategory(ctx context.Context, accountID int64, category string) ([]domain.Transaction, error)
}

type SummaryStorage interface {
	// ListCategorySummaries is ordered by total_amount descending, then category.
	ListCategorySummaries(ctx context.Context, accountID int64) ([]domain.CategorySummary, error)
	// FindCategorySummary returns nil, nil when no row exists.
	FindCategorySummary(ctx context.Context, accountID int64, category string) (*domain.CategorySummary, error)
}

type ChatStorage interface {
	AppendChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	// ListChatMessages returns the newest limit messages, oldest first.
	ListChatMessages(ctx context.Context, accountID int64, limit int) ([]domain.ChatMessage, error)
}

type TelegramLinkStorage interface {
	LinkTelegramChat(ctx context.Context, chatID int64, accountID int64) error
	// FindAccountByTelegramChat returns 0, nil for an unlinked chat.
	FindAccountByTelegramChat(ctx context.Context, chatID int64) (int64, error)
}

// Store is everything the application needs from a backend.
type Store interface {
	AccountStorage
	LedgerStorage
	TransactionStorage
	SummaryStorage
	ChatStorage
	TelegramLinkStorage
}
