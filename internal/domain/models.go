// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

type Account struct {
	ID               int64
	Name             string
	Email            string
	PasswordHash     string
	MonthlyAllowance decimal.Decimal
	CurrentBalance   decimal.Decimal
	TotalSavings     decimal.Decimal
	TotalSpent       decimal.Decimal
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAccount is the input of account creation. PasswordHash is optional.
type NewAccount struct {
	Name         string
	Email        string
	Allowance    decimal.Decimal
	PasswordHash string
}

// Balances are the derived money columns of an account.
type Balances struct {
	CurrentBalance decimal.Decimal
	TotalSavings   decimal.Decimal
	TotalSpent     decimal.Decimal
}

// BalanceDelta is added to an account's balances. Savings and spent deltas are never negative.
type BalanceDelta struct {
	Balance decimal.Decimal
	Savings decimal.Decimal
	Spent   decimal.Decimal
}

type Transaction struct {
	ID          int64
	AccountID   int64
	Type        TransactionType
	Category    string
	Amount      decimal.Decimal
	Description string
	Source      string
	CreatedAt   time.Time
}

type CategorySummary struct {
	AccountID        int64
	Category         string
	TotalAmount      decimal.Decimal
	TransactionCount int64
}

// CategoryInfo is a catalog entry: a stable key plus display metadata.
type CategoryInfo struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Icon  string `json:"icon" yaml:"icon"`
}

type ChatSender string

const (
	ChatSenderUser      ChatSender = "user"
	ChatSenderAssistant ChatSender = "assistant"
)

type ChatMessage struct {
	ID        int64
	AccountID int64
	Sender    ChatSender
	Message   string
	CreatedAt time.Time
}
