// internal/events/events.go
package events

import (
	"context"
	"time"

	"finance-tracker/internal/domain"
)

// TransactionEvent is emitted after a transaction has been committed.
type TransactionEvent struct {
	TransactionID  int64     `json:"transaction_id"`
	AccountID      int64     `json:"account_id"`
	Type           string    `json:"type"`
	Category       string    `json:"category,omitempty"`
	Amount         string    `json:"amount"`
	CurrentBalance string    `json:"current_balance"`
	TotalSavings   string    `json:"total_savings"`
	TotalSpent     string    `json:"total_spent"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func NewTransactionEvent(t domain.Transaction, acc domain.Account) TransactionEvent {
	return TransactionEvent{
		TransactionID:  t.ID,
		AccountID:      t.AccountID,
		Type:           string(t.Type),
		Category:       t.Category,
		Amount:         t.Amount.StringFixed(domain.MoneyPlaces),
		CurrentBalance: acc.CurrentBalance.StringFixed(domain.MoneyPlaces),
		TotalSavings:   acc.TotalSavings.StringFixed(domain.MoneyPlaces),
		TotalSpent:     acc.TotalSpent.StringFixed(domain.MoneyPlaces),
		OccurredAt:     t.CreatedAt,
	}
}

// RoutingKey is "transaction.income" or "transaction.expense".
func (e TransactionEvent) RoutingKey() string {
	return "transaction." + e.Type
}

type Publisher interface {
	PublishTransaction(ctx context.Context, e TransactionEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishTransaction(context.Context, TransactionEvent) error { return nil }
func (NopPublisher) Close() error                                               { return nil }
