// internal/ledger/aggregator.go
package ledger

import (
	"context"
	"fmt"

	"finance-tracker/internal/catalog"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// Aggregator maintains the per-(account, category) expense totals.
type Aggregator struct {
	ledger    storage.LedgerStorage
	summaries storage.SummaryStorage
}

func NewAggregator(ledger storage.LedgerStorage, summaries storage.SummaryStorage) *Aggregator {
	return &Aggregator{ledger: ledger, summaries: summaries}
}

// Upsert adds one expense of amount to the (accountID, category) summary in its own unit.
func (a *Aggregator) Upsert(ctx context.Context, accountID int64, category string, amount decimal.Decimal) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	category = catalog.Normalize(category)
	if category == "" {
		return fmt.Errorf("%w: category is required", domain.ErrInvalidInput)
	}
	return a.ledger.InTx(ctx, func(tx storage.LedgerTx) error {
		return a.upsertTx(ctx, tx, accountID, category, amount)
	})
}

func (a *Aggregator) upsertTx(ctx context.Context, tx storage.LedgerTx, accountID int64, category string, amount decimal.Decimal) error {
	return tx.UpsertCategorySummary(ctx, accountID, category, amount)
}

// ListByAccount returns the summaries ranked by total_amount descending.
func (a *Aggregator) ListByAccount(ctx context.Context, accountID int64) ([]domain.CategorySummary, error) {
	return a.summaries.ListCategorySummaries(ctx, accountID)
}
