// internal/ledger/engine.go
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"finance-tracker/internal/catalog"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/events"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// Store is the part of the storage layer the ledger reads and writes.
type Store interface {
	storage.AccountStorage
	storage.LedgerStorage
	storage.TransactionStorage
	storage.SummaryStorage
}

type Options struct {
	// SavingsDeduction defaults to DefaultSavingsDeduction when zero.
	SavingsDeduction decimal.Decimal
	// Publisher defaults to events.NopPublisher.
	Publisher events.Publisher
}

// Engine applies the income and expense rules. Every mutating call is a single
// store unit, so balance checks and the writes they guard cannot interleave with
// another call on the same account.
type Engine struct {
	store      Store
	catalog    *catalog.Catalog
	aggregator *Aggregator
	savings    decimal.Decimal
	publisher  events.Publisher
}

func NewEngine(store Store, cat *catalog.Catalog, opts Options) *Engine {
	if opts.SavingsDeduction.IsZero() {
		opts.SavingsDeduction = DefaultSavingsDeduction
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	return &Engine{
		store:      store,
		catalog:    cat,
		aggregator: NewAggregator(store, store),
		savings:    opts.SavingsDeduction,
		publisher:  opts.Publisher,
	}
}

func (e *Engine) Aggregator() *Aggregator {
	return e.aggregator
}

func (e *Engine) SavingsDeduction() decimal.Decimal {
	return e.savings
}

// CreateAccount opens an account, or updates name and allowance in place when the
// email is already registered. created reports which of the two happened.
func (e *Engine) CreateAccount(ctx context.Context, in domain.NewAccount) (id int64, created bool, err error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return 0, false, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return 0, false, fmt.Errorf("%w: email is invalid", domain.ErrInvalidInput)
	}
	if err := domain.ValidateAmount(in.Allowance); err != nil {
		return 0, false, err
	}

	opening := OpeningBalances(in.Allowance, e.savings)
	if !opening.CurrentBalance.IsPositive() {
		slog.Warn("Allowance does not exceed savings deduction",
			"email", in.Email, "allowance", in.Allowance.StringFixed(2), "savings_deduction", e.savings.StringFixed(2))
	}

	err = e.store.InTx(ctx, func(tx storage.LedgerTx) error {
		id, created, err = tx.UpsertAccount(ctx, in, opening)
		if err != nil {
			return err
		}
		return tx.SeedCategorySummaries(ctx, id, e.catalog.Keys())
	})
	if err != nil {
		return 0, false, err
	}

	slog.Info("Account saved", "account_id", id, "created", created)
	return id, created, nil
}

// RecordExpense debits the balance. A balance below amount is reported as a
// rejected result, not an error, and nothing is written.
func (e *Engine) RecordExpense(ctx context.Context, accountID int64, category string, amount decimal.Decimal, description string) (domain.ExpenseResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.ExpenseResult{}, err
	}
	category = catalog.Normalize(category)
	if !e.catalog.Contains(category) {
		return domain.ExpenseResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}

	var result domain.ExpenseResult
	err := e.store.InTx(ctx, func(tx storage.LedgerTx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}

		if acc.CurrentBalance.LessThan(amount) {
			result = domain.ExpenseResult{
				Accepted: false,
				Reason:   domain.RejectInsufficientBalance,
				Message: fmt.Sprintf("Insufficient balance: %s available, %s requested",
					acc.CurrentBalance.StringFixed(2), amount.StringFixed(2)),
				Account: acc,
			}
			return nil
		}

		txn := &domain.Transaction{
			AccountID:   accountID,
			Type:        domain.TransactionExpense,
			Category:    category,
			Amount:      amount,
			Description: strings.TrimSpace(description),
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		updated, err := tx.ApplyDelta(ctx, accountID, domain.BalanceDelta{
			Balance: amount.Neg(),
			Spent:   amount,
		})
		if err != nil {
			return err
		}

		if err := e.aggregator.upsertTx(ctx, tx, accountID, category, amount); err != nil {
			return err
		}

		result = domain.ExpenseResult{
			Accepted:    true,
			Message:     "Expense recorded",
			Account:     updated,
			Transaction: txn,
		}
		return nil
	})
	if err != nil {
		return domain.ExpenseResult{}, err
	}

	if !result.Accepted {
		slog.Info("Expense rejected", "account_id", accountID, "category", category,
			"amount", amount.StringFixed(2), "reason", result.Reason)
		return result, nil
	}

	slog.Info("Expense recorded", "account_id", accountID, "category", category,
		"amount", amount.StringFixed(2), "transaction_id", result.Transaction.ID)
	e.publish(ctx, *result.Transaction, *result.Account)
	return result, nil
}

// RecordIncome credits half of amount to the balance and half to savings.
func (e *Engine) RecordIncome(ctx context.Context, accountID int64, amount decimal.Decimal, source, description string) (domain.IncomeResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.IncomeResult{}, err
	}
	balanceDelta, savingsDelta := SplitIncome(amount)

	var result domain.IncomeResult
	err := e.store.InTx(ctx, func(tx storage.LedgerTx) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}

		txn := &domain.Transaction{
			AccountID:   accountID,
			Type:        domain.TransactionIncome,
			Amount:      amount,
			Source:      strings.TrimSpace(source),
			Description: strings.TrimSpace(description),
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		updated, err := tx.ApplyDelta(ctx, accountID, domain.BalanceDelta{
			Balance: balanceDelta,
			Savings: savingsDelta,
		})
		if err != nil {
			return err
		}

		result = domain.IncomeResult{
			Accepted:     true,
			Message:      "Income recorded",
			BalanceDelta: balanceDelta,
			SavingsDelta: savingsDelta,
			Account:      updated,
			Transaction:  txn,
		}
		return nil
	})
	if err != nil {
		return domain.IncomeResult{}, err
	}

	slog.Info("Income recorded", "account_id", accountID, "amount", amount.StringFixed(2),
		"source", result.Transaction.Source, "transaction_id", result.Transaction.ID)
	e.publish(ctx, *result.Transaction, *result.Account)
	return result, nil
}

func (e *Engine) UpdateNotes(ctx context.Context, accountID int64, notes string) error {
	return e.store.UpdateNotes(ctx, accountID, notes)
}

// UpdateProfile changes name and allowance. Balances are not recomputed.
func (e *Engine) UpdateProfile(ctx context.Context, accountID int64, name string, allowance decimal.Decimal) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if err := domain.ValidateAmount(allowance); err != nil {
		return err
	}
	return e.store.UpdateProfile(ctx, accountID, name, allowance)
}

// publish runs after commit; a broker failure must not undo a recorded transaction.
func (e *Engine) publish(ctx context.Context, t domain.Transaction, acc domain.Account) {
	if err := e.publisher.PublishTransaction(ctx, events.NewTransactionEvent(t, acc)); err != nil {
		slog.Error("Failed to publish transaction event", "error", err,
			"account_id", t.AccountID, "transaction_id", t.ID)
	}
}
