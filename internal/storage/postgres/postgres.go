// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	db *pgxpool.Pool
}

var _ storage.Store = (*Storage)(nil)

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

const accountColumns = `
	id, name, email, password_hash, monthly_allowance, current_balance,
	total_savings, total_spent, notes, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.MonthlyAllowance, &a.CurrentBalance,
		&a.TotalSavings, &a.TotalSpent, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

const transactionColumns = `
	id, account_id, type, COALESCE(category, ''), amount, description, source, created_at`

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.AccountID, &typ, &t.Category, &t.Amount, &t.Description, &t.Source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(typ)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return txns, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// === AccountStorage ===

func (s *Storage) FindAccount(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return acc, err
}

func (s *Storage) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return acc, nil
}

func (s *Storage) UpdateNotes(ctx context.Context, id int64, notes string) error {
	tag, err := s.db.Exec(ctx, `UPDATE accounts SET notes = $2, updated_at = now() WHERE id = $1`, id, notes)
	if err != nil {
		return fmt.Errorf("update notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *Storage) UpdateProfile(ctx context.Context, id int64, name string, allowance decimal.Decimal) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET name = $2, monthly_allowance = $3, updated_at = now()
		WHERE id = $1
	`, id, name, allowance)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// === LedgerStorage ===

func (s *Storage) InTx(ctx context.Context, fn func(tx storage.LedgerTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&ledgerTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type ledgerTx struct {
	q querier
}

func (t *ledgerTx) UpsertAccount(ctx context.Context, in domain.NewAccount, opening domain.Balances) (int64, bool, error) {
	var id int64
	var created bool
	err := t.q.QueryRow(ctx, `
		INSERT INTO accounts (name, email, password_hash, monthly_allowance, current_balance, total_savings, total_spent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE
			SET name = EXCLUDED.name,
			    monthly_allowance = EXCLUDED.monthly_allowance,
			    updated_at = now()
		RETURNING id, (xmax = 0)
	`, in.Name, strings.ToLower(in.Email), in.PasswordHash, in.Allowance,
		opening.CurrentBalance, opening.TotalSavings, opening.TotalSpent).Scan(&id, &created)
	if err != nil {
		return 0, false, fmt.Errorf("upsert account: %w", err)
	}
	return id, created, nil
}

func (t *ledgerTx) LockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := scanAccount(t.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return acc, err
}

func (t *ledgerTx) ApplyDelta(ctx context.Context, id int64, d domain.BalanceDelta) (*domain.Account, error) {
	acc, err := scanAccount(t.q.QueryRow(ctx, `
		UPDATE accounts
		SET current_balance = current_balance + $2,
		    total_savings = total_savings + $3,
		    total_spent = total_spent + $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns,
		id, d.Balance, d.Savings, d.Spent))
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("apply balance delta: %w", err)
	}
	return acc, err
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO transactions (account_id, type, category, amount, description, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, txn.AccountID, string(txn.Type), nullIfEmpty(txn.Category), txn.Amount, txn.Description, txn.Source).
		Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpsertCategorySummary adds to the row in a single statement, so concurrent
// callers on the same pair serialise on the row instead of losing updates.
func (t *ledgerTx) UpsertCategorySummary(ctx context.Context, accountID int64, category string, amount decimal.Decimal) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO category_summaries (account_id, category, total_amount, transaction_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (account_id, category) DO UPDATE
			SET total_amount = category_summaries.total_amount + EXCLUDED.total_amount,
			    transaction_count = category_summaries.transaction_count + 1
	`, accountID, category, amount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("upsert category summary: %w", err)
	}
	return nil
}

func (t *ledgerTx) SeedCategorySummaries(ctx context.Context, accountID int64, categories []string) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO category_summaries (account_id, category)
		SELECT $1, unnest($2::text[])
		ON CONFLICT (account_id, category) DO NOTHING
	`, accountID, categories)
	if err != nil {
		return fmt.Errorf("seed category summaries: %w", err)
	}
	return nil
}

// === TransactionStorage ===

func (s *Storage) ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

func (s *Storage) ListTransactionsByCategory(ctx context.Context, accountID int64, category string) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1 AND type = 'expense' AND category = $2
		ORDER BY created_at DESC, id DESC
	`, accountID, category)
	if err != nil {
		return nil, fmt.Errorf("list transactions by category: %w", err)
	}
	return scanTransactions(rows)
}

// === SummaryStorage ===

func (s *Storage) ListCategorySummaries(ctx context.Context, accountID int64) ([]domain.CategorySummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT account_id, category, total_amount, transaction_count
		FROM category_summaries
		WHERE account_id = $1
		ORDER BY total_amount DESC, category
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list category summaries: %w", err)
	}
	defer rows.Close()

	summaries := []domain.CategorySummary{}
	for rows.Next() {
		var cs domain.CategorySummary
		if err := rows.Scan(&cs.AccountID, &cs.Category, &cs.TotalAmount, &cs.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan category summary: %w", err)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

func (s *Storage) FindCategorySummary(ctx context.Context, accountID int64, category string) (*domain.CategorySummary, error) {
	var cs domain.CategorySummary
	err := s.db.QueryRow(ctx, `
		SELECT account_id, category, total_amount, transaction_count
		FROM category_summaries
		WHERE account_id = $1 AND category = $2
	`, accountID, category).Scan(&cs.AccountID, &cs.Category, &cs.TotalAmount, &cs.TransactionCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find category summary: %w", err)
	}
	return &cs, nil
}

// === ChatStorage ===

func (s *Storage) AppendChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO chat_messages (account_id, sender, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, msg.AccountID, string(msg.Sender), msg.Message).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *Storage) ListChatMessages(ctx context.Context, accountID int64, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, sender, message, created_at FROM (
			SELECT id, account_id, sender, message, created_at
			FROM chat_messages
			WHERE account_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) newest
		ORDER BY created_at, id
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var sender string
		if err := rows.Scan(&m.ID, &m.AccountID, &sender, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Sender = domain.ChatSender(sender)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// === TelegramLinkStorage ===

func (s *Storage) LinkTelegramChat(ctx context.Context, chatID int64, accountID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO telegram_links (chat_id, account_id)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET account_id = EXCLUDED.account_id, linked_at = now()
	`, chatID, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("link telegram chat: %w", err)
	}
	slog.Debug("Telegram chat linked", "chat_id", chatID, "account_id", accountID)
	return nil
}

func (s *Storage) FindAccountByTelegramChat(ctx context.Context, chatID int64) (int64, error) {
	var accountID int64
	err := s.db.QueryRow(ctx, `SELECT account_id FROM telegram_links WHERE chat_id = $1`, chatID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("find telegram link: %w", err)
	}
	return accountID, nil
}
