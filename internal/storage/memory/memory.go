// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

type summaryKey struct {
	accountID int64
	category  string
}

// Storage keeps the ledger in process memory. InTx holds the write lock for the
// whole unit and buffers writes until fn succeeds, so a failed unit leaves no trace.
type Storage struct {
	mu sync.RWMutex

	nextAccountID int64
	nextTxnID     int64
	nextChatID    int64

	accounts  map[int64]domain.Account
	emails    map[string]int64
	txns      []domain.Transaction
	summaries map[summaryKey]domain.CategorySummary
	chat      []domain.ChatMessage
	links     map[int64]int64

	now func() time.Time
}

var _ storage.Store = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		accounts:  make(map[int64]domain.Account),
		emails:    make(map[string]int64),
		summaries: make(map[summaryKey]domain.CategorySummary),
		links:     make(map[int64]int64),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it to get distinct, ordered timestamps.
func (s *Storage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// === AccountStorage ===

func (s *Storage) FindAccount(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (s *Storage) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	acc := s.accounts[id]
	return &acc, nil
}

func (s *Storage) UpdateNotes(ctx context.Context, id int64, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.Notes = notes
	acc.UpdatedAt = s.now()
	s.accounts[id] = acc
	return nil
}

func (s *Storage) UpdateProfile(ctx context.Context, id int64, name string, allowance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.Name = name
	acc.MonthlyAllowance = allowance
	acc.UpdatedAt = s.now()
	s.accounts[id] = acc
	return nil
}

// === LedgerStorage ===

func (s *Storage) InTx(ctx context.Context, fn func(tx storage.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &ledgerTx{
		s:         s,
		accounts:  make(map[int64]domain.Account),
		emails:    make(map[string]int64),
		summaries: make(map[summaryKey]domain.CategorySummary),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type ledgerTx struct {
	s *Storage

	accounts  map[int64]domain.Account
	emails    map[string]int64
	txns      []domain.Transaction
	summaries map[summaryKey]domain.CategorySummary
}

func (tx *ledgerTx) commit() {
	for id, acc := range tx.accounts {
		tx.s.accounts[id] = acc
	}
	for email, id := range tx.emails {
		tx.s.emails[email] = id
	}
	tx.s.txns = append(tx.s.txns, tx.txns...)
	for k, sum := range tx.summaries {
		tx.s.summaries[k] = sum
	}
}

func (tx *ledgerTx) account(id int64) (domain.Account, bool) {
	if acc, ok := tx.accounts[id]; ok {
		return acc, true
	}
	acc, ok := tx.s.accounts[id]
	return acc, ok
}

func (tx *ledgerTx) accountIDByEmail(email string) (int64, bool) {
	if id, ok := tx.emails[email]; ok {
		return id, true
	}
	id, ok := tx.s.emails[email]
	return id, ok
}

func (tx *ledgerTx) summary(k summaryKey) (domain.CategorySummary, bool) {
	if sum, ok := tx.summaries[k]; ok {
		return sum, true
	}
	sum, ok := tx.s.summaries[k]
	return sum, ok
}

func (tx *ledgerTx) UpsertAccount(ctx context.Context, in domain.NewAccount, opening domain.Balances) (int64, bool, error) {
	email := strings.ToLower(in.Email)
	now := tx.s.now()

	if id, ok := tx.accountIDByEmail(email); ok {
		acc, _ := tx.account(id)
		acc.Name = in.Name
		acc.MonthlyAllowance = in.Allowance
		acc.UpdatedAt = now
		tx.accounts[id] = acc
		return id, false, nil
	}

	tx.s.nextAccountID++
	id := tx.s.nextAccountID
	tx.accounts[id] = domain.Account{
		ID:               id,
		Name:             in.Name,
		Email:            email,
		PasswordHash:     in.PasswordHash,
		MonthlyAllowance: in.Allowance,
		CurrentBalance:   opening.CurrentBalance,
		TotalSavings:     opening.TotalSavings,
		TotalSpent:       opening.TotalSpent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	tx.emails[email] = id
	return id, true, nil
}

func (tx *ledgerTx) LockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	acc, ok := tx.account(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (tx *ledgerTx) ApplyDelta(ctx context.Context, id int64, d domain.BalanceDelta) (*domain.Account, error) {
	acc, ok := tx.account(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(d.Balance)
	acc.TotalSavings = acc.TotalSavings.Add(d.Savings)
	acc.TotalSpent = acc.TotalSpent.Add(d.Spent)
	acc.UpdatedAt = tx.s.now()
	tx.accounts[id] = acc
	return &acc, nil
}

func (tx *ledgerTx) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	if _, ok := tx.account(t.AccountID); !ok {
		return domain.ErrAccountNotFound
	}
	tx.s.nextTxnID++
	t.ID = tx.s.nextTxnID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = tx.s.now()
	}
	tx.txns = append(tx.txns, *t)
	return nil
}

func (tx *ledgerTx) UpsertCategorySummary(ctx context.Context, accountID int64, category string, amount decimal.Decimal) error {
	if _, ok := tx.account(accountID); !ok {
		return domain.ErrAccountNotFound
	}
	k := summaryKey{accountID: accountID, category: category}
	sum, ok := tx.summary(k)
	if !ok {
		sum = domain.CategorySummary{AccountID: accountID, Category: category}
	}
	sum.TotalAmount = sum.TotalAmount.Add(amount)
	sum.TransactionCount++
	tx.summaries[k] = sum
	return nil
}

func (tx *ledgerTx) SeedCategorySummaries(ctx context.Context, accountID int64, categories []string) error {
	for _, c := range categories {
		k := summaryKey{accountID: accountID, category: c}
		if _, ok := tx.summary(k); ok {
			continue
		}
		tx.summaries[k] = domain.CategorySummary{AccountID: accountID, Category: c}
	}
	return nil
}

// === TransactionStorage ===

func (s *Storage) ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.newestFirst(func(t domain.Transaction) bool { return t.AccountID == accountID })
	if offset >= len(all) {
		return []domain.Transaction{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Storage) ListTransactionsByCategory(ctx context.Context, accountID int64, category string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.newestFirst(func(t domain.Transaction) bool {
		return t.AccountID == accountID && t.Type == domain.TransactionExpense && t.Category == category
	}), nil
}

func (s *Storage) newestFirst(keep func(domain.Transaction) bool) []domain.Transaction {
	out := []domain.Transaction{}
	for i := len(s.txns) - 1; i >= 0; i-- {
		if keep(s.txns[i]) {
			out = append(out, s.txns[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// === SummaryStorage ===

func (s *Storage) ListCategorySummaries(ctx context.Context, accountID int64) ([]domain.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.CategorySummary{}
	for k, sum := range s.summaries {
		if k.accountID == accountID {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalAmount.Cmp(out[j].TotalAmount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Storage) FindCategorySummary(ctx context.Context, accountID int64, category string) (*domain.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.summaries[summaryKey{accountID: accountID, category: category}]
	if !ok {
		return nil, nil
	}
	return &sum, nil
}

// === ChatStorage ===

func (s *Storage) AppendChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[msg.AccountID]; !ok {
		return domain.ErrAccountNotFound
	}
	s.nextChatID++
	msg.ID = s.nextChatID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.chat = append(s.chat, *msg)
	return nil
}

func (s *Storage) ListChatMessages(ctx context.Context, accountID int64, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest []domain.ChatMessage
	for i := len(s.chat) - 1; i >= 0 && len(newest) < limit; i-- {
		if s.chat[i].AccountID == accountID {
			newest = append(newest, s.chat[i])
		}
	}

	out := make([]domain.ChatMessage, len(newest))
	for i, m := range newest {
		out[len(newest)-1-i] = m
	}
	return out, nil
}

// === TelegramLinkStorage ===

func (s *Storage) LinkTelegramChat(ctx context.Context, chatID int64, accountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return domain.ErrAccountNotFound
	}
	s.links[chatID] = accountID
	return nil
}

func (s *Storage) FindAccountByTelegramChat(ctx context.Context, chatID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.links[chatID], nil
}
