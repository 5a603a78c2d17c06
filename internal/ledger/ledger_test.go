package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finance-tracker/internal/catalog"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/events"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/storage"
	"finance-tracker/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]any{"want %s, got %s", want, got.StringFixed(2)}, msgAndArgs...)...)
}

// newStore returns a memory store whose clock ticks one second per write,
// so newest-first ordering is deterministic.
func newStore() *memory.Storage {
	s := memory.NewStorage()
	var mu sync.Mutex
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ts = ts.Add(time.Second)
		return ts
	})
	return s
}

type fixture struct {
	store     *memory.Storage
	engine    *ledger.Engine
	projector *ledger.Projector
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := newStore()
	cat := catalog.Default()
	return fixture{
		store:     store,
		engine:    ledger.NewEngine(store, cat, ledger.Options{}),
		projector: ledger.NewProjector(store, cat, 0),
	}
}

// openAccount creates an account whose current balance is exactly balance.
func (f fixture) openAccount(t *testing.T, email, balance string) int64 {
	t.Helper()
	allowance := money(balance).Add(ledger.DefaultSavingsDeduction)
	id, created, err := f.engine.CreateAccount(context.Background(), domain.NewAccount{
		Name: "Test", Email: email, Allowance: allowance,
	})
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func (f fixture) account(t *testing.T, id int64) *domain.Account {
	t.Helper()
	acc, err := f.store.FindAccount(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func (f fixture) summary(t *testing.T, id int64, category string) *domain.CategorySummary {
	t.Helper()
	s, err := f.store.FindCategorySummary(context.Background(), id, category)
	require.NoError(t, err)
	require.NotNil(t, s, "summary for %s", category)
	return s
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, created, err := f.engine.CreateAccount(ctx, domain.NewAccount{
		Name: "Demo", Email: "demo@x.com", Allowance: money("5000.00"),
	})
	require.NoError(t, err)
	assert.True(t, created)

	acc := f.account(t, id)
	assert.Equal(t, "Demo", acc.Name)
	assertMoney(t, "5000.00", acc.MonthlyAllowance)
	assertMoney(t, "4900.00", acc.CurrentBalance)
	assertMoney(t, "100.00", acc.TotalSavings)
	assertMoney(t, "0.00", acc.TotalSpent)

	summaries, err := f.engine.Aggregator().ListByAccount(ctx, id)
	require.NoError(t, err)
	require.Len(t, summaries, len(catalog.Default().Keys()))
	for _, s := range summaries {
		assert.True(t, s.TotalAmount.IsZero(), s.Category)
		assert.Zero(t, s.TransactionCount, s.Category)
	}
}

func TestCreateAccountExistingEmailUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.openAccount(t, "demo@x.com", "400.00")
	_, err := f.engine.RecordExpense(ctx, id, "food", money("50.00"), "")
	require.NoError(t, err)

	again, created, err := f.engine.CreateAccount(ctx, domain.NewAccount{
		Name: "Renamed", Email: " DEMO@x.com ", Allowance: money("900.00"),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	acc := f.account(t, id)
	assert.Equal(t, "Renamed", acc.Name)
	assertMoney(t, "900.00", acc.MonthlyAllowance)
	assertMoney(t, "350.00", acc.CurrentBalance, "balances are not reset")
	assertMoney(t, "100.00", acc.TotalSavings)
	assertMoney(t, "50.00", acc.TotalSpent)
	assertMoney(t, "50.00", f.summary(t, id, "food").TotalAmount)
}

func TestCreateAccountAllowanceBelowDeduction(t *testing.T) {
	f := newFixture(t)

	id, _, err := f.engine.CreateAccount(context.Background(), domain.NewAccount{
		Name: "Low", Email: "low@x.com", Allowance: money("60.00"),
	})
	require.NoError(t, err)

	acc := f.account(t, id)
	assertMoney(t, "-40.00", acc.CurrentBalance)
	assertMoney(t, "100.00", acc.TotalSavings)

	res, err := f.engine.RecordExpense(context.Background(), id, "food", money("0.01"), "")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
}

func TestCreateAccountValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   domain.NewAccount
		want error
	}{
		{"blank name", domain.NewAccount{Name: " ", Email: "a@x.com", Allowance: money("10")}, domain.ErrInvalidInput},
		{"bad email", domain.NewAccount{Name: "A", Email: "nope", Allowance: money("10")}, domain.ErrInvalidInput},
		{"display name email", domain.NewAccount{Name: "A", Email: "A <a@x.com>", Allowance: money("10")}, domain.ErrInvalidInput},
		{"zero allowance", domain.NewAccount{Name: "A", Email: "a@x.com", Allowance: decimal.Zero}, domain.ErrInvalidAmount},
		{"negative allowance", domain.NewAccount{Name: "A", Email: "a@x.com", Allowance: money("-5")}, domain.ErrInvalidAmount},
		{"sub-cent allowance", domain.NewAccount{Name: "A", Email: "a@x.com", Allowance: money("10.001")}, domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.engine.CreateAccount(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecordExpenseRejectedLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAccount(t, "a@x.com", "100.00")

	res, err := f.engine.RecordExpense(ctx, id, "food", money("150.00"), "")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, domain.RejectInsufficientBalance, res.Reason)
	assert.Nil(t, res.Transaction)

	acc := f.account(t, id)
	assertMoney(t, "100.00", acc.CurrentBalance)
	assertMoney(t, "0.00", acc.TotalSpent)

	page, err := f.projector.ListTransactions(ctx, id, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)

	food := f.summary(t, id, "food")
	assert.True(t, food.TotalAmount.IsZero())
	assert.Zero(t, food.TransactionCount)
}

func TestRecordExpenseAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAccount(t, "a@x.com", "100.00")

	res, err := f.engine.RecordExpense(ctx, id, "food", money("40.00"), "lunch")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, domain.TransactionExpense, res.Transaction.Type)
	assert.Equal(t, "lunch", res.Transaction.Description)
	assertMoney(t, "60.00", res.Account.CurrentBalance)

	acc := f.account(t, id)
	assertMoney(t, "60.00", acc.CurrentBalance)
	assertMoney(t, "40.00", acc.TotalSpent)

	food := f.summary(t, id, "food")
	assertMoney(t, "40.00", food.TotalAmount)
	assert.Equal(t, int64(1), food.TransactionCount)
}

func TestRecordExpenseExactBalanceIsAccepted(t *testing.T) {
	f := newFixture(t)
	id := f.openAccount(t, "a@x.com", "25.50")

	res, err := f.engine.RecordExpense(context.Background(), id, "shopping", money("25.50"), "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assertMoney(t, "0.00", f.account(t, id).CurrentBalance)
}

func TestRecordExpenseValidation(t *testing.T) {
	f := newFixture(t)
	id := f.openAccount(t, "a@x.com", "100.00")

	tests := []struct {
		name      string
		accountID int64
		category  string
		amount    decimal.Decimal
		want      error
	}{
		{"zero amount", id, "food", decimal.Zero, domain.ErrInvalidAmount},
		{"negative amount", id, "food", money("-1"), domain.ErrInvalidAmount},
		{"sub-cent amount", id, "food", money("1.005"), domain.ErrInvalidAmount},
		{"unknown category", id, "rent", money("1"), domain.ErrUnknownCategory},
		{"missing account", 999, "food", money("1"), domain.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.RecordExpense(context.Background(), tt.accountID, tt.category, tt.amount, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assertMoney(t, "100.00", f.account(t, id).CurrentBalance)
}

func TestRecordExpenseNormalizesCategory(t *testing.T) {
	f := newFixture(t)
	id := f.openAccount(t, "a@x.com", "100.00")

	res, err := f.engine.RecordExpense(context.Background(), id, " Food ", money("10"), "")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "food", res.Transaction.Category)
	assertMoney(t, "10.00", f.summary(t, id, "food").TotalAmount)
}

func TestRecordIncomeSplitsInHalf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAccount(t, "a@x.com", "0.00")

	res, err := f.engine.RecordIncome(ctx, id, money("1000.00"), "freelancing", "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assertMoney(t, "500.00", res.BalanceDelta)
	assertMoney(t, "500.00", res.SavingsDelta)
	assert.Equal(t, domain.TransactionIncome, res.Transaction.Type)
	assert.Equal(t, "freelancing", res.Transaction.Source)
	assert.Empty(t, res.Transaction.Category)

	acc := f.account(t, id)
	assertMoney(t, "500.00", acc.CurrentBalance)
	assertMoney(t, "600.00", acc.TotalSavings, "100.00 deduction + 500.00 split")
	assertMoney(t, "0.00", acc.TotalSpent)
}

func TestRecordIncomeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RecordIncome(context.Background(), 1, decimal.Zero, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.engine.RecordIncome(context.Background(), 42, money("10"), "", "")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSplitIncome(t *testing.T) {
	tests := []struct {
		amount string
		half   string
	}{
		{"1000.00", "500.00"},
		{"0.02", "0.01"},
		{"10.01", "5.01"},
		{"0.01", "0.01"},
		{"99.99", "50.00"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			b, s := ledger.SplitIncome(money(tt.amount))
			assertMoney(t, tt.half, b)
			assert.True(t, b.Equal(s), "both halves use the same quotient")
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		pct  string
		want domain.SpendingStatus
	}{
		{"0", domain.StatusGood},
		{"49.99", domain.StatusGood},
		{"50.00", domain.StatusModerate},
		{"74.99", domain.StatusModerate},
		{"75.00", domain.StatusHigh},
		{"130", domain.StatusHigh},
	}
	for _, tt := range tests {
		t.Run(tt.pct, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.StatusFor(money(tt.pct)))
		})
	}
}

func TestUpdateNotesAndProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAccount(t, "a@x.com", "100.00")

	require.NoError(t, f.engine.UpdateNotes(ctx, id, "save for bike"))
	require.NoError(t, f.engine.UpdateProfile(ctx, id, "New Name", money("2000")))

	acc := f.account(t, id)
	assert.Equal(t, "save for bike", acc.Notes)
	assert.Equal(t, "New Name", acc.Name)
	assertMoney(t, "2000.00", acc.MonthlyAllowance)
	assertMoney(t, "100.00", acc.CurrentBalance)

	assert.ErrorIs(t, f.engine.UpdateNotes(ctx, 999, "x"), domain.ErrAccountNotFound)
	assert.ErrorIs(t, f.engine.UpdateProfile(ctx, id, "", money("1")), domain.ErrInvalidInput)
	assert.ErrorIs(t, f.engine.UpdateProfile(ctx, id, "A", decimal.Zero), domain.ErrInvalidAmount)
}

// Balances and summaries must reconcile against the transaction log after any
// sequence of operations.
func TestLedgerReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAccount(t, "a@x.com", "300.00")

	type op struct {
		income   bool
		category string
		amount   string
	}
	ops := []op{
		{category: "food", amount: "45.10"},
		{category: "shopping", amount: "120.00"},
		{income: true, amount: "80.01"},
		{category: "food", amount: "500.00"}, // rejected
		{category: "social", amount: "19.99"},
		{income: true, amount: "1000.00"},
		{category: "food", amount: "300.00"},
		{category: "weekend", amount: "0.01"},
		{category: "friends", amount: "700.00"}, // rejected
	}

	for _, o := range ops {
		if o.income {
			_, err := f.engine.RecordIncome(ctx, id, money(o.amount), "job", "")
			require.NoError(t, err)
			continue
		}
		_, err := f.engine.RecordExpense(ctx, id, o.category, money(o.amount), "")
		require.NoError(t, err)
	}

	page, err := f.projector.ListTransactions(ctx, id, ledger.MaxPageLimit, 0)
	require.NoError(t, err)

	spent := decimal.Zero
	balanceCredits := decimal.Zero
	savingsCredits := decimal.Zero
	perCategory := map[string]decimal.Decimal{}
	perCount := map[string]int64{}
	for _, txn := range page.Transactions {
		switch txn.Type {
		case domain.TransactionExpense:
			spent = spent.Add(txn.Amount)
			perCategory[txn.Category] = perCategory[txn.Category].Add(txn.Amount)
			perCount[txn.Category]++
		case domain.TransactionIncome:
			b, s := ledger.SplitIncome(txn.Amount)
			balanceCredits = balanceCredits.Add(b)
			savingsCredits = savingsCredits.Add(s)
		}
	}
	assert.Len(t, page.Transactions, 7)

	acc := f.account(t, id)
	assertMoney(t, spent.String(), acc.TotalSpent)
	opening := acc.MonthlyAllowance.Sub(ledger.DefaultSavingsDeduction)
	assertMoney(t, opening.Add(balanceCredits).String(), acc.CurrentBalance.Add(acc.TotalSpent))
	assertMoney(t, ledger.DefaultSavingsDeduction.Add(savingsCredits).String(), acc.TotalSavings)

	summaries, err := f.engine.Aggregator().ListByAccount(ctx, id)
	require.NoError(t, err)
	for _, s := range summaries {
		assertMoney(t, perCategory[s.Category].String(), s.TotalAmount, s.Category)
		assert.Equal(t, perCount[s.Category], s.TransactionCount, s.Category)
	}
}

func TestConcurrentExpensesNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAccount(t, "a@x.com", "100.00")

	const n = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.engine.RecordExpense(ctx, id, "food", money("30.00"), "")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if res.Accepted {
				accepted++
			} else {
				rejected++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, n-3, rejected)

	acc := f.account(t, id)
	assertMoney(t, "10.00", acc.CurrentBalance)
	assertMoney(t, "90.00", acc.TotalSpent)

	food := f.summary(t, id, "food")
	assertMoney(t, "90.00", food.TotalAmount)
	assert.Equal(t, int64(3), food.TransactionCount)
}

func TestAggregatorUpsert(t *testing.T) {
	f := newFixture(t)
	agg := f.engine.Aggregator()
	ctx := context.Background()
	id := f.openAccount(t, "agg@x.com", "0")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, agg.Upsert(ctx, id, "food", money("1.50")))
		}()
	}
	wg.Wait()
	require.NoError(t, agg.Upsert(ctx, id, "social", money("200")))
	require.NoError(t, agg.Upsert(ctx, id, "weekend", money("2")))

	list, err := agg.ListByAccount(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, len(catalog.Default().Keys()))
	assert.Equal(t, "social", list[0].Category)
	assert.Equal(t, "food", list[1].Category)
	assertMoney(t, "75.00", list[1].TotalAmount)
	assert.Equal(t, int64(n), list[1].TransactionCount)
	assert.Equal(t, "weekend", list[2].Category)

	assert.ErrorIs(t, agg.Upsert(ctx, id, "food", decimal.Zero), domain.ErrInvalidAmount)
	assert.ErrorIs(t, agg.Upsert(ctx, id, " ", money("1")), domain.ErrInvalidInput)
}

func TestAggregatorUpsertNormalizesCategory(t *testing.T) {
	f := newFixture(t)
	agg := f.engine.Aggregator()
	ctx := context.Background()
	id := f.openAccount(t, "norm@x.com", "0")

	require.NoError(t, agg.Upsert(ctx, id, " Food ", money("3")))
	require.NoError(t, agg.Upsert(ctx, id, "FOOD", money("2")))

	food := f.summary(t, id, "food")
	assertMoney(t, "5", food.TotalAmount)
	assert.Equal(t, int64(2), food.TransactionCount)

	list, err := agg.ListByAccount(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, len(catalog.Default().Keys()), "no mixed-case duplicate rows")
}

func TestAggregatorUpsertUnknownAccount(t *testing.T) {
	store := newStore()
	agg := ledger.NewAggregator(store, store)
	ctx := context.Background()

	assert.ErrorIs(t, agg.Upsert(ctx, 999, "food", money("5.00")), domain.ErrAccountNotFound)

	list, err := agg.ListByAccount(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// failingStore aborts the unit at the summary upsert, after the transaction and
// balance writes have already been issued.
type failingStore struct {
	*memory.Storage
}

var errSummaryDown = errors.New("summary table unavailable")

func (s failingStore) InTx(ctx context.Context, fn func(tx storage.LedgerTx) error) error {
	return s.Storage.InTx(ctx, func(tx storage.LedgerTx) error {
		return fn(failingTx{LedgerTx: tx})
	})
}

type failingTx struct {
	storage.LedgerTx
}

func (failingTx) UpsertCategorySummary(context.Context, int64, string, decimal.Decimal) error {
	return errSummaryDown
}

func TestRecordExpenseIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openAccount(t, "a@x.com", "100.00")

	broken := ledger.NewEngine(failingStore{f.store}, catalog.Default(), ledger.Options{})
	_, err := broken.RecordExpense(ctx, id, "food", money("10.00"), "")
	require.ErrorIs(t, err, errSummaryDown)

	acc := f.account(t, id)
	assertMoney(t, "100.00", acc.CurrentBalance)
	assertMoney(t, "0.00", acc.TotalSpent)

	page, err := f.projector.ListTransactions(ctx, id, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransaction(_ context.Context, e events.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestEnginePublishesCommittedTransactions(t *testing.T) {
	store := newStore()
	pub := &recordingPublisher{}
	engine := ledger.NewEngine(store, catalog.Default(), ledger.Options{Publisher: pub})
	ctx := context.Background()

	id, _, err := engine.CreateAccount(ctx, domain.NewAccount{Name: "A", Email: "a@x.com", Allowance: money("200")})
	require.NoError(t, err)

	_, err = engine.RecordExpense(ctx, id, "food", money("500"), "")
	require.NoError(t, err)
	_, err = engine.RecordExpense(ctx, id, "food", money("12.5"), "")
	require.NoError(t, err)
	_, err = engine.RecordIncome(ctx, id, money("10"), "gift", "")
	require.NoError(t, err)

	require.Len(t, pub.events, 2, "rejected expenses are not published")
	assert.Equal(t, "transaction.expense", pub.events[0].RoutingKey())
	assert.Equal(t, "12.50", pub.events[0].Amount)
	assert.Equal(t, "87.50", pub.events[0].CurrentBalance)
	assert.Equal(t, "transaction.income", pub.events[1].RoutingKey())
	assert.Equal(t, "92.50", pub.events[1].CurrentBalance)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	store := newStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	engine := ledger.NewEngine(store, catalog.Default(), ledger.Options{Publisher: pub})
	ctx := context.Background()

	id, _, err := engine.CreateAccount(ctx, domain.NewAccount{Name: "A", Email: "a@x.com", Allowance: money("200")})
	require.NoError(t, err)

	res, err := engine.RecordIncome(ctx, id, money("10"), "", "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestCustomSavingsDeduction(t *testing.T) {
	store := newStore()
	engine := ledger.NewEngine(store, catalog.Default(), ledger.Options{SavingsDeduction: money("250")})

	id, _, err := engine.CreateAccount(context.Background(), domain.NewAccount{Name: "A", Email: "a@x.com", Allowance: money("1000")})
	require.NoError(t, err)

	acc, err := store.FindAccount(context.Background(), id)
	require.NoError(t, err)
	assertMoney(t, "750.00", acc.CurrentBalance)
	assertMoney(t, "250.00", acc.TotalSavings)
}
