// internal/ledger/projector.go
package ledger

import (
	"context"
	"fmt"

	"finance-tracker/internal/catalog"
	"finance-tracker/internal/domain"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultRecentLimit = 20
	DefaultPageLimit   = 50
	MaxPageLimit       = 100
)

// Projector builds read-only views. It takes no locks; a view may trail a
// concurrent write by one transaction.
type Projector struct {
	store       Store
	catalog     *catalog.Catalog
	recentLimit int
}

func NewProjector(store Store, cat *catalog.Catalog, recentLimit int) *Projector {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Projector{store: store, catalog: cat, recentLimit: recentLimit}
}

func (p *Projector) Catalog() *catalog.Catalog {
	return p.catalog
}

func (p *Projector) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	return p.store.FindAccount(ctx, accountID)
}

func (p *Projector) GetDashboard(ctx context.Context, accountID int64) (*domain.Dashboard, error) {
	var (
		acc       *domain.Account
		summaries []domain.CategorySummary
		recent    []domain.Transaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		acc, err = p.store.FindAccount(gctx, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		summaries, err = p.store.ListCategorySummaries(gctx, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = p.store.ListTransactions(gctx, accountID, p.recentLimit, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Dashboard{
		Account:            *acc,
		Categories:         p.joinCatalog(summaries),
		RecentTransactions: recent,
	}, nil
}

func (p *Projector) joinCatalog(summaries []domain.CategorySummary) []domain.CategoryView {
	views := make([]domain.CategoryView, 0, len(summaries))
	for _, s := range summaries {
		view := domain.CategoryView{CategorySummary: s, Label: s.Category}
		if info, ok := p.catalog.Lookup(s.Category); ok {
			view.Label = info.Label
			view.Icon = info.Icon
		}
		views = append(views, view)
	}
	return views
}

func (p *Projector) GetSpendingAnalysis(ctx context.Context, accountID int64) (*domain.SpendingAnalysis, error) {
	acc, err := p.store.FindAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	pct := domain.Percentage(acc.TotalSpent, acc.MonthlyAllowance)
	return &domain.SpendingAnalysis{
		MonthlyAllowance: acc.MonthlyAllowance,
		CurrentBalance:   acc.CurrentBalance,
		TotalSpent:       acc.TotalSpent,
		TotalSavings:     acc.TotalSavings,
		SpentPercentage:  pct,
		Status:           StatusFor(pct),
	}, nil
}

func (p *Projector) GetCategoryTransactions(ctx context.Context, accountID int64, category string) (*domain.CategoryTransactions, error) {
	info, ok := p.catalog.Lookup(category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	if _, err := p.store.FindAccount(ctx, accountID); err != nil {
		return nil, err
	}

	summary, err := p.store.FindCategorySummary(ctx, accountID, info.Key)
	if err != nil {
		return nil, err
	}
	txns, err := p.store.ListTransactionsByCategory(ctx, accountID, info.Key)
	if err != nil {
		return nil, err
	}

	view := &domain.CategoryTransactions{Category: info, Transactions: txns}
	if summary != nil {
		view.Total = summary.TotalAmount
		view.Count = summary.TransactionCount
	}
	return view, nil
}

// ListTransactions returns a newest-first page. limit defaults to DefaultPageLimit
// and is capped at MaxPageLimit; a negative offset is treated as zero.
func (p *Projector) ListTransactions(ctx context.Context, accountID int64, limit, offset int) (*domain.TransactionPage, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := p.store.FindAccount(ctx, accountID); err != nil {
		return nil, err
	}

	txns, err := p.store.ListTransactions(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &domain.TransactionPage{Transactions: txns, Limit: limit, Offset: offset}, nil
}
