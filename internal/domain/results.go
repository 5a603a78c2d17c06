// internal/domain/results.go
package domain

import "github.com/shopspring/decimal"

const RejectInsufficientBalance = "insufficient balance"

// ExpenseResult reports whether an expense was applied. A rejection is an expected
// outcome and leaves the ledger untouched.
type ExpenseResult struct {
	Accepted    bool
	Message     string
	Reason      string
	Account     *Account
	Transaction *Transaction
}

type IncomeResult struct {
	Accepted     bool
	Message      string
	BalanceDelta decimal.Decimal
	SavingsDelta decimal.Decimal
	Account      *Account
	Transaction  *Transaction
}

type SpendingStatus string

const (
	StatusGood     SpendingStatus = "GOOD"
	StatusModerate SpendingStatus = "MODERATE"
	StatusHigh     SpendingStatus = "HIGH"
)

type SpendingAnalysis struct {
	MonthlyAllowance decimal.Decimal
	CurrentBalance   decimal.Decimal
	TotalSpent       decimal.Decimal
	TotalSavings     decimal.Decimal
	SpentPercentage  decimal.Decimal
	Status           SpendingStatus
}

// CategoryView is a summary joined with its catalog display metadata.
type CategoryView struct {
	CategorySummary
	Label string
	Icon  string
}

type Dashboard struct {
	Account            Account
	Categories         []CategoryView
	RecentTransactions []Transaction
}

type CategoryTransactions struct {
	Category     CategoryInfo
	Total        decimal.Decimal
	Count        int64
	Transactions []Transaction
}

type TransactionPage struct {
	Transactions []Transaction
	Limit        int
	Offset       int
}
