// internal/ledger/rules.go
package ledger

import (
	"finance-tracker/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultSavingsDeduction is reserved from the allowance when an account is opened.
var DefaultSavingsDeduction = decimal.RequireFromString("100.00")

var two = decimal.NewFromInt(2)

var (
	moderateThreshold = decimal.NewFromInt(50)
	highThreshold     = decimal.NewFromInt(75)
)

// OpeningBalances splits the first allowance into the savings deduction and the
// spendable balance. An allowance at or below the deduction yields a balance <= 0.
func OpeningBalances(allowance, savingsDeduction decimal.Decimal) domain.Balances {
	return domain.Balances{
		CurrentBalance: domain.RoundMoney(allowance.Sub(savingsDeduction)),
		TotalSavings:   domain.RoundMoney(savingsDeduction),
		TotalSpent:     decimal.Zero,
	}
}

// SplitIncome halves an income between balance and savings. Both halves are the
// same rounded quotient, so an odd-cent amount credits one extra cent in total.
func SplitIncome(amount decimal.Decimal) (balanceDelta, savingsDelta decimal.Decimal) {
	half := domain.RoundMoney(amount.Div(two))
	return half, half
}

// StatusFor classifies a spent percentage. The comparisons are strict, so exactly
// 50 is MODERATE and exactly 75 is HIGH.
func StatusFor(spentPercentage decimal.Decimal) domain.SpendingStatus {
	switch {
	case spentPercentage.LessThan(moderateThreshold):
		return domain.StatusGood
	case spentPercentage.LessThan(highThreshold):
		return domain.StatusModerate
	default:
		return domain.StatusHigh
	}
}
