// internal/handler/dto.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"finance-tracker/internal/domain"
	val "finance-tracker/internal/validator"

	"github.com/go-playground/validator/v10"
)

// === Requests ===

// Money fields are json.Number so both 40 and "40.00" decode without float rounding.

type RegisterRequest struct {
	Name             string      `json:"name" validate:"required,notblank,max=100" example:"Demo"`
	Email            string      `json:"email" validate:"required,email,max=254" example:"demo@example.com"`
	Password         string      `json:"password" validate:"required,min=8,max=72" example:"secret123"`
	MonthlyAllowance json.Number `json:"monthly_allowance" validate:"required,money" swaggertype:"string" example:"5000.00"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateAccountRequest struct {
	Name             string      `json:"name" validate:"required,notblank,max=100"`
	MonthlyAllowance json.Number `json:"monthly_allowance" validate:"required,money" swaggertype:"string"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type ExpenseRequest struct {
	Category    string      `json:"category" validate:"required,category" example:"food"`
	Amount      json.Number `json:"amount" validate:"required,money" swaggertype:"string" example:"40.00"`
	Description string      `json:"description" validate:"max=500" example:"lunch"`
}

type IncomeRequest struct {
	Amount      json.Number `json:"amount" validate:"required,money" swaggertype:"string" example:"1000.00"`
	Source      string      `json:"source" validate:"max=100" example:"freelancing"`
	Description string      `json:"description" validate:"max=500"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,notblank,max=1000" example:"/balance"`
}

// === Responses ===

// Money is rendered as a fixed two-place string, e.g. "60.00".

type ErrorResponse struct {
	Error string `json:"error"`
}

type TokenResponse struct {
	AccountID int64  `json:"account_id"`
	Token     string `json:"token"`
}

type AccountResponse struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	MonthlyAllowance string    `json:"monthly_allowance"`
	CurrentBalance   string    `json:"current_balance"`
	TotalSavings     string    `json:"total_savings"`
	TotalSpent       string    `json:"total_spent"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newAccountResponse(a *domain.Account) *AccountResponse {
	if a == nil {
		return nil
	}
	return &AccountResponse{
		ID:               a.ID,
		Name:             a.Name,
		Email:            a.Email,
		MonthlyAllowance: a.MonthlyAllowance.StringFixed(2),
		CurrentBalance:   a.CurrentBalance.StringFixed(2),
		TotalSavings:     a.TotalSavings.StringFixed(2),
		TotalSpent:       a.TotalSpent.StringFixed(2),
		Notes:            a.Notes,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type TransactionResponse struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	Amount      string    `json:"amount"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newTransactionResponse(t *domain.Transaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	return &TransactionResponse{
		ID:          t.ID,
		Type:        string(t.Type),
		Category:    t.Category,
		Amount:      t.Amount.StringFixed(2),
		Description: t.Description,
		Source:      t.Source,
		CreatedAt:   t.CreatedAt,
	}
}

func newTransactionList(ts []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(ts))
	for i := range ts {
		out[i] = *newTransactionResponse(&ts[i])
	}
	return out
}

type ExpenseResponse struct {
	Accepted    bool                 `json:"accepted"`
	Message     string               `json:"message"`
	Reason      string               `json:"reason,omitempty"`
	Account     *AccountResponse     `json:"account,omitempty"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

type IncomeResponse struct {
	Accepted     bool                 `json:"accepted"`
	Message      string               `json:"message"`
	BalanceDelta string               `json:"balance_delta"`
	SavingsDelta string               `json:"savings_delta"`
	Account      *AccountResponse     `json:"account"`
	Transaction  *TransactionResponse `json:"transaction"`
}

type CategorySummaryResponse struct {
	Category         string `json:"category"`
	Label            string `json:"label"`
	Icon             string `json:"icon,omitempty"`
	TotalAmount      string `json:"total_amount"`
	TransactionCount int64  `json:"transaction_count"`
}

type DashboardResponse struct {
	Account            *AccountResponse          `json:"account"`
	Categories         []CategorySummaryResponse `json:"categories"`
	RecentTransactions []TransactionResponse     `json:"recent_transactions"`
}

func newDashboardResponse(d *domain.Dashboard) DashboardResponse {
	cats := make([]CategorySummaryResponse, len(d.Categories))
	for i, c := range d.Categories {
		cats[i] = CategorySummaryResponse{
			Category:         c.Category,
			Label:            c.Label,
			Icon:             c.Icon,
			TotalAmount:      c.TotalAmount.StringFixed(2),
			TransactionCount: c.TransactionCount,
		}
	}
	return DashboardResponse{
		Account:            newAccountResponse(&d.Account),
		Categories:         cats,
		RecentTransactions: newTransactionList(d.RecentTransactions),
	}
}

type SpendingAnalysisResponse struct {
	MonthlyAllowance string `json:"monthly_allowance"`
	CurrentBalance   string `json:"current_balance"`
	TotalSpent       string `json:"total_spent"`
	TotalSavings     string `json:"total_savings"`
	SpentPercentage  string `json:"spent_percentage"`
	Status           string `json:"status" example:"GOOD"`
}

type CategoryTransactionsResponse struct {
	Category         domain.CategoryInfo   `json:"category"`
	TotalAmount      string                `json:"total_amount"`
	TransactionCount int64                 `json:"transaction_count"`
	Transactions     []TransactionResponse `json:"transactions"`
}

type TransactionPageResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type ChatMessageResponse struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func newChatMessageResponse(m domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{ID: m.ID, Sender: string(m.Sender), Message: m.Message, CreatedAt: m.CreatedAt}
}

// === Validation ===

func validateStruct(v any) error {
	err := val.Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldErrorToString(e))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field())
	case "money":
		return fmt.Sprintf("%s must be a positive amount with at most 2 decimal places", e.Field())
	case "category":
		return fmt.Sprintf("%s %q is not a known category", e.Field(), e.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
