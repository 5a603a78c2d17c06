// internal/handler/ledger.go
package handler

import (
	"net/http"
	"strconv"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/ledger"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	engine    *ledger.Engine
	projector *ledger.Projector
}

func NewLedgerHandler(engine *ledger.Engine, projector *ledger.Projector) *LedgerHandler {
	return &LedgerHandler{engine: engine, projector: projector}
}

// GetAccount godoc
// @Summary Account snapshot
// @Tags account
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} AccountResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/account [get]
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	acc, err := h.projector.GetAccount(c.Request.Context(), id)
	if err != nil {
		respondError(c, "GetAccount", err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(acc))
}

// UpdateAccount godoc
// @Summary Update name and monthly allowance
// @Description Balances are not recomputed when the allowance changes.
// @Tags account
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body UpdateAccountRequest true "Profile"
// @Success 200 {object} AccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/account [put]
func (h *LedgerHandler) UpdateAccount(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	allowance, err := domain.ParseMoney(req.MonthlyAllowance.String())
	if err != nil {
		respondError(c, "UpdateAccount", err)
		return
	}

	ctx := c.Request.Context()
	if err := h.engine.UpdateProfile(ctx, id, req.Name, allowance); err != nil {
		respondError(c, "UpdateAccount", err)
		return
	}
	h.GetAccount(c)
}

// UpdateNotes godoc
// @Summary Replace the free-form notes
// @Tags account
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body UpdateNotesRequest true "Notes"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/account/notes [patch]
func (h *LedgerHandler) UpdateNotes(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req UpdateNotesRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.engine.UpdateNotes(c.Request.Context(), id, req.Notes); err != nil {
		respondError(c, "UpdateNotes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RecordExpense godoc
// @Summary Record an expense
// @Description Debits the balance. A balance lower than the amount is rejected with 422 and nothing is recorded.
// @Tags transactions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body ExpenseRequest true "Expense"
// @Success 201 {object} ExpenseResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ExpenseResponse
// @Router /api/v1/transactions/expense [post]
func (h *LedgerHandler) RecordExpense(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req ExpenseRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := domain.ParseMoney(req.Amount.String())
	if err != nil {
		respondError(c, "RecordExpense", err)
		return
	}

	res, err := h.engine.RecordExpense(c.Request.Context(), id, req.Category, amount, req.Description)
	if err != nil {
		respondError(c, "RecordExpense", err)
		return
	}

	status := http.StatusCreated
	if !res.Accepted {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, ExpenseResponse{
		Accepted:    res.Accepted,
		Message:     res.Message,
		Reason:      res.Reason,
		Account:     newAccountResponse(res.Account),
		Transaction: newTransactionResponse(res.Transaction),
	})
}

// RecordIncome godoc
// @Summary Record income
// @Description Half of the amount goes to the balance and half to savings.
// @Tags transactions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body IncomeRequest true "Income"
// @Success 201 {object} IncomeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/transactions/income [post]
func (h *LedgerHandler) RecordIncome(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req IncomeRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := domain.ParseMoney(req.Amount.String())
	if err != nil {
		respondError(c, "RecordIncome", err)
		return
	}

	res, err := h.engine.RecordIncome(c.Request.Context(), id, amount, req.Source, req.Description)
	if err != nil {
		respondError(c, "RecordIncome", err)
		return
	}
	c.JSON(http.StatusCreated, IncomeResponse{
		Accepted:     res.Accepted,
		Message:      res.Message,
		BalanceDelta: res.BalanceDelta.StringFixed(2),
		SavingsDelta: res.SavingsDelta.StringFixed(2),
		Account:      newAccountResponse(res.Account),
		Transaction:  newTransactionResponse(res.Transaction),
	})
}

// ListTransactions godoc
// @Summary Transaction history, newest first
// @Tags transactions
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} TransactionPageResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/transactions [get]
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset")
	if !ok {
		return
	}

	page, err := h.projector.ListTransactions(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, "ListTransactions", err)
		return
	}
	c.JSON(http.StatusOK, TransactionPageResponse{
		Transactions: newTransactionList(page.Transactions),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
}

// GetDashboard godoc
// @Summary Dashboard
// @Description Account snapshot, category totals ranked by amount and the most recent transactions.
// @Tags analytics
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} DashboardResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/dashboard [get]
func (h *LedgerHandler) GetDashboard(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	d, err := h.projector.GetDashboard(c.Request.Context(), id)
	if err != nil {
		respondError(c, "GetDashboard", err)
		return
	}
	c.JSON(http.StatusOK, newDashboardResponse(d))
}

// GetSpendingAnalysis godoc
// @Summary Spending analysis
// @Description Share of the monthly allowance spent: GOOD below 50%, MODERATE below 75%, HIGH otherwise.
// @Tags analytics
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SpendingAnalysisResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/analytics/spending [get]
func (h *LedgerHandler) GetSpendingAnalysis(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	a, err := h.projector.GetSpendingAnalysis(c.Request.Context(), id)
	if err != nil {
		respondError(c, "GetSpendingAnalysis", err)
		return
	}
	c.JSON(http.StatusOK, SpendingAnalysisResponse{
		MonthlyAllowance: a.MonthlyAllowance.StringFixed(2),
		CurrentBalance:   a.CurrentBalance.StringFixed(2),
		TotalSpent:       a.TotalSpent.StringFixed(2),
		TotalSavings:     a.TotalSavings.StringFixed(2),
		SpentPercentage:  a.SpentPercentage.StringFixed(2),
		Status:           string(a.Status),
	})
}

// ListCategories godoc
// @Summary Expense categories
// @Tags categories
// @Produce json
// @Success 200 {array} domain.CategoryInfo
// @Router /api/v1/categories [get]
func (h *LedgerHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.projector.Catalog().All())
}

// GetCategoryTransactions godoc
// @Summary Expenses in one category
// @Tags categories
// @Produce json
// @Security ApiKeyAuth
// @Param category path string true "Category key"
// @Success 200 {object} CategoryTransactionsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/categories/{category}/transactions [get]
func (h *LedgerHandler) GetCategoryTransactions(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	view, err := h.projector.GetCategoryTransactions(c.Request.Context(), id, c.Param("category"))
	if err != nil {
		respondError(c, "GetCategoryTransactions", err)
		return
	}
	c.JSON(http.StatusOK, CategoryTransactionsResponse{
		Category:         view.Category,
		TotalAmount:      view.Total.StringFixed(2),
		TransactionCount: view.Count,
		Transactions:     newTransactionList(view.Transactions),
	})
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: name + " must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
