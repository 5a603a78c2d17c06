// internal/handler/auth.go
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/storage"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	engine   *ledger.Engine
	accounts storage.AccountStorage
	tokens   *auth.TokenService
}

func NewAuthHandler(engine *ledger.Engine, accounts storage.AccountStorage, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{engine: engine, accounts: accounts, tokens: tokens}
}

// Register godoc
// @Summary Register an account
// @Description Opens an account. The savings deduction is reserved from the first allowance.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account data"
// @Success 201 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := h.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		respondError(c, "Register", err)
		return
	}
	if existing != nil {
		respondError(c, "Register", domain.ErrEmailTaken)
		return
	}

	allowance, err := domain.ParseMoney(req.MonthlyAllowance.String())
	if err != nil {
		respondError(c, "Register", err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, "Register", err)
		return
	}

	id, created, err := h.engine.CreateAccount(ctx, domain.NewAccount{
		Name:         req.Name,
		Email:        email,
		Allowance:    allowance,
		PasswordHash: hash,
	})
	if err != nil {
		respondError(c, "Register", err)
		return
	}
	if !created {
		// lost a race with a concurrent registration of the same email
		respondError(c, "Register", domain.ErrEmailTaken)
		return
	}

	token, err := h.tokens.GenerateToken(id)
	if err != nil {
		respondError(c, "Register", err)
		return
	}
	slog.Info("Account registered", "account_id", id)
	c.JSON(http.StatusCreated, TokenResponse{AccountID: id, Token: token})
}

// Login godoc
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := h.accounts.FindAccountByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(c, "Login", err)
		return
	}
	if acc == nil || !auth.CheckPassword(acc.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid email or password"})
		return
	}

	token, err := h.tokens.GenerateToken(acc.ID)
	if err != nil {
		respondError(c, "Login", err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{AccountID: acc.ID, Token: token})
}
