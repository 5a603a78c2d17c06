// internal/handler/routes.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth   *AuthHandler
	Ledger *LedgerHandler
	Chat   *ChatHandler
}

// RegisterRoutes mounts the public and authenticated API on r.
func RegisterRoutes(r *gin.Engine, h Handlers, requireAuth gin.HandlerFunc) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := r.Group("/api/v1")
	public.POST("/auth/register", h.Auth.Register)
	public.POST("/auth/login", h.Auth.Login)
	public.GET("/categories", h.Ledger.ListCategories)

	v1 := r.Group("/api/v1")
	v1.Use(requireAuth)
	{
		v1.GET("/account", h.Ledger.GetAccount)
		v1.PUT("/account", h.Ledger.UpdateAccount)
		v1.PATCH("/account/notes", h.Ledger.UpdateNotes)
		v1.POST("/transactions/expense", h.Ledger.RecordExpense)
		v1.POST("/transactions/income", h.Ledger.RecordIncome)
		v1.GET("/transactions", h.Ledger.ListTransactions)
		v1.GET("/dashboard", h.Ledger.GetDashboard)
		v1.GET("/analytics/spending", h.Ledger.GetSpendingAnalysis)
		v1.GET("/categories/:category/transactions", h.Ledger.GetCategoryTransactions)
		v1.GET("/chat", h.Chat.History)
		v1.POST("/chat", h.Chat.Send)
	}
}
