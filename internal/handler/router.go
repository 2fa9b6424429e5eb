package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, jwtSecret string) *gin.Engine {
	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", AuthMiddleware(jwtSecret))
	{
		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.POST("/topup", h.TopUp)
			wallet.POST("/tickets/:ticketId/purchase", h.PurchaseTicket)
		}

		api.POST("/accounts", h.OpenAccount)

		transactions := api.Group("/transactions")
		{
			transactions.GET("", h.ListTransactions)
			transactions.GET("/me", h.ListMyTransactions)
			transactions.GET("/user/:accountId", h.ListUserTransactions)
			transactions.GET("/status/:status", h.ListTransactionsByStatus)
			transactions.GET("/:id", h.GetTransaction)
			transactions.DELETE("/:id", h.DeleteTransaction)
			transactions.PUT("/:id/fail", h.MarkTransactionFailed)
		}
	}

	return r
}
