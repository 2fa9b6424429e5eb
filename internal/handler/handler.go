package handler

import (
	"strconv"

	"ticketwallet/internal/service"
	"ticketwallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService     *service.AccountService
	topUpService       *service.TopUpService
	purchaseService    *service.PurchaseService
	transactionService *service.TransactionService
}

func NewHandler(
	accountService *service.AccountService,
	topUpService *service.TopUpService,
	purchaseService *service.PurchaseService,
	transactionService *service.TransactionService,
) *Handler {
	return &Handler{
		accountService:     accountService,
		topUpService:       topUpService,
		purchaseService:    purchaseService,
		transactionService: transactionService,
	}
}

// ============================================================
// 钱包
// ============================================================

// GetBalance 查询调用方余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	account, err := h.accountService.GetAccount(c.Request.Context(), callerFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": account.ID,
		"balance":    account.Balance,
	})
}

type TopUpRequest struct {
	AccountID int64  `json:"account_id"`
	Amount    int64  `json:"amount"`
	Type      string `json:"type" binding:"required"`
}

// TopUp 充值，金额校验由策略完成，失败同样记流水
// POST /api/v1/wallet/topup
func (h *Handler) TopUp(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.topUpService.TopUp(c.Request.Context(), callerFrom(c), &service.TopUpRequest{
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Type:      req.Type,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, result)
}

// PurchaseTicket 用余额购票
// POST /api/v1/wallet/tickets/:ticketId/purchase
func (h *Handler) PurchaseTicket(c *gin.Context) {
	ticketID, ok := int64Param(c, "ticketId")
	if !ok {
		return
	}

	result, err := h.purchaseService.PurchaseTicket(c.Request.Context(), callerFrom(c), ticketID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 账户
// ============================================================

type OpenAccountRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
}

// OpenAccount 开户，重复调用幂等
// POST /api/v1/accounts
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "Invalid request: "+err.Error())
		return
	}

	account, err := h.accountService.Open(c.Request.Context(), callerFrom(c), req.AccountID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, account)
}

// ============================================================
// 流水
// ============================================================

// ListTransactions GET /api/v1/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	entries, err := h.transactionService.GetAllTransactions(c.Request.Context(), callerFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entries)
}

// ListMyTransactions GET /api/v1/transactions/me
func (h *Handler) ListMyTransactions(c *gin.Context) {
	entries, err := h.transactionService.GetCurrentUserTransactions(c.Request.Context(), callerFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entries)
}

// ListUserTransactions GET /api/v1/transactions/user/:accountId
func (h *Handler) ListUserTransactions(c *gin.Context) {
	accountID, ok := int64Param(c, "accountId")
	if !ok {
		return
	}

	entries, err := h.transactionService.GetUserTransactions(c.Request.Context(), callerFrom(c), accountID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entries)
}

// ListTransactionsByStatus GET /api/v1/transactions/status/:status
func (h *Handler) ListTransactionsByStatus(c *gin.Context) {
	entries, err := h.transactionService.GetTransactionsByStatus(c.Request.Context(), callerFrom(c), c.Param("status"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entries)
}

// GetTransaction GET /api/v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	entry, err := h.transactionService.GetTransactionByID(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}

// DeleteTransaction DELETE /api/v1/transactions/:id
func (h *Handler) DeleteTransaction(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.transactionService.DeleteTransaction(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !deleted {
		response.NotFound(c, "Transaction not found: "+id)
		return
	}
	response.Success(c, gin.H{"id": id, "deleted": true})
}

// MarkTransactionFailed PUT /api/v1/transactions/:id/fail
func (h *Handler) MarkTransactionFailed(c *gin.Context) {
	id := c.Param("id")
	updated, err := h.transactionService.MarkTransactionAsFailed(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !updated {
		response.NotFound(c, "Transaction not found: "+id)
		return
	}
	response.Success(c, gin.H{"id": id, "status": "FAILED"})
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.ParamError(c, name+" must be a number")
		return 0, false
	}
	return v, true
}
