package response

import (
	"errors"
	"net/http"

	"ticketwallet/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码
const (
	CodeAccountNotFound     = 1001
	CodeInvalidAmount       = 1002
	CodeUnknownTopUpType    = 1003
	CodeTicketNotFound      = 1004
	CodeTicketSoldOut       = 1005
	CodeBalanceNotEnough    = 1006
	CodePurchaseFailed      = 1007
	CodeDeductionFailed     = 1008
	CodeTransactionNotFound = 1009
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

// FromError 按错误种类映射 HTTP 状态码与业务码
func FromError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case service.IsNotFound(err):
		status = http.StatusNotFound
	case service.IsClientError(err):
		status = http.StatusBadRequest
	case service.IsAccessDenied(err):
		status = http.StatusForbidden
	}

	message := err.Error()
	var le *service.LedgerError
	if !errors.As(err, &le) || errors.Is(err, service.ErrInternal) {
		// 不向客户端暴露内部错误细节
		message = "Internal server error"
	}
	Error(c, status, businessCode(err, status), message)
}

func businessCode(err error, status int) int {
	kinds := []struct {
		kind error
		code int
	}{
		{service.ErrAccountNotFound, CodeAccountNotFound},
		{service.ErrInvalidAmount, CodeInvalidAmount},
		{service.ErrUnknownTopUpType, CodeUnknownTopUpType},
		{service.ErrTicketNotFound, CodeTicketNotFound},
		{service.ErrTicketSoldOut, CodeTicketSoldOut},
		{service.ErrInsufficientBalance, CodeBalanceNotEnough},
		{service.ErrPurchaseFailed, CodePurchaseFailed},
		{service.ErrDeductionFailed, CodeDeductionFailed},
		{service.ErrNotFound, CodeTransactionNotFound},
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.code
		}
	}
	return status
}
