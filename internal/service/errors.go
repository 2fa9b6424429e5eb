package service

import (
	"errors"
	"fmt"
)

// 错误种类，配合 errors.Is 使用
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownTopUpType    = errors.New("unknown top-up type")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketSoldOut       = errors.New("ticket sold out")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPurchaseFailed      = errors.New("ticket purchase failed")
	ErrDeductionFailed     = errors.New("balance deduction failed")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrInternal            = errors.New("internal error")
)

// LedgerError 携带面向用户的消息，Unwrap 返回错误种类
type LedgerError struct {
	Kind    error
	Message string
	cause   error
}

func (e *LedgerError) Error() string {
	return e.Message
}

func (e *LedgerError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

func newError(kind error, format string, args ...interface{}) *LedgerError {
	return &LedgerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, cause error, format string, args ...interface{}) *LedgerError {
	return &LedgerError{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// asLedgerError 非预期错误统一包装为 ErrInternal
func asLedgerError(err error) *LedgerError {
	var le *LedgerError
	if errors.As(err, &le) {
		return le
	}
	return wrapError(ErrInternal, err, "Unexpected error: %v", err)
}

// IsNotFound 资源不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrNotFound)
}

// IsClientError 请求参数或业务规则不满足
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownTopUpType) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrTicketSoldOut) ||
		errors.Is(err, ErrInsufficientBalance)
}

func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
