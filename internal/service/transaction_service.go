package service

import (
	"context"
	"fmt"
	"strings"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/pkg/logger"
)

// TransactionService 流水查询与管理操作
type TransactionService struct {
	ledgerRepo *repository.LedgerRepository
}

func NewTransactionService(ledgerRepo *repository.LedgerRepository) *TransactionService {
	return &TransactionService{ledgerRepo: ledgerRepo}
}

func (s *TransactionService) GetAllTransactions(ctx context.Context, caller Caller) ([]*model.LedgerEntry, error) {
	if err := caller.requirePrivileged(); err != nil {
		return nil, err
	}
	entries, err := s.ledgerRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}

func (s *TransactionService) GetCurrentUserTransactions(ctx context.Context, caller Caller) ([]*model.LedgerEntry, error) {
	entries, err := s.ledgerRepo.ListByAccountID(ctx, caller.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}

func (s *TransactionService) GetUserTransactions(ctx context.Context, caller Caller, accountID int64) ([]*model.LedgerEntry, error) {
	if err := caller.requirePrivileged(); err != nil {
		return nil, err
	}
	entries, err := s.ledgerRepo.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}

func (s *TransactionService) GetTransactionsByStatus(ctx context.Context, caller Caller, status string) ([]*model.LedgerEntry, error) {
	if err := caller.requirePrivileged(); err != nil {
		return nil, err
	}

	status = strings.ToUpper(strings.TrimSpace(status))
	if !model.IsValidEntryStatus(status) {
		return nil, newError(ErrInvalidArgument, "Invalid transaction status: %s", status)
	}

	entries, err := s.ledgerRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}

// GetTransactionByID 仅账户本人或管理员可见
func (s *TransactionService) GetTransactionByID(ctx context.Context, caller Caller, id string) (*model.LedgerEntry, error) {
	entry, err := s.ledgerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if entry == nil {
		return nil, newError(ErrNotFound, "Transaction not found: %s", id)
	}
	if !caller.canAccess(entry.AccountID) {
		return nil, newError(ErrAccessDenied, "Access denied to transaction %s", id)
	}
	return entry, nil
}

// DeleteTransaction 返回记录是否存在并被删除
func (s *TransactionService) DeleteTransaction(ctx context.Context, caller Caller, id string) (bool, error) {
	if err := caller.requirePrivileged(); err != nil {
		return false, err
	}

	deleted, err := s.ledgerRepo.DeleteByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	if deleted {
		logger.Log.Info("transaction deleted",
			logger.String("entry_id", id),
			logger.Int64("by_account_id", caller.AccountID),
		)
	}
	return deleted, nil
}

// MarkTransactionAsFailed 强制置为 FAILED，不回滚余额
func (s *TransactionService) MarkTransactionAsFailed(ctx context.Context, caller Caller, id string) (bool, error) {
	if err := caller.requirePrivileged(); err != nil {
		return false, err
	}

	updated, err := s.ledgerRepo.UpdateStatus(ctx, id, model.EntryStatusFailed)
	if err != nil {
		return false, fmt.Errorf("mark transaction failed: %w", err)
	}
	if updated {
		logger.Log.Info("transaction marked failed",
			logger.String("entry_id", id),
			logger.Int64("by_account_id", caller.AccountID),
		)
	}
	return updated, nil
}
