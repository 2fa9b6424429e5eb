package service

import (
	"context"
	"errors"
	"fmt"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/pkg/logger"
)

type AccountService struct {
	accountRepo *repository.AccountRepository
}

func NewAccountService(accountRepo *repository.AccountRepository) *AccountService {
	return &AccountService{accountRepo: accountRepo}
}

// Open 用户注册时开户，重复调用返回已有账户
func (s *AccountService) Open(ctx context.Context, caller Caller, accountID int64) (*model.Account, error) {
	if err := caller.requirePrivileged(); err != nil {
		return nil, err
	}
	if accountID <= 0 {
		return nil, newError(ErrInvalidArgument, "Account id must be positive")
	}

	account, created, err := s.accountRepo.GetOrCreate(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}
	if created {
		logger.Log.Info("account opened", logger.Int64("account_id", accountID))
	}
	return account, nil
}

// GetAccount 调用方自己的账户
func (s *AccountService) GetAccount(ctx context.Context, caller Caller) (*model.Account, error) {
	return loadAccount(ctx, s.accountRepo, caller.AccountID)
}

func loadAccount(ctx context.Context, repo *repository.AccountRepository, accountID int64) (*model.Account, error) {
	account, err := repo.GetByID(ctx, nil, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, newError(ErrAccountNotFound, "Account not found: %d", accountID)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}
