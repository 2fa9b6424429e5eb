package service

import (
	"context"
	"errors"
	"fmt"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"

	"gorm.io/gorm"
)

// BalanceService 余额变动的唯一入口，保证余额不为负
type BalanceService struct {
	accountRepo *repository.AccountRepository
}

func NewBalanceService(accountRepo *repository.AccountRepository) *BalanceService {
	return &BalanceService{accountRepo: accountRepo}
}

// TopUp 增加余额，amount 必须为正；成功后 account 刷新为库中最新值
func (s *BalanceService) TopUp(ctx context.Context, tx *gorm.DB, account *model.Account, amount int64) error {
	if amount <= 0 {
		return newError(ErrInvalidAmount, "Top-up amount must be positive")
	}

	if err := s.accountRepo.Increase(ctx, tx, account.ID, amount); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return newError(ErrAccountNotFound, "Account not found: %d", account.ID)
		}
		return fmt.Errorf("increase balance: %w", err)
	}

	return s.refresh(ctx, tx, account)
}

// DeductBalance 余额不足时不修改并返回 false，这是正常的拒绝结果而非错误
func (s *BalanceService) DeductBalance(ctx context.Context, tx *gorm.DB, account *model.Account, amount int64) (bool, error) {
	if amount <= 0 {
		return false, newError(ErrInvalidAmount, "Deduction amount must be positive")
	}
	if account.Balance < amount {
		return false, nil
	}

	ok, err := s.accountRepo.DeductIfSufficient(ctx, tx, account.ID, amount)
	if err != nil {
		return false, fmt.Errorf("deduct balance: %w", err)
	}
	if !ok {
		return false, nil
	}

	return true, s.refresh(ctx, tx, account)
}

func (s *BalanceService) GetBalance(account *model.Account) int64 {
	return account.Balance
}

func (s *BalanceService) refresh(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	latest, err := s.accountRepo.GetByID(ctx, tx, account.ID)
	if err != nil {
		return fmt.Errorf("reload account: %w", err)
	}
	*account = *latest
	return nil
}
