package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/pkg/logger"

	"gorm.io/gorm"
)

type TopUpService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	balance     *BalanceService
	factory     *TopUpFactory
	recorder    *ledgerRecorder
}

func NewTopUpService(
	db *gorm.DB,
	accountRepo *repository.AccountRepository,
	ledgerRepo *repository.LedgerRepository,
	outboxRepo *repository.OutboxRepository,
	balance *BalanceService,
	factory *TopUpFactory,
	topic string,
) *TopUpService {
	return &TopUpService{
		db:          db,
		accountRepo: accountRepo,
		balance:     balance,
		factory:     factory,
		recorder:    newLedgerRecorder(ledgerRepo, outboxRepo, topic),
	}
}

// TopUpRequest AccountID 为 0 时充值到调用方自己的账户
type TopUpRequest struct {
	AccountID int64
	Amount    int64
	Type      string
}

type TopUpResponse struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	Amount        int64     `json:"amount"`
	NewBalance    int64     `json:"new_balance"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
}

// TopUp 解析策略 -> 增加余额 -> 记录流水
// 策略校验失败时同样写入一条 FAILED 流水，并把错误返回给调用方
func (s *TopUpService) TopUp(ctx context.Context, caller Caller, req *TopUpRequest) (*TopUpResponse, error) {
	accountID := req.AccountID
	if accountID == 0 {
		accountID = caller.AccountID
	}
	if !caller.canAccess(accountID) {
		return nil, newError(ErrAccessDenied, "Access denied: cannot top up account %d", accountID)
	}

	account, err := loadAccount(ctx, s.accountRepo, accountID)
	if err != nil {
		return nil, err
	}

	att := s.recorder.begin(account.ID, model.EntryTypeTopUp)
	att.entry.Amount = req.Amount

	policy, err := s.factory.Create(req.Type, req.Amount)
	if err != nil {
		return nil, att.fail(ctx, err)
	}
	att.entry.Amount = policy.Amount
	att.entry.TopUpType = policy.Type

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.accountRepo.GetByIDForUpdate(ctx, tx, account.ID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return newError(ErrAccountNotFound, "Account not found: %d", account.ID)
			}
			return fmt.Errorf("lock account: %w", err)
		}

		if err := s.balance.TopUp(ctx, tx, locked, policy.Amount); err != nil {
			return err
		}
		account = locked

		description := fmt.Sprintf("Top-up %s (%s)", formatAmount(policy.Amount), policy.Type)
		return att.succeed(ctx, tx, description, model.EventTopUpSucceeded, map[string]interface{}{
			"type":        model.EntryTypeTopUp,
			"top_up_type": policy.Type,
			"new_balance": account.Balance,
		})
	})
	if err != nil {
		return nil, att.fail(ctx, err)
	}

	logger.Log.Info("top-up succeeded",
		logger.String("entry_id", att.entry.ID),
		logger.Int64("account_id", account.ID),
		logger.Int64("amount", policy.Amount),
		logger.Int64("new_balance", account.Balance),
	)

	return &TopUpResponse{
		TransactionID: att.entry.ID,
		AccountID:     account.ID,
		Amount:        policy.Amount,
		NewBalance:    s.balance.GetBalance(account),
		Timestamp:     att.entry.Timestamp,
		Status:        att.entry.Status,
		Message:       "Top-up successful",
	}, nil
}
