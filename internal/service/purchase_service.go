package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/internal/ticket"
	"ticketwallet/pkg/logger"

	"gorm.io/gorm"
)

type ticketCatalog interface {
	GetTicket(ctx context.Context, id int64) (*ticket.Ticket, error)
}

type ticketReserver interface {
	PurchaseTicket(ctx context.Context, id int64) (*ticket.Ticket, error)
}

// AccountLocker 串行化同一账户的购票请求
type AccountLocker interface {
	Acquire(ctx context.Context, accountID int64, owner string) (release func(), err error)
}

type PurchaseService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	balance     *BalanceService
	catalog     ticketCatalog
	reserver    ticketReserver
	locker      AccountLocker
	recorder    *ledgerRecorder
}

func NewPurchaseService(
	db *gorm.DB,
	accountRepo *repository.AccountRepository,
	ledgerRepo *repository.LedgerRepository,
	outboxRepo *repository.OutboxRepository,
	balance *BalanceService,
	catalog ticketCatalog,
	reserver ticketReserver,
	locker AccountLocker,
	topic string,
) *PurchaseService {
	return &PurchaseService{
		db:          db,
		accountRepo: accountRepo,
		balance:     balance,
		catalog:     catalog,
		reserver:    reserver,
		locker:      locker,
		recorder:    newLedgerRecorder(ledgerRepo, outboxRepo, topic),
	}
}

type PurchaseResponse struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	TicketID      int64     `json:"ticket_id"`
	EventID       string    `json:"event_id"`
	Amount        int64     `json:"amount"`
	NewBalance    int64     `json:"new_balance"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
}

// PurchaseTicket 用调用方余额购买一张票
//
// 账户确定之后的每一步失败都会先写 FAILED 流水再返回错误，
// 因此每次调用恰好留下一条流水。
// 余额预检查只用于给出友好提示，真正的扣减是带条件的 UPDATE，
// 并发下预检查通过但扣减失败时返回 ErrDeductionFailed。
func (s *PurchaseService) PurchaseTicket(ctx context.Context, caller Caller, ticketID int64) (*PurchaseResponse, error) {
	if ticketID <= 0 {
		return nil, newError(ErrInvalidArgument, "Ticket id must be a positive number")
	}

	account, err := loadAccount(ctx, s.accountRepo, caller.AccountID)
	if err != nil {
		return nil, err
	}

	att := s.recorder.begin(account.ID, model.EntryTypeTicketPurchase)
	att.entry.TicketID = ticketID
	att.entry.EventID = model.NoEventID

	tk, err := s.catalog.GetTicket(ctx, ticketID)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, att.fail(ctx, wrapError(ErrInternal, err, "Ticket lookup interrupted: %v", err))
	}
	if err != nil || tk == nil {
		detail := fmt.Sprintf("id %d", ticketID)
		if err != nil {
			detail = err.Error()
		}
		return nil, att.fail(ctx, wrapError(ErrTicketNotFound, err, "Ticket not found - %s", detail))
	}
	att.entry.Amount = tk.Price
	att.entry.EventID = tk.EventID

	if tk.IsSoldOut() {
		return nil, att.fail(ctx, newError(ErrTicketSoldOut, "Ticket is sold out: %s", tk.Name))
	}

	release, err := s.locker.Acquire(ctx, account.ID, att.entry.ID)
	if err != nil {
		return nil, att.fail(ctx, wrapError(ErrInternal, err, "Account is busy, please retry"))
	}
	defer release()

	// 持锁后重新读取，避免使用加锁前的旧余额
	account, err = loadAccount(ctx, s.accountRepo, account.ID)
	if err != nil {
		return nil, att.fail(ctx, err)
	}

	if account.Balance < tk.Price {
		return nil, att.fail(ctx, newError(ErrInsufficientBalance,
			"Insufficient balance. Required: %s, Available: %s",
			formatAmount(tk.Price), formatAmount(account.Balance)))
	}

	if err := att.markPending(ctx, fmt.Sprintf("Reserving ticket: %s", tk.Name)); err != nil {
		return nil, att.fail(ctx, err)
	}

	if _, err := s.reserver.PurchaseTicket(ctx, ticketID); err != nil {
		return nil, att.fail(ctx, wrapError(ErrPurchaseFailed, err, "Ticket purchase failed - %v", err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.accountRepo.GetByIDForUpdate(ctx, tx, account.ID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		ok, err := s.balance.DeductBalance(ctx, tx, locked, tk.Price)
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrDeductionFailed, "Unable to deduct balance")
		}
		account = locked

		description := fmt.Sprintf("Purchased ticket: %s (ID: %d)", tk.Name, ticketID)
		return att.succeed(ctx, tx, description, model.EventTicketPurchased, map[string]interface{}{
			"type":        model.EntryTypeTicketPurchase,
			"ticket_id":   ticketID,
			"event_id":    tk.EventID,
			"new_balance": account.Balance,
		})
	})
	if err != nil {
		// 票已在活动服务侧预留，需要人工释放
		logger.Log.Error("ticket reserved but purchase not settled",
			logger.String("entry_id", att.entry.ID),
			logger.Int64("account_id", account.ID),
			logger.Int64("ticket_id", ticketID),
			logger.Bool("deduction_declined", errors.Is(err, ErrDeductionFailed)),
			logger.Error(err),
		)
		return nil, att.fail(ctx, err)
	}

	logger.Log.Info("ticket purchased",
		logger.String("entry_id", att.entry.ID),
		logger.Int64("account_id", account.ID),
		logger.Int64("ticket_id", ticketID),
		logger.Int64("amount", tk.Price),
		logger.Int64("new_balance", account.Balance),
	)

	return &PurchaseResponse{
		TransactionID: att.entry.ID,
		AccountID:     account.ID,
		TicketID:      ticketID,
		EventID:       tk.EventID,
		Amount:        tk.Price,
		NewBalance:    s.balance.GetBalance(account),
		Timestamp:     att.entry.Timestamp,
		Status:        att.entry.Status,
		Message:       "Ticket purchased successfully",
	}, nil
}
