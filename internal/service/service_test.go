package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ticketwallet/internal/config"
	"ticketwallet/internal/infrastructure/database"
	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/internal/ticket"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testTopic = "ledger-events"

type testEnv struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
	balance     *BalanceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "service.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	accountRepo := repository.NewAccountRepository(db)
	return &testEnv{
		db:          db,
		accountRepo: accountRepo,
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		balance:     NewBalanceService(accountRepo),
	}
}

func (e *testEnv) seedAccount(t *testing.T, id, balance int64) *model.Account {
	t.Helper()
	account := &model.Account{ID: id, Balance: balance}
	require.NoError(t, e.accountRepo.Save(context.Background(), nil, account))
	return account
}

func (e *testEnv) balanceOf(t *testing.T, id int64) int64 {
	t.Helper()
	account, err := e.accountRepo.GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return account.Balance
}

func (e *testEnv) entries(t *testing.T) []*model.LedgerEntry {
	t.Helper()
	entries, err := e.ledgerRepo.ListAll(context.Background())
	require.NoError(t, err)
	return entries
}

func (e *testEnv) outbox(t *testing.T) []*model.OutboxMessage {
	t.Helper()
	messages, err := e.outboxRepo.GetPendingMessages(context.Background(), 100)
	require.NoError(t, err)
	return messages
}

func (e *testEnv) topUpService() *TopUpService {
	return NewTopUpService(e.db, e.accountRepo, e.ledgerRepo, e.outboxRepo, e.balance,
		NewTopUpFactory(DefaultCustomTopUpMin, DefaultCustomTopUpMax), testTopic)
}

func (e *testEnv) purchaseService(tickets *fakeTickets, locker AccountLocker) *PurchaseService {
	return NewPurchaseService(e.db, e.accountRepo, e.ledgerRepo, e.outboxRepo, e.balance,
		tickets, tickets, locker, testTopic)
}

// fakeTickets 同时充当票务查询与预留
type fakeTickets struct {
	tickets       map[int64]*ticket.Ticket
	lookupErr     error
	onLookup      func()
	purchaseErr   error
	onPurchase    func()
	purchaseCalls int
}

func (f *fakeTickets) GetTicket(_ context.Context, id int64) (*ticket.Ticket, error) {
	if f.onLookup != nil {
		f.onLookup()
	}
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	tk, ok := f.tickets[id]
	if !ok {
		return nil, ticket.ErrNotFound
	}
	return tk, nil
}

func (f *fakeTickets) PurchaseTicket(_ context.Context, id int64) (*ticket.Ticket, error) {
	f.purchaseCalls++
	if f.onPurchase != nil {
		f.onPurchase()
	}
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	return f.tickets[id], nil
}

type fakeLocker struct {
	err      error
	acquired int
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, _ int64, _ string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

var errBoom = errors.New("boom")
