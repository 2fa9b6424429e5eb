package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// failWriteTimeout FAILED 流水写入不受请求 ctx 取消影响，但仍有上限
const failWriteTimeout = 5 * time.Second

// ledgerRecorder 负责流水与 outbox 消息的写入
type ledgerRecorder struct {
	ledgerRepo *repository.LedgerRepository
	outboxRepo *repository.OutboxRepository
	topic      string
	now        func() time.Time
}

func newLedgerRecorder(ledgerRepo *repository.LedgerRepository, outboxRepo *repository.OutboxRepository, topic string) *ledgerRecorder {
	return &ledgerRecorder{
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		topic:      topic,
		now:        time.Now,
	}
}

// begin 开始一次尝试，此时流水尚未落库
func (r *ledgerRecorder) begin(accountID int64, entryType string) *attempt {
	return &attempt{
		rec: r,
		entry: &model.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Type:      entryType,
			Status:    model.EntryStatusPending,
			Timestamp: r.now(),
		},
	}
}

// attempt 一次余额变动尝试，最终恰好对应一条流水
type attempt struct {
	rec       *ledgerRecorder
	entry     *model.LedgerEntry
	persisted bool // PENDING 记录已提交
}

// fail 写入 FAILED 流水后返回错误本身
// 非预期错误被包装为 ErrInternal，调用方总能拿到错误，流水作为副作用保留审计
func (a *attempt) fail(ctx context.Context, err error) error {
	le := asLedgerError(err)

	a.entry.Status = model.EntryStatusFailed
	a.entry.Description = "Failed: " + le.Message

	// 请求被取消时仍须留下流水
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	var writeErr error
	if a.persisted {
		var ok bool
		ok, writeErr = a.rec.ledgerRepo.FinalizePending(writeCtx, nil, a.entry.ID, model.EntryStatusFailed, a.entry.Description)
		if writeErr == nil && !ok {
			logger.Log.Warn("pending entry already finalized", logger.String("entry_id", a.entry.ID))
		}
	} else {
		writeErr = a.rec.ledgerRepo.Create(writeCtx, nil, a.entry)
	}

	if writeErr != nil {
		logger.Log.Error("write failed ledger entry",
			logger.String("entry_id", a.entry.ID),
			logger.Int64("account_id", a.entry.AccountID),
			logger.Error(writeErr),
		)
	} else {
		a.persisted = true
	}

	logger.Log.Warn("ledger attempt failed",
		logger.String("entry_id", a.entry.ID),
		logger.String("type", a.entry.Type),
		logger.Int64("account_id", a.entry.AccountID),
		logger.Int64("amount", a.entry.Amount),
		logger.String("reason", le.Message),
	)
	return le
}

// markPending 在调用外部系统前先提交 PENDING 流水，进程崩溃时由 PendingSweeper 收尾
func (a *attempt) markPending(ctx context.Context, description string) error {
	a.entry.Status = model.EntryStatusPending
	a.entry.Description = description
	if err := a.rec.ledgerRepo.Create(ctx, nil, a.entry); err != nil {
		return fmt.Errorf("write pending entry: %w", err)
	}
	a.persisted = true
	return nil
}

// succeed 在业务事务内落定 SUCCESS 流水并写 outbox 事件
func (a *attempt) succeed(ctx context.Context, tx *gorm.DB, description, eventType string, payload map[string]interface{}) error {
	a.entry.Status = model.EntryStatusSuccess
	a.entry.Description = description

	if a.persisted {
		ok, err := a.rec.ledgerRepo.FinalizePending(ctx, tx, a.entry.ID, model.EntryStatusSuccess, description)
		if err != nil {
			return fmt.Errorf("finalize entry: %w", err)
		}
		if !ok {
			return fmt.Errorf("entry %s is no longer pending", a.entry.ID)
		}
	} else if err := a.rec.ledgerRepo.Create(ctx, tx, a.entry); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	payload["entry_id"] = a.entry.ID
	payload["account_id"] = a.entry.AccountID
	payload["amount"] = a.entry.Amount
	payload["status"] = a.entry.Status
	payload["timestamp"] = a.entry.Timestamp.Format(time.RFC3339)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: a.entry.ID,
		EventType:  eventType,
		AccountID:  a.entry.AccountID,
		Topic:      a.rec.topic,
		Payload:    string(body),
		Status:     model.OutboxStatusPending,
	}
	if err := a.rec.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}
