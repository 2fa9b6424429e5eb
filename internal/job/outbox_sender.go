package job

import (
	"context"
	"time"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/pkg/logger"
)

// EventPublisher 由 mq.Publisher 实现
type EventPublisher interface {
	Publish(topic, key, value string) error
}

// OutboxSender 轮询 outbox 表，把账本事件投递到 Kafka
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  EventPublisher
	maxRetry   int
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(outboxRepo *repository.OutboxRepository, publisher EventPublisher, maxRetry int) *OutboxSender {
	return &OutboxSender{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		maxRetry:   maxRetry,
		stopCh:     make(chan struct{}),
		interval:   500 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Log.Info("outbox sender started", logger.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("outbox sender stopped by context")
			return
		case <-s.stopCh:
			logger.Log.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages 处理一批待发送消息，返回成功条数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Log.Error("query outbox messages", logger.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := s.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
			// 消息可能被重复投递，消费方按 entry_id 去重
			logger.Log.Error("mark outbox message sent", logger.Int64("id", msg.ID), logger.Error(err))
			return false
		}
		logger.Log.Debug("outbox message sent",
			logger.Int64("id", msg.ID),
			logger.String("event_type", msg.EventType),
			logger.String("key", msg.MessageKey),
		)
		return true
	}

	logger.Log.Warn("publish outbox message",
		logger.Int64("id", msg.ID),
		logger.Int("retry_count", msg.RetryCount+1),
		logger.Error(err),
	)
	if err := s.outboxRepo.RecordFailure(ctx, msg.ID, s.maxRetry); err != nil {
		logger.Log.Error("record outbox failure", logger.Int64("id", msg.ID), logger.Error(err))
	}
	if msg.RetryCount+1 >= s.maxRetry {
		logger.Log.Error("outbox message exceeded max retries", logger.Int64("id", msg.ID))
	}
	return false
}
