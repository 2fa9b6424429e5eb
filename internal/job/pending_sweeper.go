package job

import (
	"context"
	"time"

	"ticketwallet/internal/model"
	"ticketwallet/internal/repository"
	"ticketwallet/pkg/logger"
)

const sweptDescription = "Failed: Reservation timed out"

// PendingSweeper 将超时仍为 PENDING 的购票流水标记为 FAILED
// 这类流水说明进程在调用票务服务后、落定结果前退出
type PendingSweeper struct {
	ledgerRepo *repository.LedgerRepository
	timeout    time.Duration
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

func NewPendingSweeper(ledgerRepo *repository.LedgerRepository, timeout time.Duration) *PendingSweeper {
	return &PendingSweeper{
		ledgerRepo: ledgerRepo,
		timeout:    timeout,
		stopCh:     make(chan struct{}),
		interval:   30 * time.Second,
		batchSize:  50,
		now:        time.Now,
	}
}

func (j *PendingSweeper) Start(ctx context.Context) {
	logger.Log.Info("pending sweeper started", logger.Duration("timeout", j.timeout))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("pending sweeper stopped by context")
			return
		case <-j.stopCh:
			logger.Log.Info("pending sweeper stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *PendingSweeper) Stop() {
	close(j.stopCh)
}

func (j *PendingSweeper) sweep(ctx context.Context) int {
	entries, err := j.ledgerRepo.ListStalePending(ctx, j.now().Add(-j.timeout), j.batchSize)
	if err != nil {
		logger.Log.Error("query stale pending entries", logger.Error(err))
		return 0
	}
	if len(entries) == 0 {
		return 0
	}

	swept := 0
	for _, entry := range entries {
		ok, err := j.ledgerRepo.FinalizePending(ctx, nil, entry.ID, model.EntryStatusFailed, sweptDescription)
		if err != nil {
			logger.Log.Error("finalize stale entry", logger.String("entry_id", entry.ID), logger.Error(err))
			continue
		}
		if !ok {
			// 购票流程已先一步落定
			continue
		}
		swept++
		logger.Log.Warn("stale pending entry marked failed, ticket may need manual release",
			logger.String("entry_id", entry.ID),
			logger.Int64("account_id", entry.AccountID),
			logger.Int64("ticket_id", entry.TicketID),
			logger.Int64("amount", entry.Amount),
		)
	}
	return swept
}
