package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketwallet/internal/config"
	"ticketwallet/internal/handler"
	"ticketwallet/internal/infrastructure/cache"
	"ticketwallet/internal/infrastructure/database"
	"ticketwallet/internal/infrastructure/lock"
	"ticketwallet/internal/infrastructure/mq"
	"ticketwallet/internal/job"
	"ticketwallet/internal/repository"
	"ticketwallet/internal/service"
	"ticketwallet/internal/ticket"
	"ticketwallet/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	if err := logger.Initialize(cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := cache.NewRedis(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	producer, err := mq.NewSyncProducer(&cfg.Kafka)
	if err != nil {
		return err
	}
	publisher := mq.NewPublisher(producer)
	defer publisher.Close()

	tickets, err := ticket.NewClient(cfg.Ticket.BaseURL, time.Duration(cfg.Ticket.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}

	accountRepo := repository.NewAccountRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	topic := cfg.Kafka.Topic.LedgerEvents
	balance := service.NewBalanceService(accountRepo)
	factory := service.NewTopUpFactory(cfg.Business.CustomTopUpMin, cfg.Business.CustomTopUpMax)
	locker := lock.NewAccountLocker(rdb, time.Duration(cfg.Business.PurchaseLockSeconds)*time.Second)

	h := handler.NewHandler(
		service.NewAccountService(accountRepo),
		service.NewTopUpService(db, accountRepo, ledgerRepo, outboxRepo, balance, factory, topic),
		service.NewPurchaseService(db, accountRepo, ledgerRepo, outboxRepo, balance, tickets, tickets, locker, topic),
		service.NewTransactionService(ledgerRepo),
	)

	// 启动后台任务
	outboxSender := job.NewOutboxSender(outboxRepo, publisher, cfg.Business.MaxRetryCount)
	go outboxSender.Start(ctx)

	sweeper := job.NewPendingSweeper(ledgerRepo, time.Duration(cfg.Business.PendingTimeoutMinutes)*time.Minute)
	go sweeper.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.SetupRouter(h, cfg.Auth.JWTSecret),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("server started", logger.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Log.Info("shutting down")

	// 先停后台任务，再关闭 HTTP 服务（最多等待 5 秒）
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown", logger.Error(err))
	}

	logger.Log.Info("server stopped")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
