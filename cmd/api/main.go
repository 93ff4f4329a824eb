package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/minihive/backend/internal/auth"
	"github.com/minihive/backend/internal/config"
	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/payments"
	"github.com/minihive/backend/internal/payout"
	"github.com/minihive/backend/internal/router"
	"github.com/minihive/backend/internal/stats"
	"github.com/minihive/backend/internal/store"
	"github.com/minihive/backend/internal/submissions"
	"github.com/minihive/backend/internal/tasks"
	"github.com/minihive/backend/internal/withdrawals"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to PostgreSQL")

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("schema migrations failed", "error", err)
		os.Exit(1)
	}

	// River's own tables.
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)

	// The payout enqueue func is set after the River client exists
	// (breaks the init cycle between the service and the worker).
	var insertMu sync.Mutex
	var insertFn withdrawals.InsertPayoutTxFunc
	insertPayout := func(ctx context.Context, tx pgx.Tx, args payout.PayoutJobArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	withdrawalRepo := withdrawals.NewRepository(pool)
	withdrawalSvc := withdrawals.NewService(pool, withdrawalRepo, ledgerSvc, insertPayout)

	workers := river.NewWorkers()
	river.AddWorker(workers, payout.NewDeliverPayoutWorker(withdrawalSvc, cfg.PayoutWebhookURL))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.PayoutMaxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args payout.PayoutJobArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(pool, authRepo, ledgerSvc, cfg.JWTSecret)

	taskRepo := tasks.NewRepository(pool)
	taskSvc := tasks.NewService(pool, taskRepo, ledgerSvc)

	submissionRepo := submissions.NewRepository(pool)
	submissionSvc := submissions.NewService(pool, submissionRepo, taskSvc, ledgerSvc)

	paymentRepo := payments.NewRepository(pool)
	paymentSvc := payments.NewService(pool, paymentRepo, ledgerSvc)

	statsSvc := stats.NewService(stats.NewRepository(pool))

	apiRouter := router.New(router.Handlers{
		Auth:        auth.NewHandler(authSvc, logger),
		Ledger:      ledger.NewHandler(ledgerRepo, logger),
		Tasks:       tasks.NewHandler(taskSvc, logger),
		Submissions: submissions.NewHandler(submissionSvc, logger),
		Withdrawals: withdrawals.NewHandler(withdrawalSvc, logger),
		Payments:    payments.NewHandler(paymentSvc, logger),
		Stats:       stats.NewHandler(statsSvc, logger),
	}, authSvc)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
