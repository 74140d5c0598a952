package main

import (
	"os"

	"budgetbook/internal/backend"
	"budgetbook/internal/cli"
	"budgetbook/internal/log"
	"budgetbook/internal/services"
	"budgetbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting budgetbook-worker")

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Error("The reconcile worker needs a shared database; memory backend is not supported")
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	// The worker only reads; it never publishes.
	ledger := services.NewLedgerService(be.Store, nil, logger)
	w := worker.NewReconcileWorker(ledger, be.Store, cfg.ReconcileInterval, logger)

	var consume worker.ConsumeFunc
	if be.Broker != nil {
		consume = be.Broker.ConsumeTransactionEvents
	}

	if err := w.Run(ctx, consume); err != nil {
		logger.Error("Reconcile worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
