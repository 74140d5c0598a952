// Package worker runs background checks that the ledger's stored balances
// match the transactions behind them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/services"
)

// Reconciler is satisfied by *services.LedgerService.
type Reconciler interface {
	Reconcile(ctx context.Context, accountID int64) (services.Reconciliation, error)
}

type AccountLister interface {
	ListAccountIDs(ctx context.Context) ([]int64, error)
}

// ConsumeFunc feeds events to a handler until ctx ends.
type ConsumeFunc func(ctx context.Context, handler func(context.Context, *amqp.TransactionEvent) error) error

// SweepResult summarizes one pass over every account.
type SweepResult struct {
	Checked int
	Drifted []services.Reconciliation
	Errors  int
}

// ReconcileWorker rechecks an account whenever a ledger event names it and
// sweeps all accounts on a fixed interval to catch lost events.
type ReconcileWorker struct {
	ledger   Reconciler
	accounts AccountLister
	interval time.Duration
	logger   *log.Logger
}

func NewReconcileWorker(ledger Reconciler, accounts AccountLister, interval time.Duration, logger *log.Logger) *ReconcileWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReconcileWorker{
		ledger:   ledger,
		accounts: accounts,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent reconciles the account named by msg. An account deleted since
// the event was published is acknowledged without error.
func (w *ReconcileWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	w.logger.DebugContext(ctx, "Processing ledger event",
		log.FieldEventID, msg.EventID,
		log.FieldOperation, msg.Op,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldAccountID, msg.AccountID)

	r, err := w.ledger.Reconcile(ctx, msg.AccountID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.InfoContext(ctx, "Account gone, skipping event",
			log.FieldEventID, msg.EventID,
			log.FieldAccountID, msg.AccountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile account %d: %w", msg.AccountID, err)
	}
	if r.Consistent() {
		w.logger.DebugContext(ctx, "Account consistent", log.FieldAccountID, msg.AccountID)
	}
	return nil
}

// Sweep reconciles every account. Per-account failures are counted and
// logged; only failing to list accounts aborts the pass.
func (w *ReconcileWorker) Sweep(ctx context.Context) (SweepResult, error) {
	ids, err := w.accounts.ListAccountIDs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list accounts: %w", err)
	}

	var res SweepResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r, err := w.ledger.Reconcile(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to reconcile account", log.FieldAccountID, id, log.FieldError, err)
			res.Errors++
			continue
		}
		res.Checked++
		if !r.Consistent() {
			res.Drifted = append(res.Drifted, r)
		}
	}

	w.logger.InfoContext(ctx, "Reconciliation sweep completed",
		"checked", res.Checked,
		"drifted", len(res.Drifted),
		"errors", res.Errors)
	return res, nil
}

// Run does a startup sweep, then consumes events (when consume is non-nil)
// and sweeps every interval until ctx ends or the consumer fails.
func (w *ReconcileWorker) Run(ctx context.Context, consume ConsumeFunc) error {
	w.logger.InfoContext(ctx, "Performing startup reconciliation...")
	if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Startup reconciliation failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if consume != nil {
		g.Go(func() error {
			return consume(gctx, w.HandleEvent)
		})
	} else {
		w.logger.InfoContext(ctx, "Skipping event consumption - no broker configured")
	}
	if w.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
					if _, err := w.Sweep(gctx); err != nil && gctx.Err() == nil {
						w.logger.ErrorContext(gctx, "Periodic reconciliation failed", log.FieldError, err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
