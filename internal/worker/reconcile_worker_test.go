package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/ports"
	"budgetbook/internal/services"
	"budgetbook/internal/storage/memory"
)

type setup struct {
	ctx     context.Context
	store   *memory.Store
	ledger  *services.LedgerService
	worker  *ReconcileWorker
	account core.Account
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	acc, err := store.CreateAccount(ctx, "alice", core.NewAccount{BankName: "KB", Alias: "main", InitialBalance: core.MoneyFromCents(10000)})
	if err != nil {
		t.Fatal(err)
	}
	cat, err := store.CreateCategory(ctx, "alice", core.NewCategory{Name: "food", Type: core.Expense})
	if err != nil {
		t.Fatal(err)
	}
	ledger := services.NewLedgerService(store, nil, nil)
	_, err = ledger.CreateTransaction(ctx, "alice", core.NewTransaction{
		AccountID: acc.ID,
		TransactionFields: core.TransactionFields{
			CategoryID:      cat.ID,
			Type:            core.Expense,
			Amount:          core.MoneyFromCents(2500),
			TransactionDate: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &setup{ctx: ctx, store: store, ledger: ledger, worker: NewReconcileWorker(ledger, store, 0, nil), account: acc}
}

// corrupt overwrites the stored balance without a matching transaction.
func (s *setup) corrupt(t *testing.T, cents int64) {
	t.Helper()
	err := s.store.WithTx(s.ctx, func(tx ports.LedgerTx) error {
		return tx.UpdateAccountBalance(s.ctx, s.account.ID, core.MoneyFromCents(cents))
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSweep_ConsistentLedger(t *testing.T) {
	s := newSetup(t)

	res, err := s.worker.Sweep(s.ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Checked != 1 || len(res.Drifted) != 0 || res.Errors != 0 {
		t.Errorf("Sweep() = %+v, want 1 checked and no drift", res)
	}
}

func TestSweep_ReportsDrift(t *testing.T) {
	s := newSetup(t)
	s.corrupt(t, 9000)

	res, err := s.worker.Sweep(s.ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(res.Drifted) != 1 {
		t.Fatalf("Drifted = %d, want 1", len(res.Drifted))
	}
	got := res.Drifted[0]
	if !got.Expected.Equal(core.MoneyFromCents(7500)) {
		t.Errorf("Expected = %s, want 75.00", got.Expected)
	}
	if !got.Drift().Equal(core.MoneyFromCents(1500)) {
		t.Errorf("Drift = %s, want 15.00", got.Drift())
	}
}

type failingLister struct{}

func (failingLister) ListAccountIDs(context.Context) ([]int64, error) {
	return nil, errors.New("db down")
}

func TestSweep_ListFailure(t *testing.T) {
	s := newSetup(t)
	w := NewReconcileWorker(s.ledger, failingLister{}, 0, nil)

	if _, err := w.Sweep(s.ctx); err == nil {
		t.Error("Sweep() should fail when accounts cannot be listed")
	}
}

func TestHandleEvent(t *testing.T) {
	s := newSetup(t)

	tests := []struct {
		name      string
		accountID int64
	}{
		{"existing account", s.account.ID},
		{"deleted account", s.account.ID + 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &amqp.TransactionEvent{EventID: "e1", Op: "transaction.created", AccountID: tt.accountID}
			if err := s.worker.HandleEvent(s.ctx, msg); err != nil {
				t.Errorf("HandleEvent() error = %v", err)
			}
		})
	}
}

type brokenReconciler struct{}

func (brokenReconciler) Reconcile(context.Context, int64) (services.Reconciliation, error) {
	return services.Reconciliation{}, errors.New("timeout")
}

func TestHandleEvent_ErrorRequeues(t *testing.T) {
	s := newSetup(t)
	w := NewReconcileWorker(brokenReconciler{}, s.store, 0, nil)

	err := w.HandleEvent(s.ctx, &amqp.TransactionEvent{EventID: "e1", AccountID: s.account.ID})
	if err == nil {
		t.Error("HandleEvent() should surface reconcile errors so the message is requeued")
	}
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	s := newSetup(t)
	ctx, cancel := context.WithCancel(s.ctx)

	var handled int32
	consume := func(ctx context.Context, handler func(context.Context, *amqp.TransactionEvent) error) error {
		for i := 0; i < 3; i++ {
			if err := handler(ctx, &amqp.TransactionEvent{EventID: "e", AccountID: s.account.ID}); err != nil {
				return err
			}
			atomic.AddInt32(&handled, 1)
		}
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	if err := s.worker.Run(ctx, consume); err != nil {
		t.Fatalf("Run() error = %v, want nil on cancellation", err)
	}
	if got := atomic.LoadInt32(&handled); got != 3 {
		t.Errorf("handled = %d, want 3", got)
	}
}

func TestRun_ConsumerFailureStopsWorker(t *testing.T) {
	s := newSetup(t)
	w := NewReconcileWorker(s.ledger, s.store, time.Hour, nil)
	boom := errors.New("broker gone")

	err := w.Run(s.ctx, func(context.Context, func(context.Context, *amqp.TransactionEvent) error) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}
