package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// LedgerStore is what the ledger needs from persistence.
type LedgerStore interface {
	ports.UnitOfWork
	ports.TransactionReader
	GetAccount(ctx context.Context, id int64) (core.Account, error)
}

// CommitHook runs after a ledger write has been committed.
type CommitHook func(ctx context.Context, op string, tx core.Transaction, userID string)

// LedgerService is the only writer of transactions and account balances.
// Every create, update and delete runs as one unit of work that locks the
// account, checks ownership, moves the balance and persists both rows.
type LedgerService struct {
	store     LedgerStore
	publisher ports.EventPublisher
	logger    *log.Logger
	hooks     []CommitHook
	pageSize  int
}

// NewLedgerService builds the ledger. publisher may be nil.
func NewLedgerService(store LedgerStore, publisher ports.EventPublisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
		pageSize:  DefaultPageSize,
	}
}

// SetDefaultPageSize changes the size used when a list request omits it.
func (s *LedgerService) SetDefaultPageSize(n int) {
	if n > 0 && n <= MaxPageSize {
		s.pageSize = n
	}
}

// OnCommit registers fn to run after every committed write.
func (s *LedgerService) OnCommit(fn CommitHook) {
	s.hooks = append(s.hooks, fn)
}

func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, n core.NewTransaction) (core.Transaction, error) {
	if err := n.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	n.TransactionDate = core.NormalizeTime(n.TransactionDate)

	var (
		created       core.Transaction
		before, after core.Money
	)
	err := s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		acc, err := s.lockOwnedAccount(ctx, tx, userID, n.AccountID)
		if err != nil {
			return err
		}
		if err := s.checkCategory(ctx, tx, userID, n.CategoryID, n.Type); err != nil {
			return err
		}

		before = acc.Balance
		if err := acc.Apply(n.Type, n.Amount); err != nil {
			return fmt.Errorf("account %d balance %s, %s %s: %w", acc.ID, before, n.Type, n.Amount, err)
		}
		after = acc.Balance

		created, err = tx.InsertTransaction(ctx, n)
		if err != nil {
			return err
		}
		return tx.UpdateAccountBalance(ctx, acc.ID, acc.Balance)
	})
	if err != nil {
		return core.Transaction{}, s.failed(ctx, log.OpCreate, userID, err)
	}

	s.logBalance(ctx, log.OpCreate, userID, created, before, after)
	s.committed(ctx, ports.OpTransactionCreated, created, userID)
	return created, nil
}

// UpdateTransaction reverses the stored effect, replaces the editable fields
// and applies the new effect, all against one locked account.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID string, id int64, f core.TransactionFields) (core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	f.TransactionDate = core.NormalizeTime(f.TransactionDate)

	var (
		updated       core.Transaction
		before, after core.Money
	)
	err := s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		cur, acc, err := s.lockOwnedTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := s.checkCategory(ctx, tx, userID, f.CategoryID, f.Type); err != nil {
			return err
		}

		before = acc.Balance
		acc.Reverse(cur.Type, cur.Amount)
		cur.CategoryID = f.CategoryID
		cur.Type = f.Type
		cur.Amount = f.Amount
		cur.Memo = f.Memo
		cur.TransactionDate = f.TransactionDate
		if err := acc.Apply(cur.Type, cur.Amount); err != nil {
			return fmt.Errorf("account %d balance %s after reversal, %s %s: %w", acc.ID, acc.Balance, cur.Type, cur.Amount, err)
		}
		after = acc.Balance

		updated, err = tx.UpdateTransaction(ctx, cur)
		if err != nil {
			return err
		}
		return tx.UpdateAccountBalance(ctx, acc.ID, acc.Balance)
	})
	if err != nil {
		return core.Transaction{}, s.failed(ctx, log.OpUpdate, userID, err)
	}

	s.logBalance(ctx, log.OpUpdate, userID, updated, before, after)
	s.committed(ctx, ports.OpTransactionUpdated, updated, userID)
	return updated, nil
}

// DeleteTransaction reverses the effect and removes the record. Reversal is
// never blocked, even when it takes the balance below zero.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID string, id int64) error {
	var (
		deleted       core.Transaction
		before, after core.Money
	)
	err := s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		cur, acc, err := s.lockOwnedTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		deleted = cur

		before = acc.Balance
		acc.Reverse(cur.Type, cur.Amount)
		after = acc.Balance

		if err := tx.UpdateAccountBalance(ctx, acc.ID, acc.Balance); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, cur.ID)
	})
	if err != nil {
		return s.failed(ctx, log.OpDelete, userID, err)
	}

	s.logBalance(ctx, log.OpDelete, userID, deleted, before, after)
	s.committed(ctx, ports.OpTransactionDeleted, deleted, userID)
	return nil
}

// lockOwnedAccount resolves the account, locks it and compares its owner.
func (s *LedgerService) lockOwnedAccount(ctx context.Context, tx ports.LedgerTx, userID string, id int64) (core.Account, error) {
	acc, err := tx.GetAccountForUpdate(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if !acc.IsOwner(userID) {
		s.logger.WarnContext(ctx, "Account ownership violation",
			log.FieldUserID, userID, log.FieldAccountID, id)
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrOwnershipViolation)
	}
	return acc, nil
}

// lockOwnedTransaction locks the transaction's account and then reloads the
// transaction, so the effect being reversed is the committed one.
func (s *LedgerService) lockOwnedTransaction(ctx context.Context, tx ports.LedgerTx, userID string, id int64) (core.Transaction, core.Account, error) {
	probe, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, core.Account{}, err
	}
	acc, err := tx.GetAccountForUpdate(ctx, probe.AccountID)
	if err != nil {
		return core.Transaction{}, core.Account{}, err
	}
	if !acc.IsOwner(userID) {
		s.logger.WarnContext(ctx, "Transaction ownership violation",
			log.FieldUserID, userID, log.FieldTransactionID, id, log.FieldAccountID, acc.ID)
		return core.Transaction{}, core.Account{}, fmt.Errorf("transaction %d: %w", id, core.ErrOwnershipViolation)
	}
	cur, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, core.Account{}, err
	}
	return cur, acc, nil
}

func (s *LedgerService) checkCategory(ctx context.Context, tx ports.LedgerTx, userID string, id int64, t core.TransactionType) error {
	cat, err := tx.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if !cat.IsOwner(userID) {
		s.logger.WarnContext(ctx, "Category ownership violation",
			log.FieldUserID, userID, log.FieldCategoryID, id)
		return fmt.Errorf("category %d: %w", id, core.ErrOwnershipViolation)
	}
	if cat.Type != t {
		return fmt.Errorf("category %d is %s, transaction is %s: %w", id, cat.Type, t, core.ErrCategoryTypeMismatch)
	}
	return nil
}

func (s *LedgerService) failed(ctx context.Context, op, userID string, err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrOwnershipViolation),
		errors.Is(err, core.ErrInsufficientBalance),
		core.IsInvalidInput(err):
		s.logger.DebugContext(ctx, "Ledger write rejected",
			log.FieldOperation, op, log.FieldUserID, userID, log.FieldError, err)
	default:
		s.logger.ErrorContext(ctx, "Ledger write failed",
			log.FieldOperation, op, log.FieldUserID, userID, log.FieldError, err)
	}
	return fmt.Errorf("%s transaction: %w", op, err)
}

func (s *LedgerService) logBalance(ctx context.Context, op, userID string, tx core.Transaction, before, after core.Money) {
	fields := log.NewFields().
		WithOperation(op).
		WithUser(userID).
		WithTransaction(tx).
		WithBalanceChange(before, after)
	s.logger.InfoContext(ctx, "Account balance updated", fields.ToSlice()...)
}

// committed publishes the event and runs hooks. The write already stands,
// so failures here are only logged.
func (s *LedgerService) committed(ctx context.Context, op string, tx core.Transaction, userID string) {
	for _, h := range s.hooks {
		h(ctx, op, tx, userID)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, op, tx, userID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, op, log.FieldTransactionID, tx.ID, log.FieldError, err)
	}
}

// TransactionPage is one page of a user's transactions.
type TransactionPage struct {
	Items      []core.Transaction `json:"content"`
	Page       int                `json:"page"`
	Size       int                `json:"size"`
	TotalItems int                `json:"totalElements"`
	TotalPages int                `json:"totalPages"`
}

// ListTransactions pages through the user's transactions, newest first.
// accountID 0 lists every account; otherwise the account must be the user's.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, accountID int64, page, size int) (TransactionPage, error) {
	if size == 0 {
		size = s.pageSize
	}
	if page < 0 || size < 1 || size > MaxPageSize {
		return TransactionPage{}, fmt.Errorf("%w: page %d size %d", core.ErrInvalidArgument, page, size)
	}
	// page*size must not overflow the row offset.
	if page > (math.MaxInt-1)/size {
		return TransactionPage{}, fmt.Errorf("%w: page %d out of range", core.ErrInvalidArgument, page)
	}
	if err := s.checkAccountFilter(ctx, userID, accountID); err != nil {
		return TransactionPage{}, err
	}

	q := ports.TransactionQuery{UserID: userID, AccountID: accountID, Page: page, Size: size}
	items, total, err := s.store.ListTransactions(ctx, q)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	return TransactionPage{
		Items:      items,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

// ListTransactionsByDate returns the user's transactions dated on day.
func (s *LedgerService) ListTransactionsByDate(ctx context.Context, userID string, day core.Date, accountID int64) ([]core.Transaction, error) {
	if day.IsZero() {
		return nil, fmt.Errorf("%w: missing date", core.ErrInvalidArgument)
	}
	if err := s.checkAccountFilter(ctx, userID, accountID); err != nil {
		return nil, err
	}
	items, err := s.store.ListTransactionsInRange(ctx, userID, core.DayRange(day), accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions by date: %w", err)
	}
	return items, nil
}

func (s *LedgerService) checkAccountFilter(ctx context.Context, userID string, accountID int64) error {
	if accountID <= 0 {
		return nil
	}
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !acc.IsOwner(userID) {
		s.logger.WarnContext(ctx, "Account ownership violation",
			log.FieldUserID, userID, log.FieldAccountID, accountID)
		return fmt.Errorf("account %d: %w", accountID, core.ErrOwnershipViolation)
	}
	return nil
}

// Reconciliation compares a stored balance with the one implied by the
// account's transactions.
type Reconciliation struct {
	AccountID int64
	Balance   core.Money
	Expected  core.Money
}

func (r Reconciliation) Drift() core.Money { return r.Balance.Sub(r.Expected) }
func (r Reconciliation) Consistent() bool  { return r.Balance.Equal(r.Expected) }

// Reconcile checks balance == initial balance + Σ signed effects.
func (s *LedgerService) Reconcile(ctx context.Context, accountID int64) (Reconciliation, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := s.store.SignedTotal(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	r := Reconciliation{
		AccountID: accountID,
		Balance:   acc.Balance,
		Expected:  acc.InitialBalance.Add(sum),
	}
	if !r.Consistent() {
		s.logger.ErrorContext(ctx, "Account balance drift detected",
			log.FieldAccountID, accountID,
			log.FieldOperation, log.OpReconcile,
			"balance", r.Balance.String(),
			"expected", r.Expected.String(),
			"drift", r.Drift().String())
	}
	return r, nil
}
