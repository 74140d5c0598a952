package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/ports"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Repository is the SQL-backed ports.Store.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
	now     func() time.Time
}

var _ ports.Store = (*Repository)(nil)

// sqliteDSN enables foreign keys on every pooled connection and takes the
// write lock at BEGIN so ledger units of work never upgrade mid-flight.
func sqliteDSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := sqliteDSN(dbPath)

	db, err := sql.Open(SQLite.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	return newRepository(db, SQLite, dsn)
}

func NewPostgresRepository(dsn string) (*Repository, error) {
	db, err := sql.Open(Postgres.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return newRepository(db, Postgres, dsn)
}

func newRepository(db *sql.DB, dialect Dialect, dsn string) (*Repository, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		queries: New(db, dialect),
		now:     time.Now,
	}, nil
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithTx implements ports.UnitOfWork. fn must only touch the store through
// the LedgerTx it receives.
func (r *Repository) WithTx(ctx context.Context, fn func(ports.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once committed.
	defer tx.Rollback()

	if err := fn(&ledgerTx{q: r.queries.WithTx(tx), now: r.now}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, q ports.TransactionQuery) ([]core.Transaction, int, error) {
	total, err := r.queries.CountTransactions(ctx, q.UserID, q.AccountID)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	items, err := r.queries.ListTransactions(ctx, q.UserID, q.AccountID, q.Size, q.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return items, total, nil
}

func (r *Repository) ListTransactionsInRange(ctx context.Context, userID string, dr core.DateRange, accountID int64) ([]core.Transaction, error) {
	items, err := r.queries.ListTransactionsInRange(ctx, userID, dr, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}
	return items, nil
}

func (r *Repository) SignedTotal(ctx context.Context, accountID int64) (core.Money, error) {
	total, err := r.queries.SignedTotal(ctx, accountID)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum account %d: %w", accountID, err)
	}
	return total, nil
}

func (r *Repository) CreateAccount(ctx context.Context, userID string, n core.NewAccount) (core.Account, error) {
	a, err := r.queries.CreateAccount(ctx, CreateAccountParams{
		UserID:         userID,
		BankName:       n.BankName,
		Alias:          n.Alias,
		InitialBalance: n.InitialBalance,
		Now:            r.now(),
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := r.queries.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, notFound(err))
	}
	return a, nil
}

func (r *Repository) ListAccounts(ctx context.Context, userID, bankName string) ([]core.Account, error) {
	items, err := r.queries.ListAccounts(ctx, userID, bankName)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return items, nil
}

func (r *Repository) ListAccountIDs(ctx context.Context) ([]int64, error) {
	ids, err := r.queries.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	return ids, nil
}

func (r *Repository) UpdateAccountAlias(ctx context.Context, id int64, alias string) (core.Account, error) {
	a, err := r.queries.UpdateAccountAlias(ctx, id, alias, r.now())
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %d: %w", id, notFound(err))
	}
	return a, nil
}

func (r *Repository) DeleteAccount(ctx context.Context, id int64) error {
	if err := r.queries.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	return nil
}

func (r *Repository) CreateCategory(ctx context.Context, userID string, n core.NewCategory) (core.Category, error) {
	c, err := r.queries.CreateCategory(ctx, userID, n, r.now())
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, notFound(err))
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, userID string, t core.TransactionType) ([]core.Category, error) {
	items, err := r.queries.ListCategories(ctx, userID, t)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return items, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	updated, err := r.queries.UpdateCategory(ctx, c, r.now())
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, notFound(err))
	}
	return updated, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	if err := r.queries.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

func (r *Repository) CountCategoryTransactions(ctx context.Context, id int64) (int, error) {
	n, err := r.queries.CountCategoryTransactions(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("count category %d transactions: %w", id, err)
	}
	return n, nil
}

// ledgerTx is the ports.LedgerTx bound to one *sql.Tx.
type ledgerTx struct {
	q   *Queries
	now func() time.Time
}

func (t *ledgerTx) GetAccountForUpdate(ctx context.Context, id int64) (core.Account, error) {
	a, err := t.q.GetAccountForUpdate(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("lock account %d: %w", id, notFound(err))
	}
	return a, nil
}

func (t *ledgerTx) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := t.q.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, notFound(err))
	}
	return c, nil
}

func (t *ledgerTx) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := t.q.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, notFound(err))
	}
	return tx, nil
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	id, err := t.q.CreateTransaction(ctx, n, t.now())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t.GetTransaction(ctx, id)
}

func (t *ledgerTx) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := t.q.UpdateTransaction(ctx, tx, t.now()); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return t.GetTransaction(ctx, tx.ID)
}

func (t *ledgerTx) DeleteTransaction(ctx context.Context, id int64) error {
	if err := t.q.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func (t *ledgerTx) UpdateAccountBalance(ctx context.Context, id int64, balance core.Money) error {
	if err := t.q.UpdateAccountBalance(ctx, id, balance, t.now()); err != nil {
		return fmt.Errorf("update account %d balance: %w", id, err)
	}
	return nil
}
