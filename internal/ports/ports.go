package ports

import (
	"context"

	"budgetbook/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerTx is the store as seen from inside one unit of work. Every
	// write made through it commits or rolls back together.
	LedgerTx interface {
		// GetAccountForUpdate loads the account and holds it until the unit
		// of work ends, so concurrent writers to one account serialize.
		GetAccountForUpdate(ctx context.Context, id int64) (core.Account, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		InsertTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
		UpdateAccountBalance(ctx context.Context, id int64, balance core.Money) error
	}

	UnitOfWork interface {
		// WithTx runs fn inside one transaction. Any error returned by fn,
		// or by commit, rolls back every write fn made.
		WithTx(ctx context.Context, fn func(LedgerTx) error) error
	}

	TransactionReader interface {
		// ListTransactions returns one page ordered by transaction date,
		// newest first, plus the total number of matching rows.
		ListTransactions(ctx context.Context, q TransactionQuery) (items []core.Transaction, total int, err error)
		// ListTransactionsInRange returns the user's transactions dated in r.
		// accountID 0 means every account.
		ListTransactionsInRange(ctx context.Context, userID string, r core.DateRange, accountID int64) ([]core.Transaction, error)
		// SignedTotal is Σ signed effects of every transaction on the account.
		SignedTotal(ctx context.Context, accountID int64) (core.Money, error)
	}

	AccountStore interface {
		CreateAccount(ctx context.Context, userID string, n core.NewAccount) (core.Account, error)
		GetAccount(ctx context.Context, id int64) (core.Account, error)
		// ListAccounts filters by bank name when bankName is not empty.
		ListAccounts(ctx context.Context, userID, bankName string) ([]core.Account, error)
		ListAccountIDs(ctx context.Context) ([]int64, error)
		UpdateAccountAlias(ctx context.Context, id int64, alias string) (core.Account, error)
		DeleteAccount(ctx context.Context, id int64) error
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, userID string, n core.NewCategory) (core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		// ListCategories filters by type unless t is the zero value.
		ListCategories(ctx context.Context, userID string, t core.TransactionType) ([]core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
		CountCategoryTransactions(ctx context.Context, id int64) (int, error)
	}

	Store interface {
		UnitOfWork
		TransactionReader
		AccountStore
		CategoryStore
		Ping(ctx context.Context) error
		Close() error
	}

	// EventPublisher announces committed ledger writes.
	EventPublisher interface {
		PublishTransactionEvent(ctx context.Context, op string, tx core.Transaction, userID string) error
	}
)

// TransactionQuery selects one page of a user's transactions.
type TransactionQuery struct {
	UserID    string
	AccountID int64 // 0 = all accounts
	Page      int   // 0-based
	Size      int
}

func (q TransactionQuery) Offset() int {
	return q.Page * q.Size
}

// Ledger event operations.
const (
	OpTransactionCreated = "transaction.created"
	OpTransactionUpdated = "transaction.updated"
	OpTransactionDeleted = "transaction.deleted"
)
