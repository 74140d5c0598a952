package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetbook/internal/core"
)

const accountColumns = `id, user_id, bank_name, alias, balance, initial_balance, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (core.Account, error) {
	var (
		a                core.Account
		created, updated Timestamp
	)
	err := row.Scan(&a.ID, &a.UserID, &a.BankName, &a.Alias, &a.Balance, &a.InitialBalance, &created, &updated)
	a.CreatedAt, a.UpdatedAt = created.Time, updated.Time
	return a, err
}

type CreateAccountParams struct {
	UserID         string
	BankName       string
	Alias          string
	InitialBalance core.Money
	Now            time.Time
}

const createAccount = `INSERT INTO accounts (user_id, bank_name, alias, balance, initial_balance, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + accountColumns

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (core.Account, error) {
	now := ts(arg.Now)
	row := q.queryRow(ctx, createAccount, arg.UserID, arg.BankName, arg.Alias, arg.InitialBalance, arg.InitialBalance, now, now)
	return scanAccount(row)
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return scanAccount(q.queryRow(ctx, getAccount, id))
}

func (q *Queries) GetAccountForUpdate(ctx context.Context, id int64) (core.Account, error) {
	return scanAccount(q.queryRow(ctx, getAccount+q.dialect.lockClause(), id))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts
WHERE user_id = ? AND (CAST(? AS TEXT) = '' OR bank_name = ?)
ORDER BY id`

func (q *Queries) ListAccounts(ctx context.Context, userID, bankName string) ([]core.Account, error) {
	rows, err := q.query(ctx, listAccounts, userID, bankName, bankName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const listAccountIDs = `SELECT id FROM accounts ORDER BY id`

func (q *Queries) ListAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.query(ctx, listAccountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const updateAccountAlias = `UPDATE accounts SET alias = ?, updated_at = ? WHERE id = ?
RETURNING ` + accountColumns

func (q *Queries) UpdateAccountAlias(ctx context.Context, id int64, alias string, now time.Time) (core.Account, error) {
	return scanAccount(q.queryRow(ctx, updateAccountAlias, alias, ts(now), id))
}

const updateAccountBalance = `UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateAccountBalance(ctx context.Context, id int64, balance core.Money, now time.Time) error {
	return expectOne(q.exec(ctx, updateAccountBalance, balance, ts(now), id))
}

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id int64) error {
	return expectOne(q.exec(ctx, deleteAccount, id))
}

const categoryColumns = `id, user_id, name, type, icon, created_at, updated_at`

func scanCategory(row interface{ Scan(...interface{}) error }) (core.Category, error) {
	var (
		c                core.Category
		created, updated Timestamp
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Icon, &created, &updated)
	c.CreatedAt, c.UpdatedAt = created.Time, updated.Time
	return c, err
}

const createCategory = `INSERT INTO categories (user_id, name, type, icon, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + categoryColumns

func (q *Queries) CreateCategory(ctx context.Context, userID string, n core.NewCategory, now time.Time) (core.Category, error) {
	t := ts(now)
	return scanCategory(q.queryRow(ctx, createCategory, userID, n.Name, n.Type, n.Icon, t, t))
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return scanCategory(q.queryRow(ctx, getCategory, id))
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories
WHERE user_id = ? AND (CAST(? AS TEXT) = '' OR type = ?)
ORDER BY type, name, id`

func (q *Queries) ListCategories(ctx context.Context, userID string, t core.TransactionType) ([]core.Category, error) {
	typ := ""
	if t.Valid() {
		typ = t.String()
	}
	rows, err := q.query(ctx, listCategories, userID, typ, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const updateCategory = `UPDATE categories SET name = ?, icon = ?, updated_at = ? WHERE id = ?
RETURNING ` + categoryColumns

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category, now time.Time) (core.Category, error) {
	return scanCategory(q.queryRow(ctx, updateCategory, c.Name, c.Icon, ts(now), c.ID))
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	return expectOne(q.exec(ctx, deleteCategory, id))
}

const countCategoryTransactions = `SELECT COUNT(*) FROM transactions WHERE category_id = ?`

func (q *Queries) CountCategoryTransactions(ctx context.Context, id int64) (int, error) {
	var n int
	err := q.queryRow(ctx, countCategoryTransactions, id).Scan(&n)
	return n, err
}

const transactionSelect = `SELECT t.id, t.account_id, t.category_id, t.type, t.amount, t.memo,
       t.transaction_date, t.created_at, t.updated_at,
       a.alias, a.bank_name, c.name
FROM transactions t
JOIN accounts a ON a.id = t.account_id
JOIN categories c ON c.id = t.category_id`

func scanTransaction(row interface{ Scan(...interface{}) error }) (core.Transaction, error) {
	var (
		t                      core.Transaction
		date, created, updated Timestamp
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.CategoryID, &t.Type, &t.Amount, &t.Memo,
		&date, &created, &updated,
		&t.AccountAlias, &t.AccountBankName, &t.CategoryName)
	t.TransactionDate, t.CreatedAt, t.UpdatedAt = date.Time, created.Time, updated.Time
	return t, err
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	items := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTransaction = transactionSelect + ` WHERE t.id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return scanTransaction(q.queryRow(ctx, getTransaction, id))
}

const createTransaction = `INSERT INTO transactions
(account_id, category_id, type, amount, memo, transaction_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateTransaction(ctx context.Context, n core.NewTransaction, now time.Time) (int64, error) {
	var id int64
	t := ts(now)
	err := q.queryRow(ctx, createTransaction,
		n.AccountID, n.CategoryID, n.Type, n.Amount, n.Memo, ts(n.TransactionDate), t, t).Scan(&id)
	return id, err
}

const updateTransaction = `UPDATE transactions
SET category_id = ?, type = ?, amount = ?, memo = ?, transaction_date = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction, now time.Time) error {
	return expectOne(q.exec(ctx, updateTransaction,
		t.CategoryID, t.Type, t.Amount, t.Memo, ts(t.TransactionDate), ts(now), t.ID))
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	return expectOne(q.exec(ctx, deleteTransaction, id))
}

const listTransactions = transactionSelect + `
WHERE a.user_id = ? AND (CAST(? AS BIGINT) = 0 OR t.account_id = ?)
ORDER BY t.transaction_date DESC, t.id DESC
LIMIT ? OFFSET ?`

const countTransactions = `SELECT COUNT(*) FROM transactions t
JOIN accounts a ON a.id = t.account_id
WHERE a.user_id = ? AND (CAST(? AS BIGINT) = 0 OR t.account_id = ?)`

func (q *Queries) ListTransactions(ctx context.Context, userID string, accountID int64, limit, offset int) ([]core.Transaction, error) {
	rows, err := q.query(ctx, listTransactions, userID, accountID, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (q *Queries) CountTransactions(ctx context.Context, userID string, accountID int64) (int, error) {
	var n int
	err := q.queryRow(ctx, countTransactions, userID, accountID, accountID).Scan(&n)
	return n, err
}

const listTransactionsInRange = transactionSelect + `
WHERE a.user_id = ? AND t.transaction_date >= ? AND t.transaction_date < ?
  AND (CAST(? AS BIGINT) = 0 OR t.account_id = ?)
ORDER BY t.transaction_date, t.id`

func (q *Queries) ListTransactionsInRange(ctx context.Context, userID string, r core.DateRange, accountID int64) ([]core.Transaction, error) {
	rows, err := q.query(ctx, listTransactionsInRange, userID, ts(r.Start), ts(r.End), accountID, accountID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listAccountEffects = `SELECT type, amount FROM transactions WHERE account_id = ?`

// SignedTotal sums in Go; SQLite would add TEXT amounts as floats.
func (q *Queries) SignedTotal(ctx context.Context, accountID int64) (core.Money, error) {
	rows, err := q.query(ctx, listAccountEffects, accountID)
	if err != nil {
		return core.Money{}, err
	}
	defer rows.Close()
	var total core.Money
	for rows.Next() {
		var (
			typ    core.TransactionType
			amount core.Money
		)
		if err := rows.Scan(&typ, &amount); err != nil {
			return core.Money{}, err
		}
		total = total.Add(typ.SignedEffect(amount))
	}
	return total, rows.Err()
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}
