package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/ports"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "budgetbook.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	if got := Postgres.Rebind(q); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %s", got)
	}
	if Postgres.lockClause() != " FOR UPDATE" || SQLite.lockClause() != "" {
		t.Error("unexpected lock clauses")
	}
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	for _, src := range []interface{}{"2024-03-15 10:30:00", []byte("2024-03-15T10:30:00Z"), want.In(time.FixedZone("X", 3600))} {
		var ts Timestamp
		if err := ts.Scan(src); err != nil {
			t.Fatalf("scan %T: %v", src, err)
		}
		if src, ok := src.(time.Time); ok {
			// Wall clock is kept, the zone is dropped.
			if ts.Time.Hour() != src.Hour() {
				t.Errorf("scan time.Time hour = %d", ts.Time.Hour())
			}
			continue
		}
		if !ts.Time.Equal(want) {
			t.Errorf("scan %v = %v", src, ts.Time)
		}
	}
	var ts Timestamp
	if err := ts.Scan(42); err == nil {
		t.Error("expected error for int")
	}
}

func TestRepositoryAccountsAndCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	acc, err := repo.CreateAccount(ctx, "u1", core.NewAccount{BankName: "KB", Alias: "생활비", InitialBalance: core.MoneyFromCents(1000000)})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acc.ID == 0 || acc.Balance.Cents() != 1000000 || acc.InitialBalance.Cents() != 1000000 {
		t.Fatalf("account = %+v", acc)
	}
	if _, err := repo.CreateAccount(ctx, "u1", core.NewAccount{BankName: "Shinhan"}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateAccount(ctx, "u2", core.NewAccount{BankName: "KB"}); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ListAccounts(ctx, "u1", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("list accounts = %d, %v", len(all), err)
	}
	kb, err := repo.ListAccounts(ctx, "u1", "KB")
	if err != nil || len(kb) != 1 || kb[0].ID != acc.ID {
		t.Fatalf("filtered accounts = %+v, %v", kb, err)
	}

	renamed, err := repo.UpdateAccountAlias(ctx, acc.ID, "비상금")
	if err != nil || renamed.Alias != "비상금" || renamed.Balance.Cents() != 1000000 {
		t.Fatalf("rename = %+v, %v", renamed, err)
	}
	if _, err := repo.GetAccount(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	food, err := repo.CreateCategory(ctx, "u1", core.NewCategory{Name: "식비", Type: core.Expense, Icon: "rice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateCategory(ctx, "u1", core.NewCategory{Name: "급여", Type: core.Income}); err != nil {
		t.Fatal(err)
	}
	expenses, err := repo.ListCategories(ctx, "u1", core.Expense)
	if err != nil || len(expenses) != 1 || expenses[0].Name != "식비" {
		t.Fatalf("expense categories = %+v, %v", expenses, err)
	}
	every, _ := repo.ListCategories(ctx, "u1", 0)
	if len(every) != 2 {
		t.Fatalf("all categories = %d", len(every))
	}
	food.Name = "외식"
	updated, err := repo.UpdateCategory(ctx, food)
	if err != nil || updated.Name != "외식" || updated.Type != core.Expense {
		t.Fatalf("update category = %+v, %v", updated, err)
	}
}

func TestRepositoryLedgerTx(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	acc, _ := repo.CreateAccount(ctx, "u1", core.NewAccount{BankName: "KB", Alias: "main"})
	cat, _ := repo.CreateCategory(ctx, "u1", core.NewCategory{Name: "급여", Type: core.Income})
	date := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var created core.Transaction
	err := repo.WithTx(ctx, func(tx ports.LedgerTx) error {
		a, err := tx.GetAccountForUpdate(ctx, acc.ID)
		if err != nil {
			return err
		}
		created, err = tx.InsertTransaction(ctx, core.NewTransaction{
			AccountID: acc.ID,
			TransactionFields: core.TransactionFields{
				CategoryID: cat.ID, Type: core.Income, Amount: core.MoneyFromCents(300000000), Memo: "3월 급여", TransactionDate: date,
			},
		})
		if err != nil {
			return err
		}
		return tx.UpdateAccountBalance(ctx, a.ID, a.Balance.Add(created.Amount))
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if created.CategoryName != "급여" || created.AccountAlias != "main" || created.AccountBankName != "KB" {
		t.Errorf("denormalized fields missing: %+v", created)
	}
	if !created.TransactionDate.Equal(date) {
		t.Errorf("date = %v", created.TransactionDate)
	}

	// A failing unit of work leaves nothing behind.
	boom := errors.New("boom")
	err = repo.WithTx(ctx, func(tx ports.LedgerTx) error {
		if err := tx.UpdateAccountBalance(ctx, acc.ID, core.MoneyFromCents(1)); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, created.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := repo.GetAccount(ctx, acc.ID)
	if got.Balance.Cents() != 300000000 {
		t.Fatalf("rolled back balance = %s", got.Balance)
	}
	total, err := repo.SignedTotal(ctx, acc.ID)
	if err != nil || !total.Equal(got.Balance) {
		t.Fatalf("signed total = %s, %v", total, err)
	}

	items, n, err := repo.ListTransactions(ctx, ports.TransactionQuery{UserID: "u1", Size: 20})
	if err != nil || n != 1 || len(items) != 1 {
		t.Fatalf("list = %d/%d, %v", len(items), n, err)
	}
	if _, n, _ := repo.ListTransactions(ctx, ports.TransactionQuery{UserID: "u2", Size: 20}); n != 0 {
		t.Fatalf("other user sees %d transactions", n)
	}

	march, _ := core.MonthRange(2024, 3)
	inRange, err := repo.ListTransactionsInRange(ctx, "u1", march, 0)
	if err != nil || len(inRange) != 1 {
		t.Fatalf("in range = %d, %v", len(inRange), err)
	}
	feb, _ := core.MonthRange(2024, 2)
	if out, _ := repo.ListTransactionsInRange(ctx, "u1", feb, 0); len(out) != 0 {
		t.Fatalf("february should be empty, got %d", len(out))
	}

	if n, _ := repo.CountCategoryTransactions(ctx, cat.ID); n != 1 {
		t.Fatalf("category usage = %d", n)
	}

	// Deleting the account cascades to its transactions.
	if err := repo.DeleteAccount(ctx, acc.ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := repo.CountCategoryTransactions(ctx, cat.ID); n != 0 {
		t.Fatalf("transactions survived account delete: %d", n)
	}
	if err := repo.DeleteAccount(ctx, acc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestRepositoryPaging(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc, _ := repo.CreateAccount(ctx, "u1", core.NewAccount{BankName: "KB"})
	other, _ := repo.CreateAccount(ctx, "u1", core.NewAccount{BankName: "NH"})
	cat, _ := repo.CreateCategory(ctx, "u1", core.NewCategory{Name: "용돈", Type: core.Income})

	err := repo.WithTx(ctx, func(tx ports.LedgerTx) error {
		for i := 0; i < 5; i++ {
			accountID := acc.ID
			if i == 4 {
				accountID = other.ID
			}
			_, err := tx.InsertTransaction(ctx, core.NewTransaction{
				AccountID: accountID,
				TransactionFields: core.TransactionFields{
					CategoryID: cat.ID, Type: core.Income, Amount: core.MoneyFromCents(100),
					TransactionDate: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	page, total, err := repo.ListTransactions(ctx, ports.TransactionQuery{UserID: "u1", AccountID: acc.ID, Page: 1, Size: 3})
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(page) != 1 {
		t.Fatalf("page 1 = %d items of %d", len(page), total)
	}
	if page[0].TransactionDate.Day() != 1 {
		t.Errorf("newest first: last page should hold Jan 1, got %v", page[0].TransactionDate)
	}
}
