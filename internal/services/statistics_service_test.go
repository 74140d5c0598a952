package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetbook/internal/cache"
	"budgetbook/internal/core"
	"budgetbook/internal/ports"
	"budgetbook/internal/storage/memory"
)

type countingReader struct {
	RangeReader
	calls atomic.Int32
}

func (c *countingReader) ListTransactionsInRange(ctx context.Context, userID string, r core.DateRange, accountID int64) ([]core.Transaction, error) {
	c.calls.Add(1)
	return c.RangeReader.ListTransactionsInRange(ctx, userID, r, accountID)
}

func seedYear(t *testing.T, store ports.Store) *fixture {
	t.Helper()
	f := newFixture(t, store, 0)
	rent, _ := store.CreateCategory(f.ctx, "alice", core.NewCategory{Name: "월세", Type: core.Expense})
	bonus, _ := store.CreateCategory(f.ctx, "alice", core.NewCategory{Name: "보너스", Type: core.Income})
	for m := 1; m <= 12; m++ {
		f.create(t, f.salary, 300000, time.Date(2024, time.Month(m), 1, 9, 0, 0, 0, time.UTC))
		f.create(t, rent, 100000, time.Date(2024, time.Month(m), 5, 0, 0, 0, 0, time.UTC))
		f.create(t, f.food, int64(1000*m), time.Date(2024, time.Month(m), 28, 23, 59, 59, 0, time.UTC))
	}
	f.create(t, bonus, 50001, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC))
	// Outside the year.
	f.create(t, f.salary, 777, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return f
}

func TestMonthlyDecomposition(t *testing.T) {
	eachStore(t, func(t *testing.T, store ports.Store) {
		f := seedYear(t, store)
		svc := NewStatisticsService(store, nil)
		for m := 1; m <= 12; m++ {
			stats, err := svc.Monthly(f.ctx, "alice", 2024, m)
			if err != nil {
				t.Fatal(err)
			}
			var income, expense core.Money
			for _, w := range stats.WeeklyBreakdown {
				income = income.Add(w.Income)
				expense = expense.Add(w.Expense)
				if !w.Balance.Equal(w.Income.Sub(w.Expense)) {
					t.Errorf("week %d balance mismatch", w.Week)
				}
			}
			if !expense.Equal(stats.TotalExpense) || !income.Equal(stats.TotalIncome) {
				t.Errorf("month %d: weeks sum to %s/%s, totals %s/%s", m, income, expense, stats.TotalIncome, stats.TotalExpense)
			}
			if n := len(stats.WeeklyBreakdown); n < 4 || n > 5 {
				t.Errorf("month %d has %d windows", m, n)
			}
			if stats.WeeklyBreakdown[0].Week != 1 || stats.WeeklyBreakdown[0].StartDate.Day() != 1 {
				t.Errorf("first window = %+v", stats.WeeklyBreakdown[0])
			}
		}
	})
}

func TestMonthlyWindowBoundaries(t *testing.T) {
	r, _ := core.MonthRange(2024, 2)
	txs := []core.Transaction{
		{Type: core.Expense, Amount: core.MoneyFromCents(100), TransactionDate: time.Date(2024, 2, 7, 23, 59, 59, 0, time.UTC)},
		{Type: core.Expense, Amount: core.MoneyFromCents(200), TransactionDate: time.Date(2024, 2, 8, 0, 0, 0, 0, time.UTC)},
		{Type: core.Income, Amount: core.MoneyFromCents(300), TransactionDate: time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)},
	}
	stats := MonthlyReport(2024, 2, r, txs)
	if len(stats.WeeklyBreakdown) != 5 {
		t.Fatalf("February 2024 windows = %d", len(stats.WeeklyBreakdown))
	}
	w := stats.WeeklyBreakdown
	if w[0].Expense.Cents() != 100 || w[1].Expense.Cents() != 200 || w[4].Income.Cents() != 300 {
		t.Errorf("windows = %+v", w)
	}
	if w[4].StartDate.String() != "2024-02-29" || w[4].EndDate.String() != "2024-02-29" {
		t.Errorf("last window = %s..%s", w[4].StartDate, w[4].EndDate)
	}
	if w[1].StartDate.String() != "2024-02-08" || w[1].EndDate.String() != "2024-02-14" {
		t.Errorf("second window = %s..%s", w[1].StartDate, w[1].EndDate)
	}
}

func TestYearlyDecomposition(t *testing.T) {
	eachStore(t, func(t *testing.T, store ports.Store) {
		f := seedYear(t, store)
		stats, err := NewStatisticsService(store, nil).Yearly(f.ctx, "alice", 2024)
		if err != nil {
			t.Fatal(err)
		}
		if len(stats.MonthlyBreakdown) != 12 {
			t.Fatalf("months = %d", len(stats.MonthlyBreakdown))
		}
		var income core.Money
		for i, m := range stats.MonthlyBreakdown {
			if m.Month != i+1 {
				t.Errorf("entry %d is month %d", i, m.Month)
			}
			income = income.Add(m.Income)
		}
		if !income.Equal(stats.TotalIncome) {
			t.Errorf("months sum to %s, total %s", income, stats.TotalIncome)
		}
		if stats.TotalIncome.Cents() != 12*300000+50001 {
			t.Errorf("total income = %s", stats.TotalIncome)
		}
		if stats.MonthlyBreakdown[11].Income.Cents() != 350001 {
			t.Errorf("december income = %s", stats.MonthlyBreakdown[11].Income)
		}

		sum := 0.0
		for _, c := range stats.IncomeByCategory {
			sum += c.Percentage
		}
		if math.Abs(sum-100) > 0.5 {
			t.Errorf("income percentages sum to %v", sum)
		}
		if stats.IncomeByCategory[0].CategoryName != "급여" {
			t.Errorf("largest income category = %s", stats.IncomeByCategory[0].CategoryName)
		}
	})
}

func TestYearlyZeroFilled(t *testing.T) {
	stats := YearlyReport(2030, nil)
	if len(stats.MonthlyBreakdown) != 12 {
		t.Fatalf("months = %d", len(stats.MonthlyBreakdown))
	}
	for _, m := range stats.MonthlyBreakdown {
		if !m.Income.IsZero() || !m.Expense.IsZero() || !m.Balance.IsZero() {
			t.Errorf("month %d not zero: %+v", m.Month, m)
		}
	}
	if len(stats.IncomeByCategory) != 0 || stats.IncomeByCategory == nil {
		t.Errorf("empty breakdown should be an empty list, got %#v", stats.IncomeByCategory)
	}
}

func TestWeeklyReport(t *testing.T) {
	eachStore(t, func(t *testing.T, store ports.Store) {
		f := newFixture(t, store, 0)
		// ISO 2024-W11 is Monday 11 March to Sunday 17 March.
		f.create(t, f.salary, 1000, time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC))
		f.create(t, f.salary, 2000, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC))
		f.create(t, f.food, 500, time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC))
		f.create(t, f.salary, 4000, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC))

		stats, err := NewStatisticsService(store, nil).Weekly(f.ctx, "alice", 2024, 11)
		if err != nil {
			t.Fatal(err)
		}
		if stats.StartDate.String() != "2024-03-11" || stats.EndDate.String() != "2024-03-17" {
			t.Fatalf("range = %s..%s", stats.StartDate, stats.EndDate)
		}
		if len(stats.DailyBreakdown) != 7 {
			t.Fatalf("days = %d", len(stats.DailyBreakdown))
		}
		if stats.TotalIncome.Cents() != 2000 || stats.TotalExpense.Cents() != 500 || stats.Balance.Cents() != 1500 {
			t.Errorf("totals = %s/%s/%s", stats.TotalIncome, stats.TotalExpense, stats.Balance)
		}
		if d := stats.DailyBreakdown[0]; d.Date.String() != "2024-03-11" || d.Income.Cents() != 2000 {
			t.Errorf("monday = %+v", d)
		}
		if d := stats.DailyBreakdown[6]; d.Date.String() != "2024-03-17" || d.Expense.Cents() != 500 {
			t.Errorf("sunday = %+v", d)
		}
		if d := stats.DailyBreakdown[3]; !d.Income.IsZero() || !d.Expense.IsZero() {
			t.Errorf("thursday should be empty: %+v", d)
		}
	})
}

func TestStatisticsInvalidArguments(t *testing.T) {
	svc := NewStatisticsService(memory.New(), nil)
	ctx := context.Background()
	checks := []error{
		func() error { _, err := svc.Monthly(ctx, "u", 2024, 13); return err }(),
		func() error { _, err := svc.Monthly(ctx, "u", 1899, 1); return err }(),
		func() error { _, err := svc.Weekly(ctx, "u", 2024, 0); return err }(),
		func() error { _, err := svc.Weekly(ctx, "u", 2024, 53); return err }(),
		func() error { _, err := svc.Yearly(ctx, "u", 2101); return err }(),
	}
	for i, err := range checks {
		if !errors.Is(err, core.ErrInvalidPeriod) || !core.IsInvalidInput(err) {
			t.Errorf("check %d: got %v", i, err)
		}
	}
}

func TestStatisticsCacheInvalidatedByLedgerWrites(t *testing.T) {
	store := memory.New()
	f := newFixture(t, store, 0)
	reader := &countingReader{RangeReader: store}
	svc := NewStatisticsService(reader, nil).WithCache(cache.NewLRUCache[any](16, time.Minute))
	f.ledger.OnCommit(svc.InvalidateOnCommit)

	f.create(t, f.salary, 1000, march(1))
	first, _ := svc.Monthly(f.ctx, "alice", 2024, 3)
	if _, err := svc.Monthly(f.ctx, "alice", 2024, 3); err != nil {
		t.Fatal(err)
	}
	if n := reader.calls.Load(); n != 1 {
		t.Fatalf("expected one store read, got %d", n)
	}

	f.create(t, f.salary, 500, march(2))
	second, _ := svc.Monthly(f.ctx, "alice", 2024, 3)
	if reader.calls.Load() != 2 {
		t.Fatalf("write did not invalidate the cache")
	}
	if first.TotalIncome.Cents() != 1000 || second.TotalIncome.Cents() != 1500 {
		t.Errorf("totals = %s then %s", first.TotalIncome, second.TotalIncome)
	}

	// Another user's write leaves alice's entries alone.
	svc.Invalidate("bob")
	svc.Monthly(f.ctx, "alice", 2024, 3)
	if reader.calls.Load() != 2 {
		t.Errorf("unrelated invalidation dropped alice's report")
	}
}

// invalidatingReader simulates a ledger write landing while a report is
// being computed.
type invalidatingReader struct {
	RangeReader
	svc   *StatisticsService
	calls atomic.Int32
}

func (r *invalidatingReader) ListTransactionsInRange(ctx context.Context, userID string, dr core.DateRange, accountID int64) ([]core.Transaction, error) {
	if r.calls.Add(1) == 1 {
		r.svc.Invalidate(userID)
	}
	return r.RangeReader.ListTransactionsInRange(ctx, userID, dr, accountID)
}

func TestStatisticsCacheSkipsReportComputedAcrossWrite(t *testing.T) {
	store := memory.New()
	f := newFixture(t, store, 0)
	f.create(t, f.salary, 1000, march(1))

	reader := &invalidatingReader{RangeReader: store}
	lru := cache.NewLRUCache[any](16, time.Minute)
	svc := NewStatisticsService(reader, nil).WithCache(lru)
	reader.svc = svc

	if _, err := svc.Monthly(f.ctx, "alice", 2024, 3); err != nil {
		t.Fatal(err)
	}
	if lru.Size() != 0 {
		t.Fatalf("report computed across an invalidation was cached")
	}

	if _, err := svc.Monthly(f.ctx, "alice", 2024, 3); err != nil {
		t.Fatal(err)
	}
	if lru.Size() != 1 || reader.calls.Load() != 2 {
		t.Fatalf("cache size %d after %d reads, want 1 after 2", lru.Size(), reader.calls.Load())
	}
}

func TestStatisticsInvalidateConcurrentWithReads(t *testing.T) {
	store := memory.New()
	f := newFixture(t, store, 0)
	f.create(t, f.salary, 1000, march(1))
	svc := NewStatisticsService(store, nil).WithCache(cache.NewLRUCache[any](16, time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Monthly(f.ctx, "alice", 2024, 3)
		}()
		go func() {
			defer wg.Done()
			svc.Invalidate("alice")
		}()
	}
	wg.Wait()

	// No write happened, so whatever is cached must match the store.
	got, err := svc.Monthly(f.ctx, "alice", 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalIncome.Cents() != 1000 {
		t.Errorf("totalIncome = %s", got.TotalIncome)
	}
}
