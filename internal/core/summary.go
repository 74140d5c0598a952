package core

import "sort"

// CategoryAmount is one row of a per-type category breakdown.
type CategoryAmount struct {
	CategoryID   int64   `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Amount       Money   `json:"amount"`
	Percentage   float64 `json:"percentage"`
}

// Flow holds income, expense and their difference over some period.
type Flow struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// Summary is the part shared by every statistics report.
type Summary struct {
	TotalIncome       Money            `json:"totalIncome"`
	TotalExpense      Money            `json:"totalExpense"`
	Balance           Money            `json:"balance"`
	IncomeByCategory  []CategoryAmount `json:"categoryIncomes"`
	ExpenseByCategory []CategoryAmount `json:"categoryExpenses"`
}

type WeekBucket struct {
	Week      int  `json:"week"`
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
	Flow
}

type DayBucket struct {
	Date Date `json:"date"`
	Flow
}

type MonthBucket struct {
	Month int `json:"month"`
	Flow
}

type MonthlyStatistics struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Summary
	WeeklyBreakdown []WeekBucket `json:"weeklyExpenses"`
}

type WeeklyStatistics struct {
	Year      int  `json:"year"`
	Week      int  `json:"week"`
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
	Summary
	DailyBreakdown []DayBucket `json:"dailyExpenses"`
}

type YearlyStatistics struct {
	Year int `json:"year"`
	Summary
	MonthlyBreakdown []MonthBucket `json:"monthlyExpenses"`
}

// SumFlow totals income and expense over txs.
func SumFlow(txs []Transaction) Flow {
	var f Flow
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			f.Income = f.Income.Add(tx.Amount)
		case Expense:
			f.Expense = f.Expense.Add(tx.Amount)
		}
	}
	f.Balance = f.Income.Sub(f.Expense)
	return f
}

// FlowWithin totals only the transactions dated inside r.
func FlowWithin(txs []Transaction, r DateRange) Flow {
	var in []Transaction
	for _, tx := range txs {
		if r.Contains(tx.TransactionDate) {
			in = append(in, tx)
		}
	}
	return SumFlow(in)
}

// BreakdownByCategory groups the txs of type t by category, sorted by amount
// descending and then by category id. Percentages are relative to total.
func BreakdownByCategory(txs []Transaction, t TransactionType, total Money) []CategoryAmount {
	idx := map[int64]int{}
	out := []CategoryAmount{}
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		i, ok := idx[tx.CategoryID]
		if !ok {
			i = len(out)
			idx[tx.CategoryID] = i
			out = append(out, CategoryAmount{CategoryID: tx.CategoryID, CategoryName: tx.CategoryName})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
	}
	for i := range out {
		out[i].Percentage = Percentage(out[i].Amount, total)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// Summarize computes totals and both category breakdowns.
func Summarize(txs []Transaction) Summary {
	f := SumFlow(txs)
	return Summary{
		TotalIncome:       f.Income,
		TotalExpense:      f.Expense,
		Balance:           f.Balance,
		IncomeByCategory:  BreakdownByCategory(txs, Income, f.Income),
		ExpenseByCategory: BreakdownByCategory(txs, Expense, f.Expense),
	}
}
