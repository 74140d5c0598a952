package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionType
		ok   bool
	}{
		{"INCOME", Income, true},
		{"expense", Expense, true},
		{" Income ", Income, true},
		{"TRANSFER", 0, false},
		{"", 0, false},
	}
	for i, tc := range cases {
		got, err := ParseTransactionType(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("case %d: got %v, %v", i, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidType) {
			t.Fatalf("case %d expected ErrInvalidType, got %v", i, err)
		}
	}
}

func TestTransactionTypeJSON(t *testing.T) {
	b, err := json.Marshal(Expense)
	if err != nil || string(b) != `"EXPENSE"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}
	var tt TransactionType
	if err := json.Unmarshal([]byte(`"income"`), &tt); err != nil || tt != Income {
		t.Fatalf("unmarshal = %v, %v", tt, err)
	}
	if _, err := json.Marshal(TransactionType(0)); err == nil {
		t.Fatal("expected error marshalling zero type")
	}
}

func TestSignedEffect(t *testing.T) {
	amt := MoneyFromCents(1234)
	if got := Income.SignedEffect(amt); !got.Equal(amt) {
		t.Errorf("income effect = %s", got)
	}
	if got := Expense.SignedEffect(amt); !got.Equal(amt.Neg()) {
		t.Errorf("expense effect = %s", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid type")
		}
	}()
	TransactionType(9).SignedEffect(amt)
}

func TestAccountApplyAndReverse(t *testing.T) {
	acc := Account{Balance: MoneyFromCents(1000000)}

	if err := acc.Apply(Expense, MoneyFromCents(500000)); err != nil {
		t.Fatalf("apply expense: %v", err)
	}
	if acc.Balance.Cents() != 500000 {
		t.Fatalf("balance = %s", acc.Balance)
	}

	// Exactly to zero is allowed.
	if err := acc.Apply(Expense, MoneyFromCents(500000)); err != nil {
		t.Fatalf("apply to zero: %v", err)
	}
	if err := acc.Apply(Expense, MoneyFromCents(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !acc.Balance.IsZero() {
		t.Fatalf("failed apply mutated balance: %s", acc.Balance)
	}

	acc.Reverse(Expense, MoneyFromCents(500000))
	if acc.Balance.Cents() != 500000 {
		t.Fatalf("after reverse expense = %s", acc.Balance)
	}
	// Reversing income may go below zero.
	acc.Reverse(Income, MoneyFromCents(600000))
	if acc.Balance.Cents() != -100000 {
		t.Fatalf("after reverse income = %s", acc.Balance)
	}
	// Income is accepted on a negative balance.
	if err := acc.Apply(Income, MoneyFromCents(1)); err != nil {
		t.Fatalf("apply income on negative balance: %v", err)
	}
}

func TestAccountApplyRejectsOversizedBalance(t *testing.T) {
	largest := MoneyFromCents(999_999_999_999_999)
	acc := Account{Balance: largest.Sub(MoneyFromCents(1))}
	if err := acc.Apply(Income, MoneyFromCents(1)); err != nil {
		t.Fatalf("apply up to the limit: %v", err)
	}
	if err := acc.Apply(Income, MoneyFromCents(1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if !acc.Balance.Equal(largest) {
		t.Fatalf("failed apply mutated balance: %s", acc.Balance)
	}
}

func TestTransactionFieldsValidate(t *testing.T) {
	good := TransactionFields{
		CategoryID:      1,
		Type:            Expense,
		Amount:          MoneyFromCents(100),
		TransactionDate: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(f *TransactionFields)
		want   error
	}{
		{"missing category", func(f *TransactionFields) { f.CategoryID = 0 }, ErrInvalidArgument},
		{"invalid type", func(f *TransactionFields) { f.Type = 0 }, ErrInvalidType},
		{"zero amount", func(f *TransactionFields) { f.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(f *TransactionFields) { f.Amount = MoneyFromCents(-1) }, ErrInvalidAmount},
		{"missing date", func(f *TransactionFields) { f.TransactionDate = time.Time{} }, ErrMissingDate},
		{"memo too long", func(f *TransactionFields) { f.Memo = strings.Repeat("가", MaxMemoLen+1) }, ErrInvalidArgument},
		{"amount past column width", func(f *TransactionFields) { f.Amount = MoneyFromCents(1_000_000_000_000_000) }, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := good
			tt.mutate(&f)
			if err := f.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if err := (NewTransaction{TransactionFields: good}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("missing account id: got %v", err)
	}
}

func TestNewAccountValidate(t *testing.T) {
	if err := (NewAccount{BankName: "KB", InitialBalance: MoneyFromCents(0)}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []struct {
		acc  NewAccount
		want error
	}{
		{NewAccount{BankName: "  "}, ErrEmptyBankName},
		{NewAccount{BankName: strings.Repeat("b", MaxBankNameLen+1)}, ErrInvalidArgument},
		{NewAccount{BankName: "KB", Alias: strings.Repeat("a", MaxAliasLen+1)}, ErrInvalidArgument},
		{NewAccount{BankName: "KB", InitialBalance: MoneyFromCents(-1)}, ErrNegativeBalance},
		{NewAccount{BankName: "KB", InitialBalance: MoneyFromCents(1_000_000_000_000_000)}, ErrInvalidAmount},
	}
	for i, b := range bads {
		if err := b.acc.Validate(); !errors.Is(err, b.want) {
			t.Fatalf("case %d: got %v, want %v", i, err, b.want)
		}
	}
}

func TestNewCategoryValidate(t *testing.T) {
	if err := (NewCategory{Name: "식비", Type: Expense, Icon: "🍚"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (NewCategory{Name: "", Type: Expense}).Validate(); !errors.Is(err, ErrEmptyCategoryName) {
		t.Fatalf("got %v", err)
	}
	if err := (NewCategory{Name: "x", Type: 0}).Validate(); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("got %v", err)
	}
	// Limits count characters, not bytes.
	if err := (NewCategory{Name: strings.Repeat("식", MaxCategoryNameLen), Type: Income}).Validate(); err != nil {
		t.Fatalf("50 hangul characters should be accepted: %v", err)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 1))
	if err != nil || string(b) != `"2024-03-01"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-02-29"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.February || d.Day() != 29 {
		t.Errorf("unmarshal = %v", d)
	}
	if _, err := ParseDate("2024-02-30"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid date error, got %v", err)
	}
}

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	in := time.Date(2024, 3, 15, 23, 30, 15, 999, loc)
	got := NormalizeTime(in)
	want := time.Date(2024, 3, 15, 23, 30, 15, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NormalizeTime = %v, want %v", got, want)
	}
}
