package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TransactionType is the closed set {INCOME, EXPENSE}. The zero value is invalid.
type TransactionType uint8

const (
	Income TransactionType = iota + 1
	Expense
)

const (
	MaxBankNameLen     = 100
	MaxAliasLen        = 100
	MaxCategoryNameLen = 50
	MaxIconLen         = 50
	MaxMemoLen         = 255
)

type (
	Date struct {
		time.Time
	}

	Account struct {
		ID             int64     `json:"id"`
		UserID         string    `json:"-"`
		BankName       string    `json:"bankName"`
		Alias          string    `json:"alias"`
		Balance        Money     `json:"balance"`
		InitialBalance Money     `json:"initialBalance"`
		CreatedAt      time.Time `json:"createdAt"`
		UpdatedAt      time.Time `json:"updatedAt"`
	}

	Category struct {
		ID        int64           `json:"id"`
		UserID    string          `json:"-"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Icon      string          `json:"icon"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}

	Transaction struct {
		ID              int64           `json:"id"`
		AccountID       int64           `json:"accountId"`
		CategoryID      int64           `json:"categoryId"`
		Type            TransactionType `json:"type"`
		Amount          Money           `json:"amount"`
		Memo            string          `json:"memo"`
		TransactionDate time.Time       `json:"transactionDate"`
		CreatedAt       time.Time       `json:"createdAt"`
		UpdatedAt       time.Time       `json:"updatedAt"`

		// Denormalized from the joined account and category rows.
		AccountAlias    string `json:"accountAlias"`
		AccountBankName string `json:"accountBankName"`
		CategoryName    string `json:"categoryName"`
	}

	// TransactionFields are the caller-editable fields of a transaction.
	TransactionFields struct {
		CategoryID      int64
		Type            TransactionType
		Amount          Money
		Memo            string
		TransactionDate time.Time
	}

	NewTransaction struct {
		AccountID int64
		TransactionFields
	}

	NewAccount struct {
		BankName       string
		Alias          string
		InitialBalance Money
	}

	NewCategory struct {
		Name string
		Type TransactionType
		Icon string
	}
)

// ParseTransactionType accepts INCOME or EXPENSE, case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INCOME":
		return Income, nil
	case "EXPENSE":
		return Expense, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t TransactionType) String() string {
	switch t {
	case Income:
		return "INCOME"
	case Expense:
		return "EXPENSE"
	}
	return fmt.Sprintf("TransactionType(%d)", uint8(t))
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// SignedEffect is the contribution of amount to an account balance.
func (t TransactionType) SignedEffect(amount Money) Money {
	switch t {
	case Income:
		return amount
	case Expense:
		return amount.Neg()
	}
	panic(fmt.Sprintf("core: signed effect of %v", t))
}

func (t TransactionType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidType
	}
	return json.Marshal(t.String())
}

func (t *TransactionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidType, err)
	}
	parsed, err := ParseTransactionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner.
func (t *TransactionType) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan transaction type: unsupported %T", value)
	}
	parsed, err := ParseTransactionType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t TransactionType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, ErrInvalidType
	}
	return t.String(), nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidArgument, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeTime drops the zone and sub-second part, keeping wall-clock fields.
// Stored timestamps are naive business times compared as UTC.
func NormalizeTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func (a Account) IsOwner(userID string) bool {
	return a.UserID == userID
}

// Apply adds the signed effect of (t, amount) to the balance. An expense that
// would leave the balance below zero fails and leaves the account untouched.
func (a *Account) Apply(t TransactionType, amount Money) error {
	next := a.Balance.Add(t.SignedEffect(amount))
	if t == Expense && next.IsNegative() {
		return ErrInsufficientBalance
	}
	if !next.InRange() {
		return fmt.Errorf("%w: balance %s exceeds %d integer digits", ErrInvalidAmount, next, MaxDigits)
	}
	a.Balance = next
	return nil
}

// Reverse undoes the signed effect of (t, amount). It never fails.
func (a *Account) Reverse(t TransactionType, amount Money) {
	a.Balance = a.Balance.Sub(t.SignedEffect(amount))
}

func (c Category) IsOwner(userID string) bool {
	return c.UserID == userID
}

func (f TransactionFields) Validate() error {
	if f.CategoryID <= 0 {
		return fmt.Errorf("%w: category id", ErrInvalidArgument)
	}
	if !f.Type.Valid() {
		return ErrInvalidType
	}
	if err := f.Amount.Validate(); err != nil {
		return err
	}
	if f.TransactionDate.IsZero() {
		return ErrMissingDate
	}
	if utf8.RuneCountInString(f.Memo) > MaxMemoLen {
		return fmt.Errorf("%w: memo too long (max %d characters)", ErrInvalidArgument, MaxMemoLen)
	}
	return nil
}

func (n NewTransaction) Validate() error {
	if n.AccountID <= 0 {
		return fmt.Errorf("%w: account id", ErrInvalidArgument)
	}
	return n.TransactionFields.Validate()
}

func (n NewAccount) Validate() error {
	name := strings.TrimSpace(n.BankName)
	if name == "" {
		return ErrEmptyBankName
	}
	if utf8.RuneCountInString(name) > MaxBankNameLen {
		return fmt.Errorf("%w: bank name too long (max %d characters)", ErrInvalidArgument, MaxBankNameLen)
	}
	if utf8.RuneCountInString(n.Alias) > MaxAliasLen {
		return fmt.Errorf("%w: alias too long (max %d characters)", ErrInvalidArgument, MaxAliasLen)
	}
	if n.InitialBalance.IsNegative() {
		return ErrNegativeBalance
	}
	if !n.InitialBalance.InRange() {
		return fmt.Errorf("%w: initial balance %s exceeds %d integer digits", ErrInvalidAmount, n.InitialBalance, MaxDigits)
	}
	return nil
}

func (n NewCategory) Validate() error {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLen {
		return fmt.Errorf("%w: category name too long (max %d characters)", ErrInvalidArgument, MaxCategoryNameLen)
	}
	if !n.Type.Valid() {
		return ErrInvalidType
	}
	if utf8.RuneCountInString(n.Icon) > MaxIconLen {
		return fmt.Errorf("%w: icon too long (max %d characters)", ErrInvalidArgument, MaxIconLen)
	}
	return nil
}
