package core

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrOwnershipViolation   = errors.New("ownership violation")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
	ErrCategoryInUse        = errors.New("category is referenced by transactions")

	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrEmptyBankName     = errors.New("empty bank name")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrMissingDate       = errors.New("missing transaction date")
	ErrNegativeBalance   = errors.New("initial balance cannot be negative")
	ErrInvalidPeriod     = errors.New("invalid period")
)

// IsInvalidInput reports whether err stems from caller-supplied values.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidArgument, ErrCategoryTypeMismatch, ErrInvalidAmount, ErrInvalidType,
		ErrEmptyBankName, ErrEmptyCategoryName, ErrMissingDate, ErrNegativeBalance, ErrInvalidPeriod,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
