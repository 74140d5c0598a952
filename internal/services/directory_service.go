package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/ports"
)

// DirectoryStore is the persistence the account and category directory uses.
type DirectoryStore interface {
	ports.AccountStore
	ports.CategoryStore
}

// DirectoryService manages accounts and categories. It never changes an
// account balance; only the ledger does.
type DirectoryService struct {
	store  DirectoryStore
	logger *log.Logger
	// onAccountDeleted runs after an account and its transactions are gone.
	onAccountDeleted func(userID string)
}

func NewDirectoryService(store DirectoryStore, logger *log.Logger) *DirectoryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DirectoryService{
		store:  store,
		logger: logger.WithComponent(log.ComponentDirectory),
	}
}

// OnAccountDeleted registers fn to run after an account delete commits.
func (s *DirectoryService) OnAccountDeleted(fn func(userID string)) {
	s.onAccountDeleted = fn
}

func (s *DirectoryService) CreateAccount(ctx context.Context, userID string, n core.NewAccount) (core.Account, error) {
	n.BankName = strings.TrimSpace(n.BankName)
	n.Alias = strings.TrimSpace(n.Alias)
	if err := n.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	acc, err := s.store.CreateAccount(ctx, userID, n)
	if err != nil {
		return core.Account{}, err
	}
	s.logger.InfoContext(ctx, "Account created",
		log.FieldUserID, userID, log.FieldAccountID, acc.ID, "bank_name", acc.BankName, "balance", acc.Balance.String())
	return acc, nil
}

func (s *DirectoryService) ListAccounts(ctx context.Context, userID, bankName string) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, userID, strings.TrimSpace(bankName))
}

func (s *DirectoryService) GetAccount(ctx context.Context, userID string, id int64) (core.Account, error) {
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if !acc.IsOwner(userID) {
		s.logger.WarnContext(ctx, "Account ownership violation", log.FieldUserID, userID, log.FieldAccountID, id)
		return core.Account{}, fmt.Errorf("account %d: %w", id, core.ErrOwnershipViolation)
	}
	return acc, nil
}

func (s *DirectoryService) UpdateAccountAlias(ctx context.Context, userID string, id int64, alias string) (core.Account, error) {
	alias = strings.TrimSpace(alias)
	if utf8.RuneCountInString(alias) > core.MaxAliasLen {
		return core.Account{}, fmt.Errorf("%w: alias too long (max %d characters)", core.ErrInvalidArgument, core.MaxAliasLen)
	}
	if _, err := s.GetAccount(ctx, userID, id); err != nil {
		return core.Account{}, err
	}
	return s.store.UpdateAccountAlias(ctx, id, alias)
}

// DeleteAccount removes the account together with its transactions.
func (s *DirectoryService) DeleteAccount(ctx context.Context, userID string, id int64) error {
	if _, err := s.GetAccount(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Account deleted", log.FieldUserID, userID, log.FieldAccountID, id)
	if s.onAccountDeleted != nil {
		s.onAccountDeleted(userID)
	}
	return nil
}

func (s *DirectoryService) CreateCategory(ctx context.Context, userID string, n core.NewCategory) (core.Category, error) {
	n.Name = strings.TrimSpace(n.Name)
	n.Icon = strings.TrimSpace(n.Icon)
	if err := n.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return s.store.CreateCategory(ctx, userID, n)
}

// ListCategories filters by type unless t is the zero value.
func (s *DirectoryService) ListCategories(ctx context.Context, userID string, t core.TransactionType) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID, t)
}

// CategoryPatch carries the editable category fields; nil means unchanged.
type CategoryPatch struct {
	Name *string
	Icon *string
}

// UpdateCategory renames or re-icons a category. Its type never changes.
func (s *DirectoryService) UpdateCategory(ctx context.Context, userID string, id int64, p CategoryPatch) (core.Category, error) {
	cat, err := s.ownedCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	if p.Name != nil {
		cat.Name = strings.TrimSpace(*p.Name)
	}
	if p.Icon != nil {
		cat.Icon = strings.TrimSpace(*p.Icon)
	}
	check := core.NewCategory{Name: cat.Name, Type: cat.Type, Icon: cat.Icon}
	if err := check.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return s.store.UpdateCategory(ctx, cat)
}

// DeleteCategory refuses while any transaction references the category.
func (s *DirectoryService) DeleteCategory(ctx context.Context, userID string, id int64) error {
	if _, err := s.ownedCategory(ctx, userID, id); err != nil {
		return err
	}
	n, err := s.store.CountCategoryTransactions(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("category %d used by %d transactions: %w", id, n, core.ErrCategoryInUse)
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *DirectoryService) ownedCategory(ctx context.Context, userID string, id int64) (core.Category, error) {
	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if !cat.IsOwner(userID) {
		s.logger.WarnContext(ctx, "Category ownership violation", log.FieldUserID, userID, log.FieldCategoryID, id)
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrOwnershipViolation)
	}
	return cat, nil
}
