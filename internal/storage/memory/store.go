// Package memory is an in-process ports.Store for tests and demos.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/ports"
)

type Store struct {
	mu         sync.RWMutex
	seq        int64
	accounts   map[int64]core.Account
	categories map[int64]core.Category
	txs        map[int64]core.Transaction
	now        func() time.Time
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:   map[int64]core.Account{},
		categories: map[int64]core.Category{},
		txs:        map[int64]core.Transaction{},
		now:        func() time.Time { return core.NormalizeTime(time.Now()) },
	}
}

// SeedCategoriesFromFile creates categories for userID from a file holding
// one "TYPE name [icon]" entry per line. Blank lines and # comments are
// skipped. A missing file is not an error.
func (s *Store) SeedCategoriesFromFile(userID, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return n, fmt.Errorf("seed line %q: want TYPE name [icon]", line)
		}
		typ, err := core.ParseTransactionType(fields[0])
		if err != nil {
			return n, err
		}
		nc := core.NewCategory{Name: fields[1], Type: typ}
		if len(fields) > 2 {
			nc.Icon = fields[2]
		}
		if err := nc.Validate(); err != nil {
			return n, err
		}
		if _, err := s.CreateCategory(context.Background(), userID, nc); err != nil {
			return n, err
		}
		n++
	}
	return n, sc.Err()
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// WithTx holds the write lock for the whole of fn and restores the previous
// accounts and transactions if fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(ports.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make(map[int64]core.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	txs := make(map[int64]core.Transaction, len(s.txs))
	for k, v := range s.txs {
		txs[k] = v
	}
	seq := s.seq

	if err := fn(&ledgerTx{s: s}); err != nil {
		s.accounts, s.txs, s.seq = accounts, txs, seq
		return err
	}
	return nil
}

// hydrate fills the denormalized account and category fields. Caller holds mu.
func (s *Store) hydrate(t core.Transaction) core.Transaction {
	a := s.accounts[t.AccountID]
	t.AccountAlias, t.AccountBankName = a.Alias, a.BankName
	t.CategoryName = s.categories[t.CategoryID].Name
	return t
}

func (s *Store) userTransactions(userID string, keep func(core.Transaction) bool) []core.Transaction {
	out := []core.Transaction{}
	for _, t := range s.txs {
		if a, ok := s.accounts[t.AccountID]; !ok || a.UserID != userID {
			continue
		}
		if keep(t) {
			out = append(out, s.hydrate(t))
		}
	}
	return out
}

func (s *Store) ListTransactions(_ context.Context, q ports.TransactionQuery) ([]core.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.userTransactions(q.UserID, func(t core.Transaction) bool {
		return q.AccountID == 0 || t.AccountID == q.AccountID
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].TransactionDate.Equal(all[j].TransactionDate) {
			return all[i].TransactionDate.After(all[j].TransactionDate)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	from := q.Offset()
	if from < 0 || from > total {
		from = total
	}
	to := from + q.Size
	if to > total {
		to = total
	}
	return all[from:to], total, nil
}

func (s *Store) ListTransactionsInRange(_ context.Context, userID string, r core.DateRange, accountID int64) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.userTransactions(userID, func(t core.Transaction) bool {
		return r.Contains(t.TransactionDate) && (accountID == 0 || t.AccountID == accountID)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SignedTotal(_ context.Context, accountID int64) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total core.Money
	for _, t := range s.txs {
		if t.AccountID == accountID {
			total = total.Add(t.Type.SignedEffect(t.Amount))
		}
	}
	return total, nil
}

func (s *Store) CreateAccount(_ context.Context, userID string, n core.NewAccount) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	a := core.Account{
		ID:             s.nextID(),
		UserID:         userID,
		BankName:       n.BankName,
		Alias:          n.Alias,
		Balance:        n.InitialBalance,
		InitialBalance: n.InitialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context, userID, bankName string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Account{}
	for _, a := range s.accounts {
		if a.UserID == userID && (bankName == "" || a.BankName == bankName) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAccountIDs(context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) UpdateAccountAlias(_ context.Context, id int64, alias string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("update account %d: %w", id, core.ErrNotFound)
	}
	a.Alias = alias
	a.UpdatedAt = s.now()
	s.accounts[id] = a
	return a, nil
}

// DeleteAccount also removes the account's transactions.
func (s *Store) DeleteAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("delete account %d: %w", id, core.ErrNotFound)
	}
	for tid, t := range s.txs {
		if t.AccountID == id {
			delete(s.txs, tid)
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CreateCategory(_ context.Context, userID string, n core.NewCategory) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := core.Category{
		ID:        s.nextID(),
		UserID:    userID,
		Name:      n.Name,
		Type:      n.Type,
		Icon:      n.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCategory(id)
}

func (s *Store) getCategory(id int64) (core.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, userID string, t core.TransactionType) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Category{}
	for _, c := range s.categories {
		if c.UserID == userID && (!t.Valid() || c.Type == t) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type.String() < out[j].Type.String()
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[c.ID]
	if !ok {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, core.ErrNotFound)
	}
	cur.Name, cur.Icon = c.Name, c.Icon
	cur.UpdatedAt = s.now()
	s.categories[c.ID] = cur
	return cur, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("delete category %d: %w", id, core.ErrNotFound)
	}
	for _, t := range s.txs {
		if t.CategoryID == id {
			return fmt.Errorf("delete category %d: %w", id, core.ErrCategoryInUse)
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CountCategoryTransactions(_ context.Context, id int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.txs {
		if t.CategoryID == id {
			n++
		}
	}
	return n, nil
}

// ledgerTx runs with Store.mu held for writing.
type ledgerTx struct {
	s *Store
}

func (t *ledgerTx) GetAccountForUpdate(_ context.Context, id int64) (core.Account, error) {
	a, ok := t.s.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("lock account %d: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (t *ledgerTx) GetCategory(_ context.Context, id int64) (core.Category, error) {
	return t.s.getCategory(id)
}

func (t *ledgerTx) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	tx, ok := t.s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, core.ErrNotFound)
	}
	return t.s.hydrate(tx), nil
}

func (t *ledgerTx) InsertTransaction(_ context.Context, n core.NewTransaction) (core.Transaction, error) {
	if _, ok := t.s.accounts[n.AccountID]; !ok {
		return core.Transaction{}, fmt.Errorf("insert transaction: account %d: %w", n.AccountID, core.ErrNotFound)
	}
	now := t.s.now()
	tx := core.Transaction{
		ID:              t.s.nextID(),
		AccountID:       n.AccountID,
		CategoryID:      n.CategoryID,
		Type:            n.Type,
		Amount:          n.Amount,
		Memo:            n.Memo,
		TransactionDate: core.NormalizeTime(n.TransactionDate),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	t.s.txs[tx.ID] = tx
	return t.s.hydrate(tx), nil
}

func (t *ledgerTx) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	cur, ok := t.s.txs[tx.ID]
	if !ok {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", tx.ID, core.ErrNotFound)
	}
	cur.CategoryID = tx.CategoryID
	cur.Type = tx.Type
	cur.Amount = tx.Amount
	cur.Memo = tx.Memo
	cur.TransactionDate = core.NormalizeTime(tx.TransactionDate)
	cur.UpdatedAt = t.s.now()
	t.s.txs[tx.ID] = cur
	return t.s.hydrate(cur), nil
}

func (t *ledgerTx) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := t.s.txs[id]; !ok {
		return fmt.Errorf("delete transaction %d: %w", id, core.ErrNotFound)
	}
	delete(t.s.txs, id)
	return nil
}

func (t *ledgerTx) UpdateAccountBalance(_ context.Context, id int64, balance core.Money) error {
	a, ok := t.s.accounts[id]
	if !ok {
		return fmt.Errorf("update account %d balance: %w", id, core.ErrNotFound)
	}
	a.Balance = balance
	a.UpdatedAt = t.s.now()
	t.s.accounts[id] = a
	return nil
}
