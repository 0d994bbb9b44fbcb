package memory

// Package memory provides an in-memory implementation used for development
// and tests. A settlement is applied inside one write-locked critical
// section, which gives it the same all-or-nothing, no-lost-update semantics
// the Postgres store gets from a transaction with row locks.
import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/errs"
	"github.com/coopware/treasury/internal/treasury"
)

// txKey orders transactions per account: asc by (Date, ID).
type txKey struct {
	Date time.Time
	ID   uuid.UUID
}

// Store is an in-memory implementation of every repository and writer used
// by the services and the API. It is guarded by an RWMutex.
type Store struct {
	mu           sync.RWMutex
	members      map[uuid.UUID]treasury.Member
	projects     map[uuid.UUID]treasury.Project
	accounts     map[uuid.UUID]treasury.FinancialAccount
	transactions map[uuid.UUID]*treasury.Transaction
	pledges      map[uuid.UUID]treasury.Pledge
	collections  map[uuid.UUID]treasury.Collection
	debts        map[uuid.UUID]treasury.Debt
	// Per-account sorted index of transactions for ordered range scans.
	txKeysByAccount map[uuid.UUID][]txKey
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		members:         make(map[uuid.UUID]treasury.Member),
		projects:        make(map[uuid.UUID]treasury.Project),
		accounts:        make(map[uuid.UUID]treasury.FinancialAccount),
		transactions:    make(map[uuid.UUID]*treasury.Transaction),
		pledges:         make(map[uuid.UUID]treasury.Pledge),
		collections:     make(map[uuid.UUID]treasury.Collection),
		debts:           make(map[uuid.UUID]treasury.Debt),
		txKeysByAccount: make(map[uuid.UUID][]txKey),
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedMember(m treasury.Member)   { s.mu.Lock(); s.members[m.ID] = m; s.mu.Unlock() }
func (s *Store) SeedProject(p treasury.Project) { s.mu.Lock(); s.projects[p.ID] = p; s.mu.Unlock() }
func (s *Store) SeedAccount(a treasury.FinancialAccount) {
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.mu.Unlock()
}
func (s *Store) SeedDebt(d treasury.Debt) { s.mu.Lock(); s.debts[d.ID] = d; s.mu.Unlock() }

// ApplySettlement validates the whole settlement under the write lock, then
// applies it. Either every row lands or none does, and two concurrent
// settlements against the same account serialize on the lock.
func (s *Store) ApplySettlement(_ context.Context, st treasury.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate first: no partial effect on failure
	next := make(map[uuid.UUID]int64, len(st.Deltas))
	for _, d := range st.Deltas {
		acc, ok := s.accounts[d.AccountID]
		if !ok {
			return errs.ErrNotFound
		}
		bal, _ := acc.CurrentBalance.MinorUnits()
		if prev, seen := next[d.AccountID]; seen {
			bal = prev
		}
		bal += d.AmountMinor
		if bal < 0 {
			return errs.ErrInsufficientFunds
		}
		next[d.AccountID] = bal
	}
	for _, id := range st.ReverseTransactionIDs {
		if _, ok := s.transactions[id]; !ok {
			return errs.ErrNotFound
		}
	}
	if st.DeletePledgeID != uuid.Nil {
		if _, ok := s.pledges[st.DeletePledgeID]; !ok {
			return errs.ErrNotFound
		}
	}

	// apply
	if st.Account != nil {
		s.accounts[st.Account.ID] = *st.Account
	}
	for accID, bal := range next {
		acc := s.accounts[accID]
		acc.CurrentBalance, _ = money.NewAmountFromMinorUnits(acc.Currency, bal)
		s.accounts[accID] = acc
	}
	for _, tx := range st.Transactions {
		t := tx
		s.transactions[t.ID] = &t
		s.insertTxIndexLocked(t.AccountID, txKey{Date: t.Date, ID: t.ID})
	}
	for _, id := range st.ReverseTransactionIDs {
		s.transactions[id].Reversed = true
	}
	if st.Pledge != nil {
		s.pledges[st.Pledge.ID] = *st.Pledge
	}
	if st.DeletePledgeID != uuid.Nil {
		delete(s.pledges, st.DeletePledgeID)
	}
	if st.Debt != nil {
		s.debts[st.Debt.ID] = *st.Debt
	}
	if st.Collection != nil {
		s.collections[st.Collection.ID] = *st.Collection
	}
	return nil
}

// --- Members and projects ---

func (s *Store) CreateMember(_ context.Context, m treasury.Member) (treasury.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
	return m, nil
}

func (s *Store) GetMember(_ context.Context, memberID uuid.UUID) (treasury.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return treasury.Member{}, errs.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMembers(_ context.Context) ([]treasury.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateProject(_ context.Context, p treasury.Project) (treasury.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) GetProject(_ context.Context, projectID uuid.UUID) (treasury.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return treasury.Project{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProjects(_ context.Context) ([]treasury.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Accounts ---

func (s *Store) GetAccount(_ context.Context, accountID uuid.UUID) (treasury.FinancialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return treasury.FinancialAccount{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountsByOwner(_ context.Context, ownerID uuid.UUID) ([]treasury.FinancialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.FinancialAccount, 0)
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListReceivingAccounts(_ context.Context) ([]treasury.FinancialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.FinancialAccount, 0)
	for _, a := range s.accounts {
		if a.Active && a.CanReceivePayments {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeactivateAccount soft-deletes; journal rows keep referencing the row.
func (s *Store) DeactivateAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return errs.ErrNotFound
	}
	a.Active = false
	s.accounts[accountID] = a
	return nil
}

// --- Transactions ---

func (s *Store) TransactionsByAccount(_ context.Context, accountID uuid.UUID, from, to *time.Time) ([]treasury.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.txKeysByAccount[accountID]
	out := make([]treasury.Transaction, 0, len(keys))
	for _, k := range keys {
		tx, ok := s.transactions[k.ID]
		if !ok {
			continue
		}
		if from != nil && tx.Date.Before(*from) {
			continue
		}
		if to != nil && tx.Date.After(*to) {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (s *Store) TransactionsByPledge(_ context.Context, pledgeID uuid.UUID) ([]treasury.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.PledgeID == pledgeID {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// --- Pledges ---

func (s *Store) CreatePledge(_ context.Context, p treasury.Pledge) (treasury.Pledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pledges[p.ID] = p
	return p, nil
}

func (s *Store) GetPledge(_ context.Context, pledgeID uuid.UUID) (treasury.Pledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pledges[pledgeID]
	if !ok {
		return treasury.Pledge{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdatePledge(_ context.Context, p treasury.Pledge) (treasury.Pledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pledges[p.ID]; !ok {
		return treasury.Pledge{}, errs.ErrNotFound
	}
	s.pledges[p.ID] = p
	return p, nil
}

func (s *Store) DeletePledge(_ context.Context, pledgeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pledges[pledgeID]; !ok {
		return errs.ErrNotFound
	}
	delete(s.pledges, pledgeID)
	return nil
}

func (s *Store) PledgesByMember(_ context.Context, memberID uuid.UUID) ([]treasury.Pledge, error) {
	return s.filterPledges(func(p treasury.Pledge) bool { return p.MemberID == memberID })
}

func (s *Store) PledgesByProject(_ context.Context, projectID uuid.UUID) ([]treasury.Pledge, error) {
	return s.filterPledges(func(p treasury.Pledge) bool { return p.ProjectID == projectID })
}

func (s *Store) filterPledges(keep func(treasury.Pledge) bool) ([]treasury.Pledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.Pledge, 0)
	for _, p := range s.pledges {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// --- Collections ---

func (s *Store) CollectionsByProject(_ context.Context, projectID uuid.UUID) ([]treasury.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.Collection, 0)
	for _, c := range s.collections {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// --- Debts ---

func (s *Store) CreateDebt(_ context.Context, d treasury.Debt) (treasury.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debts[d.ID] = d
	return d, nil
}

func (s *Store) GetDebt(_ context.Context, debtID uuid.UUID) (treasury.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debts[debtID]
	if !ok {
		return treasury.Debt{}, errs.ErrNotFound
	}
	return d, nil
}

func (s *Store) DebtsByMember(_ context.Context, memberID uuid.UUID) ([]treasury.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]treasury.Debt, 0)
	for _, d := range s.debts {
		if d.MemberID == memberID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// insertTxIndexLocked inserts k into the per-account sorted index, keeping
// order asc by (Date, ID). Caller must hold s.mu (write lock).
func (s *Store) insertTxIndexLocked(accountID uuid.UUID, k txKey) {
	keys := s.txKeysByAccount[accountID]
	i := sort.Search(len(keys), func(i int) bool {
		if keys[i].Date.After(k.Date) {
			return true
		}
		if keys[i].Date.Equal(k.Date) {
			return keys[i].ID.String() > k.ID.String()
		}
		return false
	})
	if i == len(keys) {
		s.txKeysByAccount[accountID] = append(keys, k)
		return
	}
	keys = append(keys, txKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	s.txKeysByAccount[accountID] = keys
}
