package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/errs"
	"github.com/coopware/treasury/internal/treasury"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T, dsn string) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func applyInitSQL(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Resolve init SQL path relative to this test file so CWD doesn't matter
	_, thisFile, _, _ := runtime.Caller(0)
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "../../../"))
	path := filepath.Join(repoRoot, "db", "migrations", "0001_init.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read init sql: %v", err)
	}
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		t.Fatalf("apply init sql: %v", err)
	}
}

func truncateAll(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, `truncate collections, transactions, pledges, debts, accounts, projects, members cascade`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func amt(t *testing.T, minor int64) money.Amount {
	t.Helper()
	a, err := money.NewAmountFromMinorUnits("GHS", minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return a
}

func seedFixture(t *testing.T, s *Store) (treasury.Member, treasury.FinancialAccount) {
	t.Helper()
	ctx := context.Background()
	member, err := s.CreateMember(ctx, treasury.Member{ID: uuid.New(), Name: "Ama Serwaa", Email: "ama@example.org"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	acc := treasury.FinancialAccount{
		ID: uuid.New(), OwnerID: member.ID, Name: "Main Cash", Currency: "GHS",
		InitialBalance: amt(t, 1000), CurrentBalance: amt(t, 1000),
		CanReceivePayments: true, Active: true,
	}
	if err := s.ApplySettlement(ctx, treasury.Settlement{Account: &acc}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return member, acc
}

func TestApplySettlement_Postgres(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	applyInitSQL(t, s)
	truncateAll(t, s)
	ctx := context.Background()
	_, acc := seedFixture(t, s)

	err := s.ApplySettlement(ctx, treasury.Settlement{
		Deltas: []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: 500}},
		Transactions: []treasury.Transaction{{
			ID: uuid.New(), AccountID: acc.ID, OwnerID: acc.OwnerID,
			Type: treasury.EntryIncome, Amount: amt(t, 500), Date: time.Now().UTC(), Description: "Dues",
		}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := s.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if minor, _ := got.CurrentBalance.MinorUnits(); minor != 1500 {
		t.Fatalf("balance = %d, want 1500", minor)
	}

	// overdraw rolls back both the delta and the journal row
	err = s.ApplySettlement(ctx, treasury.Settlement{
		Deltas: []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: -2000}},
		Transactions: []treasury.Transaction{{
			ID: uuid.New(), AccountID: acc.ID, OwnerID: acc.OwnerID,
			Type: treasury.EntryExpenditure, Amount: amt(t, 2000), Date: time.Now().UTC(), Description: "Overdraw",
		}},
	})
	if !errors.Is(err, errs.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	txs, err := s.TransactionsByAccount(ctx, acc.ID, nil, nil)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("rows = %d after rollback, want 1", len(txs))
	}
}

func TestPledgeRoundTrip_Postgres(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	applyInitSQL(t, s)
	truncateAll(t, s)
	ctx := context.Background()
	member, acc := seedFixture(t, s)
	project, err := s.CreateProject(ctx, treasury.Project{ID: uuid.New(), Name: "Harvest", Active: true})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	p := treasury.Pledge{
		ID: uuid.New(), MemberID: member.ID, ProjectID: project.ID,
		OriginalAmount: amt(t, 1000), PaidAmount: amt(t, 0),
		DueDate: time.Now().UTC().AddDate(0, 1, 0),
	}
	if _, err := s.CreatePledge(ctx, p); err != nil {
		t.Fatalf("create pledge: %v", err)
	}

	// settle a payment: delta + row + pledge upsert in one transaction
	p.PaidAmount = amt(t, 400)
	err = s.ApplySettlement(ctx, treasury.Settlement{
		Deltas: []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: 400}},
		Transactions: []treasury.Transaction{{
			ID: uuid.New(), AccountID: acc.ID, OwnerID: acc.OwnerID,
			Type: treasury.EntryIncome, Amount: amt(t, 400), Date: time.Now().UTC(),
			Description: "Pledge payment", PledgeID: p.ID,
		}},
		Pledge: &p,
	})
	if err != nil {
		t.Fatalf("settle payment: %v", err)
	}

	got, err := s.GetPledge(ctx, p.ID)
	if err != nil {
		t.Fatalf("get pledge: %v", err)
	}
	if paid, _ := got.PaidAmount.MinorUnits(); paid != 400 {
		t.Fatalf("paid = %d, want 400", paid)
	}
	rows, err := s.TransactionsByPledge(ctx, p.ID)
	if err != nil {
		t.Fatalf("by pledge: %v", err)
	}
	if len(rows) != 1 || rows[0].Reversed {
		t.Fatalf("pledge rows = %+v", rows)
	}

	// reversal marks the row and removes the pledge atomically
	err = s.ApplySettlement(ctx, treasury.Settlement{
		Deltas:                []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: -400}},
		ReverseTransactionIDs: []uuid.UUID{rows[0].ID},
		DeletePledgeID:        p.ID,
	})
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if _, err := s.GetPledge(ctx, p.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("pledge still present: %v", err)
	}
	rows, _ = s.TransactionsByPledge(ctx, p.ID)
	if len(rows) != 1 || !rows[0].Reversed {
		t.Fatalf("rows after reverse = %+v", rows)
	}
	acc2, _ := s.GetAccount(ctx, acc.ID)
	if minor, _ := acc2.CurrentBalance.MinorUnits(); minor != 1000 {
		t.Fatalf("balance = %d after reversal, want 1000", minor)
	}
}

func TestReadsAndFilters_Postgres(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	applyInitSQL(t, s)
	truncateAll(t, s)
	ctx := context.Background()
	member, acc := seedFixture(t, s)

	if accs, err := s.ListReceivingAccounts(ctx); err != nil || len(accs) != 1 {
		t.Fatalf("receiving accounts = %v, %v", accs, err)
	}
	if accs, err := s.AccountsByOwner(ctx, member.ID); err != nil || len(accs) != 1 {
		t.Fatalf("by owner = %v, %v", accs, err)
	}
	if err := s.DeactivateAccount(ctx, acc.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if accs, _ := s.ListReceivingAccounts(ctx); len(accs) != 0 {
		t.Fatalf("inactive account still listed as receiving")
	}

	d, err := s.CreateDebt(ctx, treasury.Debt{
		ID: uuid.New(), MemberID: member.ID, DebtorName: "J. Owusu", SaleRef: "SALE-1",
		OriginalAmount: amt(t, 2000), AmountDue: amt(t, 2000),
	})
	if err != nil {
		t.Fatalf("create debt: %v", err)
	}
	got, err := s.GetDebt(ctx, d.ID)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if got.Status() != treasury.DebtStatusOutstanding {
		t.Fatalf("status = %s", got.Status())
	}
	if debts, _ := s.DebtsByMember(ctx, member.ID); len(debts) != 1 {
		t.Fatalf("debts by member = %d", len(debts))
	}
}

func TestConcurrentOppositeTransfers_Postgres(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	applyInitSQL(t, s)
	truncateAll(t, s)
	ctx := context.Background()
	member, a := seedFixture(t, s)
	b := treasury.FinancialAccount{
		ID: uuid.New(), OwnerID: member.ID, Name: "Savings", Currency: "GHS",
		InitialBalance: amt(t, 1000), CurrentBalance: amt(t, 1000),
		CanReceivePayments: true, Active: true,
	}
	if err := s.ApplySettlement(ctx, treasury.Settlement{Account: &b}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	transfer := func(src, dst treasury.FinancialAccount) treasury.Settlement {
		return treasury.Settlement{
			Deltas: []treasury.BalanceDelta{
				{AccountID: src.ID, AmountMinor: -10},
				{AccountID: dst.ID, AmountMinor: 10},
			},
			Transactions: []treasury.Transaction{
				{ID: uuid.New(), AccountID: src.ID, OwnerID: src.OwnerID, Type: treasury.EntryExpenditure, Amount: amt(t, 10), Date: time.Now().UTC(), Description: "Transfer to " + dst.Name},
				{ID: uuid.New(), AccountID: dst.ID, OwnerID: dst.OwnerID, Type: treasury.EntryIncome, Amount: amt(t, 10), Date: time.Now().UTC(), Description: "Transfer from " + src.Name},
			},
		}
	}

	// Opposite transfers lock the same pair of rows; with locks taken in id
	// order both directions serialize instead of deadlocking.
	const rounds = 25
	errc := make(chan error, 2*rounds)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errc <- s.ApplySettlement(ctx, transfer(a, b))
		}()
		go func() {
			defer wg.Done()
			errc <- s.ApplySettlement(ctx, transfer(b, a))
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		if err != nil {
			t.Fatalf("transfer: %v", err)
		}
	}

	gotA, _ := s.GetAccount(ctx, a.ID)
	gotB, _ := s.GetAccount(ctx, b.ID)
	minorA, _ := gotA.CurrentBalance.MinorUnits()
	minorB, _ := gotB.CurrentBalance.MinorUnits()
	if minorA != 1000 || minorB != 1000 {
		t.Fatalf("balances = %d, %d, want 1000 each", minorA, minorB)
	}
}
