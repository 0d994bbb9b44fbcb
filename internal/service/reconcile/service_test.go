package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/service/settlement"
	"github.com/coopware/treasury/internal/storage/memory"
	"github.com/coopware/treasury/internal/treasury"
)

func setup(t *testing.T) (*memory.Store, Service, treasury.Project, []treasury.Member, treasury.FinancialAccount) {
	t.Helper()
	store := memory.New()
	stl := settlement.New(store, store)
	svc := New(store, stl, 2)

	project := treasury.Project{ID: uuid.New(), Name: "Harvest", Active: true}
	store.SeedProject(project)
	members := []treasury.Member{
		{ID: uuid.New(), Name: "Ama Serwaa", Email: "ama@example.org"},
		{ID: uuid.New(), Name: "Kofi Boateng", Email: "kofi@example.org"},
		{ID: uuid.New(), Name: "Esi Mensah", Email: "esi@example.org"},
	}
	for _, m := range members {
		store.SeedMember(m)
	}
	zero, _ := money.NewAmountFromMinorUnits("GHS", 0)
	acc := treasury.FinancialAccount{
		ID: uuid.New(), OwnerID: members[0].ID, Name: "Main Cash", Currency: "GHS",
		InitialBalance: zero, CurrentBalance: zero, CanReceivePayments: true, Active: true,
	}
	store.SeedAccount(acc)
	return store, svc, project, members, acc
}

func TestRun_SkipFailSucceed(t *testing.T) {
	store, svc, project, _, acc := setup(t)
	ctx := context.Background()

	res, err := svc.Run(ctx, Batch{
		ProjectID:   project.ID,
		DefaultDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Rows: []RawRow{
			{MemberEmail: "ama@example.org", AccountName: "Main Cash", Amount: "25.00"},
			{MemberEmail: "kofi@example.org", AccountName: "Main Cash", Amount: ""},
			{MemberEmail: "nobody@example.org", AccountName: "Main Cash", Amount: "10.00"},
			{MemberName: "ESI  MENSAH", AccountName: "main cash", Amount: "5"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 2 || res.Skipped != 1 || res.Failed != 1 {
		t.Fatalf("counts = %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 3 || !strings.Contains(res.Errors[0].Err, "member not found") {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if res.BatchID == "" {
		t.Fatalf("batch id not generated")
	}

	got, _ := store.GetAccount(ctx, acc.ID)
	if minor, _ := got.CurrentBalance.MinorUnits(); minor != 3000 {
		t.Fatalf("balance = %d, want 3000", minor)
	}
	cols, _ := store.CollectionsByProject(ctx, project.ID)
	if len(cols) != 2 {
		t.Fatalf("collections = %d, want 2", len(cols))
	}
	txs, _ := store.TransactionsByAccount(ctx, acc.ID, nil, nil)
	for _, tx := range txs {
		if tx.BatchID != res.BatchID {
			t.Fatalf("journal row missing batch id: %+v", tx)
		}
	}
}

func TestRun_NegativeAmountIsSkipped(t *testing.T) {
	store, svc, project, _, acc := setup(t)
	ctx := context.Background()

	res, err := svc.Run(ctx, Batch{
		ProjectID: project.ID,
		Rows: []RawRow{
			{MemberEmail: "ama@example.org", AccountName: "Main Cash", Amount: "-0.50"},
			{MemberEmail: "kofi@example.org", AccountName: "Main Cash", Amount: "-25"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 0 || res.Skipped != 2 || res.Failed != 0 {
		t.Fatalf("counts = %+v", res)
	}
	got, _ := store.GetAccount(ctx, acc.ID)
	if minor, _ := got.CurrentBalance.MinorUnits(); minor != 0 {
		t.Fatalf("negative row moved the balance: %d", minor)
	}
	cols, _ := store.CollectionsByProject(ctx, project.ID)
	if len(cols) != 0 {
		t.Fatalf("collections = %d, want 0", len(cols))
	}
}

func TestRun_RowOffsetShiftsErrorNumbers(t *testing.T) {
	_, svc, project, _, _ := setup(t)
	res, err := svc.Run(context.Background(), Batch{
		ProjectID: project.ID,
		RowOffset: 1,
		Rows: []RawRow{
			{MemberEmail: "ama@example.org", AccountName: "Main Cash", Amount: ""},
			{MemberEmail: "nobody@example.org", AccountName: "Main Cash", Amount: "10.00"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// the failing row is the third spreadsheet row: header, skipped, failed
	if len(res.Errors) != 1 || res.Errors[0].Row != 3 || !strings.Contains(res.Errors[0].Err, "Row 3") {
		t.Fatalf("errors = %+v", res.Errors)
	}
}

func TestRun_PartialSuccessIsNotRolledBack(t *testing.T) {
	store, svc, project, _, acc := setup(t)
	ctx := context.Background()

	res, err := svc.Run(ctx, Batch{
		ProjectID: project.ID,
		Rows: []RawRow{
			{MemberEmail: "ama@example.org", AccountName: "Main Cash", Amount: "10.00"},
			{MemberEmail: "kofi@example.org", AccountName: "No Such Account", Amount: "10.00"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("counts = %+v", res)
	}
	got, _ := store.GetAccount(ctx, acc.ID)
	if minor, _ := got.CurrentBalance.MinorUnits(); minor != 1000 {
		t.Fatalf("successful row was rolled back: balance = %d", minor)
	}
}

func TestRun_DefaultAccountFallback(t *testing.T) {
	_, svc, project, _, acc := setup(t)
	res, err := svc.Run(context.Background(), Batch{
		ProjectID:        project.ID,
		DefaultAccountID: acc.ID,
		Rows: []RawRow{
			{MemberEmail: "ama@example.org", Amount: "1.50"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("counts = %+v", res)
	}
}

func TestRun_ExplicitIDsWin(t *testing.T) {
	_, svc, project, members, acc := setup(t)
	res, err := svc.Run(context.Background(), Batch{
		ProjectID: project.ID,
		Rows: []RawRow{
			// id beats a mismatched name
			{MemberID: members[1].ID.String(), MemberName: "Someone Else", AccountID: acc.ID.String(), Amount: "2.00"},
			// unknown explicit id fails even though the email would match
			{MemberID: uuid.NewString(), MemberEmail: "ama@example.org", AccountID: acc.ID.String(), Amount: "2.00"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("counts = %+v", res)
	}
}
