package treasury

import (
	"testing"
	"time"

	"github.com/govalues/money"
)

func mustAmt(t *testing.T, minor int64) money.Amount {
	t.Helper()
	a, err := money.NewAmountFromMinorUnits("GHS", minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return a
}

func TestPledgeStatus_DerivedFromAmounts(t *testing.T) {
	cases := []struct {
		name       string
		orig, paid int64
		want       PledgeStatus
		remaining  int64
	}{
		{"unpaid", 1000, 0, PledgeStatusActive, 1000},
		{"partial", 1000, 400, PledgeStatusActive, 600},
		{"exact", 1000, 1000, PledgeStatusPaid, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := Pledge{OriginalAmount: mustAmt(t, c.orig), PaidAmount: mustAmt(t, c.paid)}
			if got := p.Status(); got != c.want {
				t.Fatalf("status = %s, want %s", got, c.want)
			}
			if got := p.Remaining(); got != c.remaining {
				t.Fatalf("remaining = %d, want %d", got, c.remaining)
			}
		})
	}
}

func TestPledgeOverdue(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	active := Pledge{OriginalAmount: mustAmt(t, 100), PaidAmount: mustAmt(t, 0)}

	p := active
	p.DueDate = now.AddDate(0, 0, -1)
	if !p.Overdue(now) {
		t.Fatalf("past-due active pledge not overdue")
	}
	p.DueDate = now.AddDate(0, 0, 1)
	if p.Overdue(now) {
		t.Fatalf("future-due pledge overdue")
	}
	// no due date, never overdue
	p.DueDate = time.Time{}
	if p.Overdue(now) {
		t.Fatalf("pledge without due date overdue")
	}
	// paid pledges are never overdue regardless of due date
	paid := Pledge{OriginalAmount: mustAmt(t, 100), PaidAmount: mustAmt(t, 100), DueDate: now.AddDate(0, 0, -10)}
	if paid.Overdue(now) {
		t.Fatalf("paid pledge reported overdue")
	}
}

func TestDebtStatus(t *testing.T) {
	cases := []struct {
		name      string
		orig, due int64
		want      DebtStatus
	}{
		{"outstanding", 2000, 2000, DebtStatusOutstanding},
		{"partial", 2000, 500, DebtStatusPartiallyPaid},
		{"paid", 2000, 0, DebtStatusPaid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := Debt{OriginalAmount: mustAmt(t, c.orig), AmountDue: mustAmt(t, c.due)}
			if got := d.Status(); got != c.want {
				t.Fatalf("status = %s, want %s", got, c.want)
			}
		})
	}
}
