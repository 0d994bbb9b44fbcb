package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// EntryType classifies a journal row by the direction of its balance effect.
type EntryType string

const (
	// EntryIncome increases the balance of its account.
	EntryIncome EntryType = "income"
	// EntryExpenditure decreases the balance of its account.
	EntryExpenditure EntryType = "expenditure"
)

// PledgeStatus is derived from the paid and original amounts; it is never
// stored or set independently.
type PledgeStatus string

const (
	PledgeStatusActive PledgeStatus = "active"
	PledgeStatusPaid   PledgeStatus = "paid"
)

// DebtStatus is derived from the amount still due.
type DebtStatus string

const (
	DebtStatusOutstanding   DebtStatus = "outstanding"
	DebtStatusPartiallyPaid DebtStatus = "partially_paid"
	DebtStatusPaid          DebtStatus = "paid"
)

// Member is a registered member of the cooperative.
type Member struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Project is a fundraising effort members pledge or contribute to.
type Project struct {
	ID     uuid.UUID
	Name   string
	Active bool
}

// FinancialAccount represents a money-holding account. CurrentBalance always
// equals InitialBalance plus the sum of deltas applied through settlements;
// it is never taken from client input.
type FinancialAccount struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Name    string
	// Currency is the ISO code shared by every account in a deployment.
	Currency       string
	InitialBalance money.Amount
	CurrentBalance money.Amount
	// CanReceivePayments marks accounts eligible to receive pledge payments
	// and collections.
	CanReceivePayments bool
	// Active indicates whether the account is active (soft-delete when false).
	Active bool
}

// Transaction is an append-only journal row recording a single income or
// expenditure event against one account. Rows are never amended once other
// aggregates depend on them; undoing an effect marks the row Reversed and
// applies a compensating balance delta in the same unit of work.
type Transaction struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	OwnerID   uuid.UUID
	Type      EntryType
	Amount    money.Amount
	Date      time.Time
	// Description holds the income source or expenditure purpose.
	Description string
	// PledgeID links a pledge-payment income row to its pledge, so a later
	// reversal can find exactly the rows it must neutralize. Nil otherwise.
	PledgeID uuid.UUID
	// Reversed marks a row whose balance effect has been undone.
	Reversed bool
	// BatchID tags rows created by a bulk collection import.
	BatchID string
}

// Pledge is a member's committed contribution to a project. PaidAmount grows
// through payment events only and never exceeds OriginalAmount.
type Pledge struct {
	ID             uuid.UUID
	MemberID       uuid.UUID
	ProjectID      uuid.UUID
	OriginalAmount money.Amount
	PaidAmount     money.Amount
	DueDate        time.Time
	Comments       string
}

// Status derives the pledge state from its amounts: Paid iff the paid amount
// has reached the original amount.
func (p Pledge) Status() PledgeStatus {
	paid, _ := p.PaidAmount.MinorUnits()
	orig, _ := p.OriginalAmount.MinorUnits()
	if paid >= orig {
		return PledgeStatusPaid
	}
	return PledgeStatusActive
}

// Remaining returns the unpaid portion of the pledge in minor units.
func (p Pledge) Remaining() int64 {
	paid, _ := p.PaidAmount.MinorUnits()
	orig, _ := p.OriginalAmount.MinorUnits()
	if orig <= paid {
		return 0
	}
	return orig - paid
}

// Overdue is a presentational derivation only; it is never persisted as a
// third status value.
func (p Pledge) Overdue(now time.Time) bool {
	return p.Status() == PledgeStatusActive && !p.DueDate.IsZero() && p.DueDate.Before(now)
}

// Collection is a direct (non-pledge) member contribution to a project.
// Every collection has a matching income transaction.
type Collection struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	MemberID  uuid.UUID
	AccountID uuid.UUID
	Amount    money.Amount
	Date      time.Time
}

// Debt records a sale made without immediate payment. AmountDue decreases as
// payments arrive and never exceeds OriginalAmount.
type Debt struct {
	ID             uuid.UUID
	MemberID       uuid.UUID
	DebtorName     string
	SaleRef        string
	OriginalAmount money.Amount
	AmountDue      money.Amount
}

// Status derives the debt state from the amount still due.
func (d Debt) Status() DebtStatus {
	due, _ := d.AmountDue.MinorUnits()
	orig, _ := d.OriginalAmount.MinorUnits()
	switch {
	case due <= 0:
		return DebtStatusPaid
	case due < orig:
		return DebtStatusPartiallyPaid
	default:
		return DebtStatusOutstanding
	}
}
