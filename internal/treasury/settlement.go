package treasury

import "github.com/google/uuid"

// BalanceDelta is a signed change to one account's current balance,
// expressed in minor units.
type BalanceDelta struct {
	AccountID   uuid.UUID
	AmountMinor int64
}

// Settlement bundles every row touched by one atomic operation: the balance
// deltas, the journal rows that cause them, reversal markings, and any
// pledge/debt/collection row changes. A store applies a settlement entirely
// or not at all; a balance update without its causing journal row (or vice
// versa) is a consistency violation.
type Settlement struct {
	// Account, when set, is a new account created together with its opening
	// journal row.
	Account *FinancialAccount
	Deltas  []BalanceDelta
	// Transactions are journal rows to append.
	Transactions []Transaction
	// ReverseTransactionIDs marks existing rows as reversed; the
	// compensating deltas must be part of the same settlement.
	ReverseTransactionIDs []uuid.UUID
	// Pledge, when set, replaces the stored pledge row (paid amount change).
	Pledge *Pledge
	// DeletePledgeID removes a pledge after its postings were neutralized.
	DeletePledgeID uuid.UUID
	// Debt, when set, replaces the stored debt row (amount due change).
	Debt *Debt
	// Collection, when set, is a new collection row.
	Collection *Collection
}
