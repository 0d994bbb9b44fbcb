// Package settlement implements the atomic operations of the ledger core.
// Every mutator of account balances goes through this service; each
// operation is bundled into a single treasury.Settlement which the store
// applies entirely or not at all.
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/errs"
	"github.com/coopware/treasury/internal/treasury"
)

// Repo defines the read operations needed to validate settlements.
type Repo interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (treasury.FinancialAccount, error)
	GetMember(ctx context.Context, memberID uuid.UUID) (treasury.Member, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (treasury.Project, error)
	GetPledge(ctx context.Context, pledgeID uuid.UUID) (treasury.Pledge, error)
	GetDebt(ctx context.Context, debtID uuid.UUID) (treasury.Debt, error)
	// TransactionsByPledge returns the non-reversed income rows posted for a
	// pledge's payments.
	TransactionsByPledge(ctx context.Context, pledgeID uuid.UUID) ([]treasury.Transaction, error)
}

// Writer applies one settlement atomically. Implementations must re-check
// resulting balances under their own lock; the pre-checks in this service
// are advisory only and racy by themselves.
type Writer interface {
	ApplySettlement(ctx context.Context, st treasury.Settlement) error
}

// Service exposes the atomic ledger operations.
type Service interface {
	OpenAccount(ctx context.Context, in OpenAccountInput) (treasury.FinancialAccount, error)
	PostIncome(ctx context.Context, in EntryInput) (treasury.Transaction, error)
	PostExpenditure(ctx context.Context, in EntryInput) (treasury.Transaction, error)
	TransferFunds(ctx context.Context, in TransferInput) (TransferResult, error)
	RecordPledgePayment(ctx context.Context, in PledgePaymentInput) (treasury.Pledge, error)
	// ReversePaidPledge neutralizes every income row posted for the pledge's
	// payments, restores the receiving balances, and returns the pledge with
	// paid amount zero. With removeAfter the pledge row is deleted in the
	// same unit of work.
	ReversePaidPledge(ctx context.Context, pledgeID uuid.UUID, removeAfter bool) (treasury.Pledge, error)
	RecordCollection(ctx context.Context, in CollectionInput) (treasury.Collection, error)
	RecordDebtPayment(ctx context.Context, in DebtPaymentInput) (treasury.Debt, error)
}

// OpenAccountInput creates an account with a synthetic opening income row.
type OpenAccountInput struct {
	OwnerID            uuid.UUID
	Name               string
	Currency           string
	InitialMinor       int64
	CanReceivePayments bool
}

// EntryInput describes a single income or expenditure posting.
type EntryInput struct {
	AccountID   uuid.UUID
	AmountMinor int64
	Description string
	Date        time.Time
	// BatchID is set by bulk imports so rows stay attributable.
	BatchID string
}

// TransferInput moves funds between two accounts, optionally charging a
// transaction cost to the source only.
type TransferInput struct {
	SourceID      uuid.UUID
	DestinationID uuid.UUID
	AmountMinor   int64
	CostMinor     int64
	Date          time.Time
}

// TransferResult reports the rows created by a transfer.
type TransferResult struct {
	Out  treasury.Transaction
	In   treasury.Transaction
	Cost *treasury.Transaction
}

type PledgePaymentInput struct {
	PledgeID           uuid.UUID
	AmountMinor        int64
	ReceivingAccountID uuid.UUID
	Date               time.Time
}

type CollectionInput struct {
	ProjectID   uuid.UUID
	MemberID    uuid.UUID
	AccountID   uuid.UUID
	AmountMinor int64
	Date        time.Time
	BatchID     string
}

type DebtPaymentInput struct {
	DebtID             uuid.UUID
	AmountMinor        int64
	ReceivingAccountID uuid.UUID
	Date               time.Time
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) OpenAccount(ctx context.Context, in OpenAccountInput) (treasury.FinancialAccount, error) {
	if in.OwnerID == uuid.Nil || in.Name == "" || in.Currency == "" {
		return treasury.FinancialAccount{}, errs.ErrInvalid
	}
	if in.InitialMinor < 0 {
		return treasury.FinancialAccount{}, errs.ErrInvalid
	}
	initial, err := money.NewAmountFromMinorUnits(in.Currency, in.InitialMinor)
	if err != nil {
		return treasury.FinancialAccount{}, errs.ErrInvalid
	}
	acc := treasury.FinancialAccount{
		ID:                 uuid.New(),
		OwnerID:            in.OwnerID,
		Name:               in.Name,
		Currency:           initial.Curr().Code(),
		InitialBalance:     initial,
		CurrentBalance:     initial,
		CanReceivePayments: in.CanReceivePayments,
		Active:             true,
	}
	st := treasury.Settlement{Account: &acc}
	// The opening row documents the starting balance; it is not an applied
	// delta, so current = initial + sum(deltas) holds from creation.
	if in.InitialMinor > 0 {
		st.Transactions = []treasury.Transaction{{
			ID:          uuid.New(),
			AccountID:   acc.ID,
			OwnerID:     acc.OwnerID,
			Type:        treasury.EntryIncome,
			Amount:      initial,
			Date:        time.Now().UTC(),
			Description: "Initial Account Balance",
		}}
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return treasury.FinancialAccount{}, err
	}
	return acc, nil
}

func (s *service) PostIncome(ctx context.Context, in EntryInput) (treasury.Transaction, error) {
	acc, err := s.admitEntry(ctx, in)
	if err != nil {
		return treasury.Transaction{}, err
	}
	tx := newTransaction(acc, treasury.EntryIncome, in)
	st := treasury.Settlement{
		Deltas:       []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: in.AmountMinor}},
		Transactions: []treasury.Transaction{tx},
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return treasury.Transaction{}, err
	}
	return tx, nil
}

func (s *service) PostExpenditure(ctx context.Context, in EntryInput) (treasury.Transaction, error) {
	acc, err := s.admitEntry(ctx, in)
	if err != nil {
		return treasury.Transaction{}, err
	}
	if bal, _ := acc.CurrentBalance.MinorUnits(); in.AmountMinor > bal {
		return treasury.Transaction{}, errs.ErrInsufficientFunds
	}
	tx := newTransaction(acc, treasury.EntryExpenditure, in)
	st := treasury.Settlement{
		Deltas:       []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: -in.AmountMinor}},
		Transactions: []treasury.Transaction{tx},
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return treasury.Transaction{}, err
	}
	return tx, nil
}

func (s *service) TransferFunds(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.SourceID == uuid.Nil || in.DestinationID == uuid.Nil {
		return TransferResult{}, errs.ErrInvalid
	}
	if in.SourceID == in.DestinationID {
		return TransferResult{}, errs.ErrSameAccount
	}
	if in.AmountMinor <= 0 || in.CostMinor < 0 {
		return TransferResult{}, errs.ErrInvalid
	}
	src, err := s.repo.GetAccount(ctx, in.SourceID)
	if err != nil {
		return TransferResult{}, err
	}
	dst, err := s.repo.GetAccount(ctx, in.DestinationID)
	if err != nil {
		return TransferResult{}, err
	}
	if !src.Active || !dst.Active {
		return TransferResult{}, errs.ErrInactiveAccount
	}
	if bal, _ := src.CurrentBalance.MinorUnits(); in.AmountMinor+in.CostMinor > bal {
		return TransferResult{}, errs.ErrInsufficientFunds
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	amount := mustAmount(src.Currency, in.AmountMinor)
	out := treasury.Transaction{
		ID: uuid.New(), AccountID: src.ID, OwnerID: src.OwnerID,
		Type: treasury.EntryExpenditure, Amount: amount, Date: date,
		Description: "Transfer to " + dst.Name,
	}
	inTx := treasury.Transaction{
		ID: uuid.New(), AccountID: dst.ID, OwnerID: dst.OwnerID,
		Type: treasury.EntryIncome, Amount: amount, Date: date,
		Description: "Transfer from " + src.Name,
	}
	res := TransferResult{Out: out, In: inTx}
	st := treasury.Settlement{
		Deltas: []treasury.BalanceDelta{
			{AccountID: src.ID, AmountMinor: -(in.AmountMinor + in.CostMinor)},
			{AccountID: dst.ID, AmountMinor: in.AmountMinor},
		},
		Transactions: []treasury.Transaction{out, inTx},
	}
	if in.CostMinor > 0 {
		cost := treasury.Transaction{
			ID: uuid.New(), AccountID: src.ID, OwnerID: src.OwnerID,
			Type: treasury.EntryExpenditure, Amount: mustAmount(src.Currency, in.CostMinor), Date: date,
			Description: "Transfer cost to " + dst.Name,
		}
		st.Transactions = append(st.Transactions, cost)
		res.Cost = &cost
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return TransferResult{}, err
	}
	return res, nil
}

func (s *service) RecordPledgePayment(ctx context.Context, in PledgePaymentInput) (treasury.Pledge, error) {
	if in.PledgeID == uuid.Nil || in.ReceivingAccountID == uuid.Nil {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	if in.AmountMinor <= 0 {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	pledge, err := s.repo.GetPledge(ctx, in.PledgeID)
	if err != nil {
		return treasury.Pledge{}, err
	}
	if in.AmountMinor > pledge.Remaining() {
		return treasury.Pledge{}, errs.ErrExceedsRemaining
	}
	acc, err := s.receivingAccount(ctx, in.ReceivingAccountID)
	if err != nil {
		return treasury.Pledge{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	paid, _ := pledge.PaidAmount.MinorUnits()
	pledge.PaidAmount = mustAmount(acc.Currency, paid+in.AmountMinor)
	tx := treasury.Transaction{
		ID: uuid.New(), AccountID: acc.ID, OwnerID: acc.OwnerID,
		Type: treasury.EntryIncome, Amount: mustAmount(acc.Currency, in.AmountMinor), Date: date,
		Description: "Pledge payment", PledgeID: pledge.ID,
	}
	st := treasury.Settlement{
		Deltas:       []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: in.AmountMinor}},
		Transactions: []treasury.Transaction{tx},
		Pledge:       &pledge,
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return treasury.Pledge{}, err
	}
	return pledge, nil
}

func (s *service) ReversePaidPledge(ctx context.Context, pledgeID uuid.UUID, removeAfter bool) (treasury.Pledge, error) {
	if pledgeID == uuid.Nil {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	pledge, err := s.repo.GetPledge(ctx, pledgeID)
	if err != nil {
		return treasury.Pledge{}, err
	}
	postings, err := s.repo.TransactionsByPledge(ctx, pledgeID)
	if err != nil {
		return treasury.Pledge{}, err
	}
	// Group the compensating deltas per receiving account; multiple payments
	// may have landed in different accounts.
	perAccount := make(map[uuid.UUID]int64)
	ids := make([]uuid.UUID, 0, len(postings))
	for _, tx := range postings {
		if tx.Reversed || tx.Type != treasury.EntryIncome {
			continue
		}
		minor, _ := tx.Amount.MinorUnits()
		perAccount[tx.AccountID] -= minor
		ids = append(ids, tx.ID)
	}
	deltas := make([]treasury.BalanceDelta, 0, len(perAccount))
	for accID, minor := range perAccount {
		deltas = append(deltas, treasury.BalanceDelta{AccountID: accID, AmountMinor: minor})
	}
	pledge.PaidAmount = mustAmount(pledge.PaidAmount.Curr().Code(), 0)
	st := treasury.Settlement{
		Deltas:                deltas,
		ReverseTransactionIDs: ids,
	}
	if removeAfter {
		st.DeletePledgeID = pledge.ID
	} else {
		st.Pledge = &pledge
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return treasury.Pledge{}, err
	}
	return pledge, nil
}

func (s *service) RecordCollection(ctx context.Context, in CollectionInput) (treasury.Collection, error) {
	if in.ProjectID == uuid.Nil || in.MemberID == uuid.Nil || in.AccountID == uuid.Nil {
		return treasury.Collection{}, errs.ErrInvalid
	}
	if in.AmountMinor <= 0 {
		return treasury.Collection{}, errs.ErrInvalid
	}
	if _, err := s.repo.GetProject(ctx, in.ProjectID); err != nil {
		return treasury.Collection{}, err
	}
	member, err := s.repo.GetMember(ctx, in.MemberID)
	if err != nil {
		return treasury.Collection{}, err
	}
	acc, err := s.receivingAccount(ctx, in.AccountID)
	if err != nil {
		return treasury.Collection{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	amount := mustAmount(acc.Currency, in.AmountMinor)
	col := treasury.Collection{
		ID:        uuid.New(),
		ProjectID: in.ProjectID,
		MemberID:  in.MemberID,
		AccountID: acc.ID,
		Amount:    amount,
		Date:      date,
	}
	tx := treasury.Transaction{
		ID: uuid.New(), AccountID: acc.ID, OwnerID: acc.OwnerID,
		Type: treasury.EntryIncome, Amount: amount, Date: date,
		Description: "Collection from " + member.Name,
		BatchID:     in.BatchID,
	}
	st := treasury.Settlement{
		Deltas:       []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: in.AmountMinor}},
		Transactions: []treasury.Transaction{tx},
		Collection:   &col,
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return treasury.Collection{}, err
	}
	return col, nil
}

func (s *service) RecordDebtPayment(ctx context.Context, in DebtPaymentInput) (treasury.Debt, error) {
	if in.DebtID == uuid.Nil || in.ReceivingAccountID == uuid.Nil {
		return treasury.Debt{}, errs.ErrInvalid
	}
	if in.AmountMinor <= 0 {
		return treasury.Debt{}, errs.ErrInvalid
	}
	debt, err := s.repo.GetDebt(ctx, in.DebtID)
	if err != nil {
		return treasury.Debt{}, err
	}
	due, _ := debt.AmountDue.MinorUnits()
	if in.AmountMinor > due {
		return treasury.Debt{}, errs.ErrExceedsRemaining
	}
	acc, err := s.receivingAccount(ctx, in.ReceivingAccountID)
	if err != nil {
		return treasury.Debt{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	debt.AmountDue = mustAmount(acc.Currency, due-in.AmountMinor)
	tx := treasury.Transaction{
		ID: uuid.New(), AccountID: acc.ID, OwnerID: acc.OwnerID,
		Type: treasury.EntryIncome, Amount: mustAmount(acc.Currency, in.AmountMinor), Date: date,
		Description: "Debt payment from " + debt.DebtorName,
	}
	st := treasury.Settlement{
		Deltas:       []treasury.BalanceDelta{{AccountID: acc.ID, AmountMinor: in.AmountMinor}},
		Transactions: []treasury.Transaction{tx},
		Debt:         &debt,
	}
	if err := s.writer.ApplySettlement(ctx, st); err != nil {
		return treasury.Debt{}, err
	}
	return debt, nil
}

// admitEntry runs the shared validation for income/expenditure postings.
func (s *service) admitEntry(ctx context.Context, in EntryInput) (treasury.FinancialAccount, error) {
	if in.AccountID == uuid.Nil {
		return treasury.FinancialAccount{}, errs.ErrInvalid
	}
	if in.AmountMinor <= 0 {
		return treasury.FinancialAccount{}, errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, in.AccountID)
	if err != nil {
		return treasury.FinancialAccount{}, err
	}
	if !acc.Active {
		return treasury.FinancialAccount{}, errs.ErrInactiveAccount
	}
	return acc, nil
}

// receivingAccount loads an account and checks it may receive payments.
func (s *service) receivingAccount(ctx context.Context, id uuid.UUID) (treasury.FinancialAccount, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return treasury.FinancialAccount{}, err
	}
	if !acc.Active {
		return treasury.FinancialAccount{}, errs.ErrInactiveAccount
	}
	if !acc.CanReceivePayments {
		return treasury.FinancialAccount{}, errs.ErrCannotReceive
	}
	return acc, nil
}

func newTransaction(acc treasury.FinancialAccount, typ treasury.EntryType, in EntryInput) treasury.Transaction {
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return treasury.Transaction{
		ID:          uuid.New(),
		AccountID:   acc.ID,
		OwnerID:     acc.OwnerID,
		Type:        typ,
		Amount:      mustAmount(acc.Currency, in.AmountMinor),
		Date:        date,
		Description: in.Description,
		BatchID:     in.BatchID,
	}
}

func mustAmount(curr string, units int64) money.Amount {
	a, _ := money.NewAmountFromMinorUnits(curr, units)
	return a
}
