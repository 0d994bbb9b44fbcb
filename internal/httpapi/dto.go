package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/coopware/treasury/internal/service/reconcile"
	"github.com/coopware/treasury/internal/treasury"
)

// Requests

type postMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type postProjectRequest struct {
	Name string `json:"name"`
}

type postAccountRequest struct {
	OwnerID            uuid.UUID `json:"owner_id"`
	Name               string    `json:"name"`
	InitialMinor       int64     `json:"initial_balance_minor"`
	CanReceivePayments bool      `json:"can_receive_payments"`
}

type postEntryRequest struct {
	AccountID   uuid.UUID `json:"account_id"`
	AmountMinor int64     `json:"amount_minor"`
	Description string    `json:"description"`
	Date        time.Time `json:"date,omitempty"`
}

type postTransferRequest struct {
	SourceID      uuid.UUID `json:"source_account_id"`
	DestinationID uuid.UUID `json:"destination_account_id"`
	AmountMinor   int64     `json:"amount_minor"`
	CostMinor     int64     `json:"cost_minor,omitempty"`
	Date          time.Time `json:"date,omitempty"`
}

type postPledgeRequest struct {
	MemberID    uuid.UUID `json:"member_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	AmountMinor int64     `json:"amount_minor"`
	DueDate     time.Time `json:"due_date,omitempty"`
	Comments    string    `json:"comments,omitempty"`
}

type editPledgeRequest struct {
	AmountMinor int64     `json:"amount_minor"`
	DueDate     time.Time `json:"due_date,omitempty"`
	Comments    string    `json:"comments,omitempty"`
}

// paymentRequest serves both pledge and debt payments.
type paymentRequest struct {
	AmountMinor        int64     `json:"amount_minor"`
	ReceivingAccountID uuid.UUID `json:"receiving_account_id"`
	Date               time.Time `json:"date,omitempty"`
}

type postCollectionRequest struct {
	ProjectID   uuid.UUID `json:"project_id"`
	MemberID    uuid.UUID `json:"member_id"`
	AccountID   uuid.UUID `json:"receiving_account_id"`
	AmountMinor int64     `json:"amount_minor"`
	Date        time.Time `json:"date,omitempty"`
}

type collectionBatchRequest struct {
	ProjectID        uuid.UUID          `json:"project_id"`
	DefaultAccountID uuid.UUID          `json:"default_account_id,omitempty"`
	Date             time.Time          `json:"date,omitempty"`
	Rows             []reconcile.RawRow `json:"rows"`
}

type postDebtRequest struct {
	MemberID    uuid.UUID `json:"member_id"`
	DebtorName  string    `json:"debtor_name"`
	SaleRef     string    `json:"sale_ref,omitempty"`
	AmountMinor int64     `json:"amount_minor"`
}

// Responses

type memberResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

type projectResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Active bool      `json:"active"`
}

type accountResponse struct {
	ID                 uuid.UUID `json:"id"`
	OwnerID            uuid.UUID `json:"owner_id"`
	Name               string    `json:"name"`
	Currency           string    `json:"currency"`
	InitialMinor       int64     `json:"initial_balance_minor"`
	CurrentMinor       int64     `json:"current_balance_minor"`
	CanReceivePayments bool      `json:"can_receive_payments"`
	Active             bool      `json:"active"`
}

type transactionResponse struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	Type        string     `json:"type"`
	AmountMinor int64      `json:"amount_minor"`
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	PledgeID    *uuid.UUID `json:"pledge_id,omitempty"`
	Reversed    bool       `json:"reversed"`
	BatchID     string     `json:"batch_id,omitempty"`
}

type transferResponse struct {
	Out  transactionResponse  `json:"out"`
	In   transactionResponse  `json:"in"`
	Cost *transactionResponse `json:"cost,omitempty"`
}

type pledgeResponse struct {
	ID             uuid.UUID `json:"id"`
	MemberID       uuid.UUID `json:"member_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	OriginalMinor  int64     `json:"original_amount_minor"`
	PaidMinor      int64     `json:"paid_amount_minor"`
	RemainingMinor int64     `json:"remaining_minor"`
	Status         string    `json:"status"`
	Overdue        bool      `json:"overdue"`
	DueDate        time.Time `json:"due_date,omitempty"`
	Comments       string    `json:"comments,omitempty"`
}

type collectionResponse struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	MemberID    uuid.UUID `json:"member_id"`
	AccountID   uuid.UUID `json:"account_id"`
	AmountMinor int64     `json:"amount_minor"`
	Date        time.Time `json:"date"`
}

type debtResponse struct {
	ID            uuid.UUID `json:"id"`
	MemberID      uuid.UUID `json:"member_id"`
	DebtorName    string    `json:"debtor_name"`
	SaleRef       string    `json:"sale_ref,omitempty"`
	OriginalMinor int64     `json:"original_amount_minor"`
	DueMinor      int64     `json:"amount_due_minor"`
	Status        string    `json:"status"`
}

func toMemberResponse(m treasury.Member) memberResponse {
	return memberResponse{ID: m.ID, Name: m.Name, Email: m.Email}
}

func toProjectResponse(p treasury.Project) projectResponse {
	return projectResponse{ID: p.ID, Name: p.Name, Active: p.Active}
}

func toAccountResponse(a treasury.FinancialAccount) accountResponse {
	initial, _ := a.InitialBalance.MinorUnits()
	current, _ := a.CurrentBalance.MinorUnits()
	return accountResponse{
		ID:                 a.ID,
		OwnerID:            a.OwnerID,
		Name:               a.Name,
		Currency:           a.Currency,
		InitialMinor:       initial,
		CurrentMinor:       current,
		CanReceivePayments: a.CanReceivePayments,
		Active:             a.Active,
	}
}

func toTransactionResponse(t treasury.Transaction) transactionResponse {
	minor, _ := t.Amount.MinorUnits()
	resp := transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Type:        string(t.Type),
		AmountMinor: minor,
		Date:        t.Date,
		Description: t.Description,
		Reversed:    t.Reversed,
		BatchID:     t.BatchID,
	}
	if t.PledgeID != uuid.Nil {
		id := t.PledgeID
		resp.PledgeID = &id
	}
	return resp
}

func toPledgeResponse(p treasury.Pledge, now time.Time) pledgeResponse {
	orig, _ := p.OriginalAmount.MinorUnits()
	paid, _ := p.PaidAmount.MinorUnits()
	return pledgeResponse{
		ID:             p.ID,
		MemberID:       p.MemberID,
		ProjectID:      p.ProjectID,
		OriginalMinor:  orig,
		PaidMinor:      paid,
		RemainingMinor: p.Remaining(),
		Status:         string(p.Status()),
		Overdue:        p.Overdue(now),
		DueDate:        p.DueDate,
		Comments:       p.Comments,
	}
}

func toCollectionResponse(c treasury.Collection) collectionResponse {
	minor, _ := c.Amount.MinorUnits()
	return collectionResponse{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		MemberID:    c.MemberID,
		AccountID:   c.AccountID,
		AmountMinor: minor,
		Date:        c.Date,
	}
}

func toDebtResponse(d treasury.Debt) debtResponse {
	orig, _ := d.OriginalAmount.MinorUnits()
	due, _ := d.AmountDue.MinorUnits()
	return debtResponse{
		ID:            d.ID,
		MemberID:      d.MemberID,
		DebtorName:    d.DebtorName,
		SaleRef:       d.SaleRef,
		OriginalMinor: orig,
		DueMinor:      due,
		Status:        string(d.Status()),
	}
}
