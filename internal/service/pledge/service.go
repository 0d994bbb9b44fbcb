// Package pledge implements the pledge lifecycle: created Active with
// nothing paid, edited with a floor at the paid amount, and deleted only
// after its payments have been reversed. Status is always derived from the
// amounts; no API path sets it directly.
package pledge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/errs"
	"github.com/coopware/treasury/internal/service/settlement"
	"github.com/coopware/treasury/internal/treasury"
)

// Repo defines read operations needed by the service.
type Repo interface {
	GetMember(ctx context.Context, memberID uuid.UUID) (treasury.Member, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (treasury.Project, error)
	GetPledge(ctx context.Context, pledgeID uuid.UUID) (treasury.Pledge, error)
}

// Writer defines plain row writes. Payment and reversal effects do not go
// through here; they are settlements.
type Writer interface {
	CreatePledge(ctx context.Context, p treasury.Pledge) (treasury.Pledge, error)
	UpdatePledge(ctx context.Context, p treasury.Pledge) (treasury.Pledge, error)
	DeletePledge(ctx context.Context, pledgeID uuid.UUID) error
}

// Service exposes the pledge lifecycle operations.
type Service interface {
	Create(ctx context.Context, in CreateInput) (treasury.Pledge, error)
	Edit(ctx context.Context, in EditInput) (treasury.Pledge, error)
	// Delete removes a pledge. A pledge with payments is reversed first so
	// no balance retains income without a backing obligation.
	Delete(ctx context.Context, pledgeID uuid.UUID) error
	RecordPayment(ctx context.Context, in settlement.PledgePaymentInput) (treasury.Pledge, error)
}

type CreateInput struct {
	MemberID      uuid.UUID
	ProjectID     uuid.UUID
	Currency      string
	OriginalMinor int64
	DueDate       time.Time
	Comments      string
}

type EditInput struct {
	PledgeID      uuid.UUID
	OriginalMinor int64
	DueDate       time.Time
	Comments      string
}

type service struct {
	repo   Repo
	writer Writer
	stl    settlement.Service
}

func New(repo Repo, writer Writer, stl settlement.Service) Service {
	return &service{repo: repo, writer: writer, stl: stl}
}

func (s *service) Create(ctx context.Context, in CreateInput) (treasury.Pledge, error) {
	if in.MemberID == uuid.Nil || in.ProjectID == uuid.Nil || in.Currency == "" {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	if in.OriginalMinor <= 0 {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	if _, err := s.repo.GetMember(ctx, in.MemberID); err != nil {
		return treasury.Pledge{}, err
	}
	if _, err := s.repo.GetProject(ctx, in.ProjectID); err != nil {
		return treasury.Pledge{}, err
	}
	original, err := money.NewAmountFromMinorUnits(in.Currency, in.OriginalMinor)
	if err != nil {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	zero, _ := money.NewAmountFromMinorUnits(in.Currency, 0)
	p := treasury.Pledge{
		ID:             uuid.New(),
		MemberID:       in.MemberID,
		ProjectID:      in.ProjectID,
		OriginalAmount: original,
		PaidAmount:     zero,
		DueDate:        in.DueDate,
		Comments:       in.Comments,
	}
	return s.writer.CreatePledge(ctx, p)
}

func (s *service) Edit(ctx context.Context, in EditInput) (treasury.Pledge, error) {
	if in.PledgeID == uuid.Nil {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	if in.OriginalMinor <= 0 {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	p, err := s.repo.GetPledge(ctx, in.PledgeID)
	if err != nil {
		return treasury.Pledge{}, err
	}
	// The original amount cannot shrink below what is already paid.
	if paid, _ := p.PaidAmount.MinorUnits(); in.OriginalMinor < paid {
		return treasury.Pledge{}, errs.ErrBelowPaid
	}
	p.OriginalAmount, err = money.NewAmountFromMinorUnits(p.OriginalAmount.Curr().Code(), in.OriginalMinor)
	if err != nil {
		return treasury.Pledge{}, errs.ErrInvalid
	}
	if !in.DueDate.IsZero() {
		p.DueDate = in.DueDate
	}
	p.Comments = in.Comments
	return s.writer.UpdatePledge(ctx, p)
}

func (s *service) Delete(ctx context.Context, pledgeID uuid.UUID) error {
	if pledgeID == uuid.Nil {
		return errs.ErrInvalid
	}
	p, err := s.repo.GetPledge(ctx, pledgeID)
	if err != nil {
		return err
	}
	if paid, _ := p.PaidAmount.MinorUnits(); paid == 0 {
		return s.writer.DeletePledge(ctx, pledgeID)
	}
	// Reversal and removal commit together.
	_, err = s.stl.ReversePaidPledge(ctx, pledgeID, true)
	return err
}

func (s *service) RecordPayment(ctx context.Context, in settlement.PledgePaymentInput) (treasury.Pledge, error) {
	return s.stl.RecordPledgePayment(ctx, in)
}
