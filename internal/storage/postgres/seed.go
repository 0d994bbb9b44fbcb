package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/treasury"
)

// SeedDev inserts a small fixture for local compose runs: two members, one
// project and a receiving cash account. Idempotency is not attempted; run it
// against a fresh database only.
func (s *Store) SeedDev(ctx context.Context, currency string) (treasury.Member, treasury.Project, treasury.FinancialAccount, error) {
	member, err := s.CreateMember(ctx, treasury.Member{ID: uuid.New(), Name: "Ada Mensah", Email: "ada@example.org"})
	if err != nil {
		return treasury.Member{}, treasury.Project{}, treasury.FinancialAccount{}, err
	}
	if _, err := s.CreateMember(ctx, treasury.Member{ID: uuid.New(), Name: "Kofi Boateng", Email: "kofi@example.org"}); err != nil {
		return treasury.Member{}, treasury.Project{}, treasury.FinancialAccount{}, err
	}
	project, err := s.CreateProject(ctx, treasury.Project{ID: uuid.New(), Name: "Building Fund", Active: true})
	if err != nil {
		return treasury.Member{}, treasury.Project{}, treasury.FinancialAccount{}, err
	}
	zero, _ := money.NewAmountFromMinorUnits(currency, 0)
	cash := treasury.FinancialAccount{
		ID:                 uuid.New(),
		OwnerID:            member.ID,
		Name:               "Main Cash",
		Currency:           currency,
		InitialBalance:     zero,
		CurrentBalance:     zero,
		CanReceivePayments: true,
		Active:             true,
	}
	if err := s.ApplySettlement(ctx, treasury.Settlement{Account: &cash}); err != nil {
		return treasury.Member{}, treasury.Project{}, treasury.FinancialAccount{}, err
	}
	return member, project, cash, nil
}
