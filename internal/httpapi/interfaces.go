package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coopware/treasury/internal/treasury"
)

// Reader provides the read projections the API serves directly. The memory
// and postgres stores both satisfy it.
type Reader interface {
	GetMember(ctx context.Context, memberID uuid.UUID) (treasury.Member, error)
	ListMembers(ctx context.Context) ([]treasury.Member, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (treasury.Project, error)
	ListProjects(ctx context.Context) ([]treasury.Project, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (treasury.FinancialAccount, error)
	AccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]treasury.FinancialAccount, error)
	ListReceivingAccounts(ctx context.Context) ([]treasury.FinancialAccount, error)
	TransactionsByAccount(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]treasury.Transaction, error)
	GetPledge(ctx context.Context, pledgeID uuid.UUID) (treasury.Pledge, error)
	PledgesByMember(ctx context.Context, memberID uuid.UUID) ([]treasury.Pledge, error)
	PledgesByProject(ctx context.Context, projectID uuid.UUID) ([]treasury.Pledge, error)
	CollectionsByProject(ctx context.Context, projectID uuid.UUID) ([]treasury.Collection, error)
	GetDebt(ctx context.Context, debtID uuid.UUID) (treasury.Debt, error)
	DebtsByMember(ctx context.Context, memberID uuid.UUID) ([]treasury.Debt, error)
}

// RegistryWriter persists the rows created outside settlements: members,
// projects, debt records and account soft-deletes.
type RegistryWriter interface {
	CreateMember(ctx context.Context, m treasury.Member) (treasury.Member, error)
	CreateProject(ctx context.Context, p treasury.Project) (treasury.Project, error)
	CreateDebt(ctx context.Context, d treasury.Debt) (treasury.Debt, error)
	DeactivateAccount(ctx context.Context, accountID uuid.UUID) error
}
