package postgres

// Package postgres provides a pgx-backed storage implementation satisfying
// the repository and writer interfaces used by the services.
//
// The one piece with real design weight is ApplySettlement: every atomic
// operation of the settlement coordinator runs here as a single database
// transaction that locks the touched account rows with SELECT ... FOR
// UPDATE before re-checking balances, so concurrent postings to the same
// account serialize instead of losing updates. Migrations that create the
// expected schema live under db/migrations.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coopware/treasury/internal/errs"
	"github.com/coopware/treasury/internal/treasury"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// ApplySettlement runs one settlement as a single transaction. Balances are
// re-read under row locks; an insufficient balance rolls everything back.
func (s *Store) ApplySettlement(ctx context.Context, st treasury.Settlement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if st.Account != nil {
		if err := insertAccount(ctx, tx, *st.Account); err != nil {
			return err
		}
	}

	if len(st.Deltas) > 0 {
		// collapse duplicate accounts so each row is locked and updated once
		perAccount := make(map[uuid.UUID]int64, len(st.Deltas))
		ids := make([]uuid.UUID, 0, len(st.Deltas))
		for _, d := range st.Deltas {
			if _, seen := perAccount[d.AccountID]; !seen {
				ids = append(ids, d.AccountID)
			}
			perAccount[d.AccountID] += d.AmountMinor
		}
		// Rows are locked in id order so two opposite concurrent transfers
		// cannot deadlock each other.
		rows, err := tx.Query(ctx, `
            select id, current_balance_minor
            from accounts
            where id = any($1)
            order by id
            for update
        `, ids)
		if err != nil {
			return err
		}
		balances := make(map[uuid.UUID]int64, len(ids))
		for rows.Next() {
			var id uuid.UUID
			var bal int64
			if err := rows.Scan(&id, &bal); err != nil {
				rows.Close()
				return err
			}
			balances[id] = bal
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(balances) != len(ids) {
			return errs.ErrNotFound
		}
		for id, delta := range perAccount {
			next := balances[id] + delta
			if next < 0 {
				return errs.ErrInsufficientFunds
			}
			if _, err := tx.Exec(ctx, `
                update accounts set current_balance_minor = $1 where id = $2
            `, next, id); err != nil {
				return err
			}
		}
	}

	for _, t := range st.Transactions {
		minor, _ := t.Amount.MinorUnits()
		var pledgeID *uuid.UUID
		if t.PledgeID != uuid.Nil {
			pledgeID = &t.PledgeID
		}
		if _, err := tx.Exec(ctx, `
            insert into transactions (id, account_id, owner_id, type, amount_minor, date, description, pledge_id, reversed, batch_id)
            values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        `, t.ID, t.AccountID, t.OwnerID, t.Type, minor, t.Date, t.Description, pledgeID, t.Reversed, t.BatchID); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if len(st.ReverseTransactionIDs) > 0 {
		ct, err := tx.Exec(ctx, `
            update transactions set reversed = true where id = any($1)
        `, st.ReverseTransactionIDs)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != int64(len(st.ReverseTransactionIDs)) {
			return errs.ErrNotFound
		}
	}

	if st.Pledge != nil {
		if err := upsertPledge(ctx, tx, *st.Pledge); err != nil {
			return err
		}
	}
	if st.DeletePledgeID != uuid.Nil {
		ct, err := tx.Exec(ctx, `delete from pledges where id = $1`, st.DeletePledgeID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
	}
	if st.Debt != nil {
		due, _ := st.Debt.AmountDue.MinorUnits()
		ct, err := tx.Exec(ctx, `
            update debts set amount_due_minor = $1 where id = $2
        `, due, st.Debt.ID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
	}
	if st.Collection != nil {
		c := st.Collection
		minor, _ := c.Amount.MinorUnits()
		if _, err := tx.Exec(ctx, `
            insert into collections (id, project_id, member_id, account_id, amount_minor, date)
            values ($1,$2,$3,$4,$5,$6)
        `, c.ID, c.ProjectID, c.MemberID, c.AccountID, minor, c.Date); err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// --- Members and projects ---

func (s *Store) CreateMember(ctx context.Context, m treasury.Member) (treasury.Member, error) {
	_, err := s.pool.Exec(ctx, `
        insert into members (id, name, email) values ($1,$2,$3)
    `, m.ID, m.Name, m.Email)
	if err != nil {
		return treasury.Member{}, err
	}
	return m, nil
}

func (s *Store) GetMember(ctx context.Context, memberID uuid.UUID) (treasury.Member, error) {
	var m treasury.Member
	err := s.pool.QueryRow(ctx, `
        select id, name, email from members where id = $1
    `, memberID).Scan(&m.ID, &m.Name, &m.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return treasury.Member{}, errs.ErrNotFound
	}
	if err != nil {
		return treasury.Member{}, err
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]treasury.Member, error) {
	rows, err := s.pool.Query(ctx, `select id, name, email from members order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]treasury.Member, 0)
	for rows.Next() {
		var m treasury.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreateProject(ctx context.Context, p treasury.Project) (treasury.Project, error) {
	_, err := s.pool.Exec(ctx, `
        insert into projects (id, name, active) values ($1,$2,$3)
    `, p.ID, p.Name, p.Active)
	if err != nil {
		return treasury.Project{}, err
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, projectID uuid.UUID) (treasury.Project, error) {
	var p treasury.Project
	err := s.pool.QueryRow(ctx, `
        select id, name, active from projects where id = $1
    `, projectID).Scan(&p.ID, &p.Name, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return treasury.Project{}, errs.ErrNotFound
	}
	if err != nil {
		return treasury.Project{}, err
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]treasury.Project, error) {
	rows, err := s.pool.Query(ctx, `select id, name, active from projects order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]treasury.Project, 0)
	for rows.Next() {
		var p treasury.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Accounts ---

const accountCols = `id, owner_id, name, currency, initial_balance_minor, current_balance_minor, can_receive_payments, active`

func scanAccount(row pgx.Row) (treasury.FinancialAccount, error) {
	var a treasury.FinancialAccount
	var initial, current int64
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Currency, &initial, &current, &a.CanReceivePayments, &a.Active); err != nil {
		return treasury.FinancialAccount{}, err
	}
	a.InitialBalance, _ = money.NewAmountFromMinorUnits(a.Currency, initial)
	a.CurrentBalance, _ = money.NewAmountFromMinorUnits(a.Currency, current)
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID uuid.UUID) (treasury.FinancialAccount, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `
        select `+accountCols+` from accounts where id = $1
    `, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return treasury.FinancialAccount{}, errs.ErrNotFound
	}
	return a, err
}

func (s *Store) AccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]treasury.FinancialAccount, error) {
	return s.queryAccounts(ctx, `
        select `+accountCols+` from accounts where owner_id = $1 order by name
    `, ownerID)
}

func (s *Store) ListReceivingAccounts(ctx context.Context) ([]treasury.FinancialAccount, error) {
	return s.queryAccounts(ctx, `
        select `+accountCols+` from accounts where active and can_receive_payments order by name
    `)
}

func (s *Store) queryAccounts(ctx context.Context, q string, args ...any) ([]treasury.FinancialAccount, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]treasury.FinancialAccount, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeactivateAccount soft-deletes; journal rows keep their reference.
func (s *Store) DeactivateAccount(ctx context.Context, accountID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `update accounts set active = false where id = $1`, accountID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func insertAccount(ctx context.Context, tx pgx.Tx, a treasury.FinancialAccount) error {
	initial, _ := a.InitialBalance.MinorUnits()
	current, _ := a.CurrentBalance.MinorUnits()
	_, err := tx.Exec(ctx, `
        insert into accounts (id, owner_id, name, currency, initial_balance_minor, current_balance_minor, can_receive_payments, active)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
    `, a.ID, a.OwnerID, a.Name, a.Currency, initial, current, a.CanReceivePayments, a.Active)
	return err
}

// --- Transactions ---

func (s *Store) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]treasury.Transaction, error) {
	q := `
        select t.id, t.account_id, t.owner_id, t.type, t.amount_minor, t.date, t.description, t.pledge_id, t.reversed, t.batch_id, a.currency
        from transactions t
        join accounts a on a.id = t.account_id
        where t.account_id = $1
    `
	args := []any{accountID}
	if from != nil {
		args = append(args, *from)
		q += fmt.Sprintf(" and t.date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		q += fmt.Sprintf(" and t.date <= $%d", len(args))
	}
	q += " order by t.date asc, t.id asc"
	return s.queryTransactions(ctx, q, args...)
}

func (s *Store) TransactionsByPledge(ctx context.Context, pledgeID uuid.UUID) ([]treasury.Transaction, error) {
	return s.queryTransactions(ctx, `
        select t.id, t.account_id, t.owner_id, t.type, t.amount_minor, t.date, t.description, t.pledge_id, t.reversed, t.batch_id, a.currency
        from transactions t
        join accounts a on a.id = t.account_id
        where t.pledge_id = $1
        order by t.date asc, t.id asc
    `, pledgeID)
}

func (s *Store) queryTransactions(ctx context.Context, q string, args ...any) ([]treasury.Transaction, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]treasury.Transaction, 0)
	for rows.Next() {
		var t treasury.Transaction
		var minor int64
		var pledgeID *uuid.UUID
		var curr string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.OwnerID, &t.Type, &minor, &t.Date, &t.Description, &pledgeID, &t.Reversed, &t.BatchID, &curr); err != nil {
			return nil, err
		}
		if pledgeID != nil {
			t.PledgeID = *pledgeID
		}
		t.Amount, _ = money.NewAmountFromMinorUnits(curr, minor)
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Pledges ---

// Pledge status is stored denormalized but always recomputed from the
// amounts on write, never taken from a caller.

func upsertPledge(ctx context.Context, tx pgx.Tx, p treasury.Pledge) error {
	orig, _ := p.OriginalAmount.MinorUnits()
	paid, _ := p.PaidAmount.MinorUnits()
	_, err := tx.Exec(ctx, `
        insert into pledges (id, member_id, project_id, original_minor, paid_minor, currency, due_date, status, comments)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        on conflict (id) do update
        set original_minor = excluded.original_minor,
            paid_minor     = excluded.paid_minor,
            due_date       = excluded.due_date,
            status         = excluded.status,
            comments       = excluded.comments
    `, p.ID, p.MemberID, p.ProjectID, orig, paid, p.OriginalAmount.Curr().Code(), p.DueDate, p.Status(), p.Comments)
	return err
}

func (s *Store) CreatePledge(ctx context.Context, p treasury.Pledge) (treasury.Pledge, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return treasury.Pledge{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := upsertPledge(ctx, tx, p); err != nil {
		return treasury.Pledge{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return treasury.Pledge{}, err
	}
	return p, nil
}

func (s *Store) UpdatePledge(ctx context.Context, p treasury.Pledge) (treasury.Pledge, error) {
	orig, _ := p.OriginalAmount.MinorUnits()
	paid, _ := p.PaidAmount.MinorUnits()
	ct, err := s.pool.Exec(ctx, `
        update pledges
        set original_minor=$1, paid_minor=$2, due_date=$3, status=$4, comments=$5
        where id=$6
    `, orig, paid, p.DueDate, p.Status(), p.Comments, p.ID)
	if err != nil {
		return treasury.Pledge{}, err
	}
	if ct.RowsAffected() == 0 {
		return treasury.Pledge{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *Store) DeletePledge(ctx context.Context, pledgeID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from pledges where id = $1`, pledgeID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

const pledgeCols = `id, member_id, project_id, original_minor, paid_minor, currency, due_date, comments`

func scanPledge(row pgx.Row) (treasury.Pledge, error) {
	var p treasury.Pledge
	var orig, paid int64
	var curr string
	if err := row.Scan(&p.ID, &p.MemberID, &p.ProjectID, &orig, &paid, &curr, &p.DueDate, &p.Comments); err != nil {
		return treasury.Pledge{}, err
	}
	p.OriginalAmount, _ = money.NewAmountFromMinorUnits(curr, orig)
	p.PaidAmount, _ = money.NewAmountFromMinorUnits(curr, paid)
	return p, nil
}

func (s *Store) GetPledge(ctx context.Context, pledgeID uuid.UUID) (treasury.Pledge, error) {
	p, err := scanPledge(s.pool.QueryRow(ctx, `
        select `+pledgeCols+` from pledges where id = $1
    `, pledgeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return treasury.Pledge{}, errs.ErrNotFound
	}
	return p, err
}

func (s *Store) PledgesByMember(ctx context.Context, memberID uuid.UUID) ([]treasury.Pledge, error) {
	return s.queryPledges(ctx, `
        select `+pledgeCols+` from pledges where member_id = $1 order by due_date asc, id asc
    `, memberID)
}

func (s *Store) PledgesByProject(ctx context.Context, projectID uuid.UUID) ([]treasury.Pledge, error) {
	return s.queryPledges(ctx, `
        select `+pledgeCols+` from pledges where project_id = $1 order by due_date asc, id asc
    `, projectID)
}

func (s *Store) queryPledges(ctx context.Context, q string, args ...any) ([]treasury.Pledge, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]treasury.Pledge, 0)
	for rows.Next() {
		p, err := scanPledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Collections ---

func (s *Store) CollectionsByProject(ctx context.Context, projectID uuid.UUID) ([]treasury.Collection, error) {
	rows, err := s.pool.Query(ctx, `
        select c.id, c.project_id, c.member_id, c.account_id, c.amount_minor, c.date, a.currency
        from collections c
        join accounts a on a.id = c.account_id
        where c.project_id = $1
        order by c.date asc, c.id asc
    `, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]treasury.Collection, 0)
	for rows.Next() {
		var c treasury.Collection
		var minor int64
		var curr string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.MemberID, &c.AccountID, &minor, &c.Date, &curr); err != nil {
			return nil, err
		}
		c.Amount, _ = money.NewAmountFromMinorUnits(curr, minor)
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Debts ---

func (s *Store) CreateDebt(ctx context.Context, d treasury.Debt) (treasury.Debt, error) {
	orig, _ := d.OriginalAmount.MinorUnits()
	due, _ := d.AmountDue.MinorUnits()
	_, err := s.pool.Exec(ctx, `
        insert into debts (id, member_id, debtor_name, sale_ref, original_minor, amount_due_minor, currency)
        values ($1,$2,$3,$4,$5,$6,$7)
    `, d.ID, d.MemberID, d.DebtorName, d.SaleRef, orig, due, d.OriginalAmount.Curr().Code())
	if err != nil {
		return treasury.Debt{}, err
	}
	return d, nil
}

func (s *Store) GetDebt(ctx context.Context, debtID uuid.UUID) (treasury.Debt, error) {
	var d treasury.Debt
	var orig, due int64
	var curr string
	err := s.pool.QueryRow(ctx, `
        select id, member_id, debtor_name, sale_ref, original_minor, amount_due_minor, currency
        from debts where id = $1
    `, debtID).Scan(&d.ID, &d.MemberID, &d.DebtorName, &d.SaleRef, &orig, &due, &curr)
	if errors.Is(err, pgx.ErrNoRows) {
		return treasury.Debt{}, errs.ErrNotFound
	}
	if err != nil {
		return treasury.Debt{}, err
	}
	d.OriginalAmount, _ = money.NewAmountFromMinorUnits(curr, orig)
	d.AmountDue, _ = money.NewAmountFromMinorUnits(curr, due)
	return d, nil
}

func (s *Store) DebtsByMember(ctx context.Context, memberID uuid.UUID) ([]treasury.Debt, error) {
	rows, err := s.pool.Query(ctx, `
        select id, member_id, debtor_name, sale_ref, original_minor, amount_due_minor, currency
        from debts where member_id = $1 order by id
    `, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]treasury.Debt, 0)
	for rows.Next() {
		var d treasury.Debt
		var orig, due int64
		var curr string
		if err := rows.Scan(&d.ID, &d.MemberID, &d.DebtorName, &d.SaleRef, &orig, &due, &curr); err != nil {
			return nil, err
		}
		d.OriginalAmount, _ = money.NewAmountFromMinorUnits(curr, orig)
		d.AmountDue, _ = money.NewAmountFromMinorUnits(curr, due)
		out = append(out, d)
	}
	return out, rows.Err()
}
