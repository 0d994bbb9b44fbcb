// Package reconcile turns externally supplied rows (an inline grid or an
// uploaded workbook) into collections. Rows are matched to members and
// receiving accounts, then submitted one at a time through the same atomic
// operation a single manual collection uses. Batches are never
// all-or-nothing; partial success is the expected outcome.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coopware/treasury/internal/match"
	"github.com/coopware/treasury/internal/service/settlement"
	"github.com/coopware/treasury/internal/treasury"
)

// Directory supplies the registries rows are matched against.
type Directory interface {
	ListMembers(ctx context.Context) ([]treasury.Member, error)
	// ListReceivingAccounts returns active accounts flagged to receive
	// payments.
	ListReceivingAccounts(ctx context.Context) ([]treasury.FinancialAccount, error)
}

// Service matches and submits collection batches.
type Service interface {
	Run(ctx context.Context, batch Batch) (Result, error)
	// Template builds the downloadable workbook whose rows, filled with
	// amounts and nothing else, resolve through the same matcher Run uses.
	Template(ctx context.Context, in TemplateInput) ([]byte, error)
	// ParseWorkbook extracts raw rows from an uploaded workbook.
	ParseWorkbook(data []byte) ([]RawRow, error)
}

// RawRow is one unvalidated batch row, as entered or uploaded.
type RawRow struct {
	MemberID    string `json:"member_id,omitempty"`
	MemberEmail string `json:"member_email,omitempty"`
	MemberName  string `json:"member_name,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	Amount      string `json:"amount"`
	Date        string `json:"date,omitempty"`
}

// Batch is a set of raw rows destined for one project.
type Batch struct {
	ProjectID uuid.UUID
	// DefaultAccountID receives rows that name no account.
	DefaultAccountID uuid.UUID
	// DefaultDate is the batch's chosen collection date, used when a row's
	// date is absent or unparseable.
	DefaultDate time.Time
	Rows        []RawRow
	// RowOffset shifts reported row numbers, so errors from an uploaded
	// workbook name the spreadsheet row including its header.
	RowOffset int
	// BatchID tags the created journal rows; generated when empty.
	BatchID string
}

// RowError names a row that could not be resolved or submitted.
type RowError struct {
	Row int    `json:"row"`
	Err string `json:"error"`
}

// Result reports per-batch counts. Skipped rows (no usable amount) are the
// normal state of a template with unfilled rows, not errors.
type Result struct {
	BatchID   string     `json:"batch_id"`
	Succeeded int        `json:"succeeded"`
	Skipped   int        `json:"skipped"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors,omitempty"`
}

type TemplateInput struct {
	// DefaultAccountName is pre-filled per row so the unmodified template
	// round-trips through the account matcher.
	DefaultAccountName string
	Date               time.Time
}

type service struct {
	dir Directory
	stl settlement.Service
	// currencyScale is the minor-unit scale of the deployment currency.
	currencyScale int
}

func New(dir Directory, stl settlement.Service, currencyScale int) Service {
	return &service{dir: dir, stl: stl, currencyScale: currencyScale}
}

func (s *service) Run(ctx context.Context, batch Batch) (Result, error) {
	if batch.ProjectID == uuid.Nil {
		return Result{}, fmt.Errorf("project is required")
	}
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}
	members, err := s.dir.ListMembers(ctx)
	if err != nil {
		return Result{}, err
	}
	accounts, err := s.dir.ListReceivingAccounts(ctx)
	if err != nil {
		return Result{}, err
	}
	idx := buildIndex(members, accounts)

	res := Result{BatchID: batch.BatchID}
	for i, row := range batch.Rows {
		// Row numbers in errors are 1-based over the submitted rows, plus
		// the batch's offset so workbook errors name the spreadsheet row.
		n := i + 1 + batch.RowOffset
		minor, ok := match.AmountMinor(row.Amount, s.currencyScale)
		if !ok {
			res.Skipped++
			continue
		}
		memberID, ok := idx.resolveMember(row)
		if !ok {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: n, Err: fmt.Sprintf("Row %d: member not found", n)})
			continue
		}
		accountID, ok := idx.resolveAccount(row, batch.DefaultAccountID)
		if !ok {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: n, Err: fmt.Sprintf("Row %d: account not found", n)})
			continue
		}
		// Sequential submission on purpose: one failing row must not take
		// the rest of the batch with it, and no failed row is retried.
		_, err := s.stl.RecordCollection(ctx, settlement.CollectionInput{
			ProjectID:   batch.ProjectID,
			MemberID:    memberID,
			AccountID:   accountID,
			AmountMinor: minor,
			Date:        match.Date(row.Date, batch.DefaultDate),
			BatchID:     batch.BatchID,
		})
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: n, Err: fmt.Sprintf("Row %d: %v", n, err)})
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// index holds the matching keys for one batch run. Keys go through
// match.Key so template output and upload input resolve identically.
type index struct {
	membersByID    map[uuid.UUID]struct{}
	membersByEmail map[string]uuid.UUID
	membersByName  map[string]uuid.UUID
	accountsByID   map[uuid.UUID]struct{}
	accountsByName map[string]uuid.UUID
}

func buildIndex(members []treasury.Member, accounts []treasury.FinancialAccount) index {
	idx := index{
		membersByID:    make(map[uuid.UUID]struct{}, len(members)),
		membersByEmail: make(map[string]uuid.UUID, len(members)),
		membersByName:  make(map[string]uuid.UUID, len(members)),
		accountsByID:   make(map[uuid.UUID]struct{}, len(accounts)),
		accountsByName: make(map[string]uuid.UUID, len(accounts)),
	}
	for _, m := range members {
		idx.membersByID[m.ID] = struct{}{}
		if k := match.Key(m.Email); k != "" {
			idx.membersByEmail[k] = m.ID
		}
		if k := match.Key(m.Name); k != "" {
			idx.membersByName[k] = m.ID
		}
	}
	for _, a := range accounts {
		idx.accountsByID[a.ID] = struct{}{}
		if k := match.Key(a.Name); k != "" {
			idx.accountsByName[k] = a.ID
		}
	}
	return idx
}

// resolveMember applies the matching priority: explicit id, then email,
// then exact name.
func (idx index) resolveMember(row RawRow) (uuid.UUID, bool) {
	if row.MemberID != "" {
		if id, err := uuid.Parse(row.MemberID); err == nil {
			if _, ok := idx.membersByID[id]; ok {
				return id, true
			}
		}
		return uuid.Nil, false
	}
	if k := match.Key(row.MemberEmail); k != "" {
		if id, ok := idx.membersByEmail[k]; ok {
			return id, true
		}
	}
	if k := match.Key(row.MemberName); k != "" {
		if id, ok := idx.membersByName[k]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// resolveAccount matches by explicit id, then name, then the batch default.
func (idx index) resolveAccount(row RawRow, fallback uuid.UUID) (uuid.UUID, bool) {
	if row.AccountID != "" {
		if id, err := uuid.Parse(row.AccountID); err == nil {
			if _, ok := idx.accountsByID[id]; ok {
				return id, true
			}
		}
		return uuid.Nil, false
	}
	if k := match.Key(row.AccountName); k != "" {
		if id, ok := idx.accountsByName[k]; ok {
			return id, true
		}
		return uuid.Nil, false
	}
	if fallback != uuid.Nil {
		if _, ok := idx.accountsByID[fallback]; ok {
			return fallback, true
		}
	}
	return uuid.Nil, false
}
