package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/coopware/treasury/internal/match"
)

// Workbook layout shared by Template and ParseWorkbook. The column set and
// the matching keys must stay in lockstep: a template filled with amounts
// and nothing else has to resolve every row on re-upload.
const (
	sheetCollections = "Collections"
	sheetAccounts    = "ReceivingAccounts"
)

var templateHeader = []string{"member_email", "member_name", "amount", "receiving_account_name", "collection_date"}

func (s *service) Template(ctx context.Context, in TemplateInput) ([]byte, error) {
	members, err := s.dir.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := s.dir.ListReceivingAccounts(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheetCollections)
	if _, err := f.NewSheet(sheetAccounts); err != nil {
		return nil, err
	}

	for i, h := range templateHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetCollections, cell, h); err != nil {
			return nil, err
		}
	}
	date := ""
	if !in.Date.IsZero() {
		date = in.Date.Format("2006-01-02")
	}
	for i, m := range members {
		row := i + 2
		f.SetCellValue(sheetCollections, fmt.Sprintf("A%d", row), m.Email)
		f.SetCellValue(sheetCollections, fmt.Sprintf("B%d", row), m.Name)
		// amount left blank: unfilled rows are skipped on upload
		f.SetCellValue(sheetCollections, fmt.Sprintf("D%d", row), in.DefaultAccountName)
		f.SetCellValue(sheetCollections, fmt.Sprintf("E%d", row), date)
	}

	f.SetCellValue(sheetAccounts, "A1", "account_name")
	for i, a := range accounts {
		f.SetCellValue(sheetAccounts, fmt.Sprintf("A%d", i+2), a.Name)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *service) ParseWorkbook(data []byte) ([]RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetCollections)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheetCollections, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetCollections)
	}

	// Columns are located by header name, not position, so reordered or
	// extended sheets still parse.
	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[match.Key(strings.ReplaceAll(h, "_", " "))] = i
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]RawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, RawRow{
			MemberID:    cell(row, "member id"),
			MemberEmail: cell(row, "member email"),
			MemberName:  cell(row, "member name"),
			AccountID:   cell(row, "account id"),
			AccountName: cell(row, "receiving account name"),
			Amount:      cell(row, "amount"),
			Date:        cell(row, "collection date"),
		})
	}
	return out, nil
}
