package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// The template must round-trip: download it, fill in amounts for some
// members, upload it, and exactly those members' rows land as collections.
func TestTemplate_RoundTrip(t *testing.T) {
	store, svc, project, members, acc := setup(t)
	ctx := context.Background()

	data, err := svc.Template(ctx, TemplateInput{
		DefaultAccountName: "Main Cash",
		Date:               time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("template: %v", err)
	}

	// fill amounts for the first two roster rows, leave the third blank
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open template: %v", err)
	}
	f.SetCellValue("Collections", "C2", "12.00")
	f.SetCellValue("Collections", "C3", "8.50")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write filled template: %v", err)
	}
	f.Close()

	rows, err := svc.ParseWorkbook(buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != len(members) {
		t.Fatalf("parsed %d rows, want %d", len(rows), len(members))
	}

	res, err := svc.Run(ctx, Batch{ProjectID: project.ID, Rows: rows})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 2 || res.Skipped != 1 || res.Failed != 0 {
		t.Fatalf("counts = %+v", res)
	}
	got, _ := store.GetAccount(ctx, acc.ID)
	if minor, _ := got.CurrentBalance.MinorUnits(); minor != 2050 {
		t.Fatalf("balance = %d, want 2050", minor)
	}
}

func TestTemplate_ListsRosterAndAccounts(t *testing.T) {
	_, svc, _, members, _ := setup(t)
	data, err := svc.Template(context.Background(), TemplateInput{DefaultAccountName: "Main Cash"})
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Collections")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != len(members)+1 {
		t.Fatalf("collections rows = %d, want %d", len(rows), len(members)+1)
	}
	emails := map[string]bool{}
	for _, r := range rows[1:] {
		if len(r) > 0 {
			emails[r[0]] = true
		}
	}
	for _, m := range members {
		if !emails[m.Email] {
			t.Fatalf("member %s missing from template", m.Email)
		}
	}

	accRows, err := f.GetRows("ReceivingAccounts")
	if err != nil {
		t.Fatalf("accounts sheet: %v", err)
	}
	if len(accRows) != 2 || accRows[1][0] != "Main Cash" {
		t.Fatalf("accounts sheet = %+v", accRows)
	}
}

func TestParseWorkbook_ReorderedColumns(t *testing.T) {
	_, svc, _, _, _ := setup(t)
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Collections")
	headers := []string{"amount", "member_email", "receiving_account_name"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Collections", cell, h)
	}
	f.SetCellValue("Collections", "A2", "3.00")
	f.SetCellValue("Collections", "B2", "ama@example.org")
	f.SetCellValue("Collections", "C2", "Main Cash")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	rows, err := svc.ParseWorkbook(buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Amount != "3.00" || rows[0].MemberEmail != "ama@example.org" || rows[0].AccountName != "Main Cash" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestParseWorkbook_MissingSheet(t *testing.T) {
	_, svc, _, _, _ := setup(t)
	f := excelize.NewFile()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()
	if _, err := svc.ParseWorkbook(buf.Bytes()); err == nil {
		t.Fatalf("expected error for missing sheet")
	} else if !bytes.Contains([]byte(err.Error()), []byte(fmt.Sprintf("%q", "Collections"))) {
		t.Fatalf("error does not name the sheet: %v", err)
	}
}
