package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func newTestImporter(store *fakeStore, notifier Notifier) *Importer {
	return NewImporter(store, fixedValidator(), notifier, store)
}

func nItems(n int) [][]Cell {
	rows := make([][]Cell, n)
	for i := range rows {
		rows[i] = itemRow("Research Nurse", float64(30000+i), "50%")
	}
	return rows
}

func TestImporter_CommitsEveryValidSheet(t *testing.T) {
	store := newFakeStore()
	wb := &Workbook{Sheets: []Sheet{
		grantSheet("Malaria Vaccine Trial", "G-1", nItems(3)...),
		grantSheet("TB Screening", "G-2", nItems(5)...),
	}}

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx", wb)

	if res.ProcessedGrants != 2 || res.ProcessedItems != 8 {
		t.Errorf("processed %d grants, %d items; want 2, 8", res.ProcessedGrants, res.ProcessedItems)
	}
	if len(res.Errors) != 0 || len(res.SkippedGrants) != 0 {
		t.Errorf("errors = %v, skipped = %v; want none", res.Errors, res.SkippedGrants)
	}
	if grants, items := store.counts(); grants != 2 || items != 8 {
		t.Errorf("store holds %d grants, %d items; want 2, 8", grants, items)
	}
	if res.Summary() != "Processed: 2 grants, 8 grant items" {
		t.Errorf("Summary() = %q", res.Summary())
	}
	for _, s := range res.Sheets {
		if s.State != StateCommitted {
			t.Errorf("sheet %q state = %s, want committed", s.Sheet, s.State)
		}
	}
}

func TestImporter_DuplicateCodeInWorkbook(t *testing.T) {
	store := newFakeStore()
	wb := &Workbook{Sheets: []Sheet{
		grantSheet("First", "G-1", nItems(2)...),
		grantSheet("Second", "G-1", nItems(4)...),
	}}

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx", wb)

	if res.ProcessedGrants != 1 || res.ProcessedItems != 2 {
		t.Errorf("processed %d grants, %d items; want 1, 2", res.ProcessedGrants, res.ProcessedItems)
	}
	if len(res.SkippedGrants) != 1 || res.SkippedGrants[0] != "G-1" {
		t.Errorf("SkippedGrants = %v, want [G-1]", res.SkippedGrants)
	}
	if len(res.Errors) != 0 {
		t.Errorf("a duplicate is not an error: %v", res.Errors)
	}
	if res.Sheets[1].State != StateSkipped {
		t.Errorf("second sheet state = %s, want skipped", res.Sheets[1].State)
	}
}

func TestImporter_ReimportIsIdempotent(t *testing.T) {
	store := newFakeStore()
	im := newTestImporter(store, nil)
	wb := &Workbook{Sheets: []Sheet{
		grantSheet("Malaria Vaccine Trial", "G-1", nItems(3)...),
		grantSheet("TB Screening", "G-2", nItems(5)...),
	}}

	im.ImportWorkbook(context.Background(), "grants.xlsx", wb)
	res := im.ImportWorkbook(context.Background(), "grants.xlsx", wb)

	if res.ProcessedGrants != 0 || res.ProcessedItems != 0 {
		t.Errorf("second run processed %d grants, %d items; want 0, 0", res.ProcessedGrants, res.ProcessedItems)
	}
	if strings.Join(res.SkippedGrants, ",") != "G-1,G-2" {
		t.Errorf("SkippedGrants = %v, want [G-1 G-2]", res.SkippedGrants)
	}
	if grants, items := store.counts(); grants != 2 || items != 8 {
		t.Errorf("store holds %d grants, %d items after re-import; want 2, 8", grants, items)
	}
	if res.Summary() != "Skipped: 2" {
		t.Errorf("Summary() = %q, want %q", res.Summary(), "Skipped: 2")
	}
}

func TestImporter_RowErrorFailsWholeSheet(t *testing.T) {
	store := newFakeStore()
	rows := nItems(4)
	rows[2][ColLevelOfEffort-1] = NumberCell(150)
	wb := &Workbook{Sheets: []Sheet{
		grantSheet("Malaria Vaccine Trial", "G-1", rows...),
		grantSheet("TB Screening", "G-2", nItems(1)...),
	}}

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx", wb)

	if res.Sheets[0].State != StateFailed {
		t.Errorf("sheet state = %s, want failed", res.Sheets[0].State)
	}
	if _, _, ok := lookup(store, "G-1"); ok {
		t.Error("grant G-1 was stored despite a row error")
	}
	if res.ProcessedGrants != 1 || res.ProcessedItems != 1 {
		t.Errorf("processed %d grants, %d items; want 1, 1", res.ProcessedGrants, res.ProcessedItems)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", res.Errors)
	}
	want := "Sheet 'Malaria Vaccine Trial', row 11 (cell E11): Level of effort must be between 0% and 100% (got '150')"
	if got := res.Errors[0].String(); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestImporter_HeaderErrorFailsSheet(t *testing.T) {
	store := newFakeStore()
	sheet := withHeader(grantSheet("Malaria Vaccine Trial", "G-1", nItems(1)...), RowSubsidiary, StringCell("SMRUU"))

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx", &Workbook{Sheets: []Sheet{sheet}})

	if res.Sheets[0].State != StateFailed {
		t.Fatalf("state = %s, want failed", res.Sheets[0].State)
	}
	want := "Sheet 'Malaria Vaccine Trial', cell B3: invalid subsidiary 'SMRUU'. Did you mean 'SMRU'?"
	if len(res.Errors) != 1 || res.Errors[0].String() != want {
		t.Errorf("errors = %v, want %q", res.ErrorStrings(), want)
	}
	if grants, _ := store.counts(); grants != 0 {
		t.Errorf("store holds %d grants, want 0", grants)
	}
}

func TestImporter_ItemInsertFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	store.failItemsFor = "G-2"
	wb := &Workbook{Sheets: []Sheet{
		grantSheet("Malaria Vaccine Trial", "G-1", nItems(3)...),
		grantSheet("TB Screening", "G-2", nItems(5)...),
	}}

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx", wb)

	if _, _, ok := lookup(store, "G-2"); ok {
		t.Error("grant G-2 header survived a failed item insert")
	}
	if grants, items := store.counts(); grants != 1 || items != 3 {
		t.Errorf("store holds %d grants, %d items; want 1, 3", grants, items)
	}
	if res.Sheets[1].State != StateFailed {
		t.Errorf("state = %s, want failed", res.Sheets[1].State)
	}
	want := "Sheet 'TB Screening': grant 'G-2' was not saved: A value is outside the allowed range (Code: DB008)"
	if len(res.Errors) != 1 || res.Errors[0].String() != want {
		t.Errorf("errors = %v, want %q", res.ErrorStrings(), want)
	}
}

func TestImporter_ConcurrentCommitIsSkipped(t *testing.T) {
	store := newFakeStore()
	store.raceCode = "G-1"

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx",
		&Workbook{Sheets: []Sheet{grantSheet("Malaria Vaccine Trial", "G-1", nItems(2)...)}})

	if res.Sheets[0].State != StateSkipped {
		t.Errorf("state = %s, want skipped", res.Sheets[0].State)
	}
	if len(res.SkippedGrants) != 1 || len(res.Errors) != 0 {
		t.Errorf("skipped = %v, errors = %v", res.SkippedGrants, res.Errors)
	}
}

func TestImporter_ExistenceCheckFailure(t *testing.T) {
	store := newFakeStore()
	store.existsErr = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx",
		&Workbook{Sheets: []Sheet{grantSheet("Malaria Vaccine Trial", "G-1", nItems(1)...)}})

	if res.Sheets[0].State != StateFailed {
		t.Errorf("state = %s, want failed", res.Sheets[0].State)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "(Code: DB004)") {
		t.Errorf("errors = %v, want a DB004 entry", res.ErrorStrings())
	}
}

func TestImporter_EmptySheetAndNoItems(t *testing.T) {
	store := newFakeStore()
	wb := &Workbook{Sheets: []Sheet{
		NewSheet("Notes", nil),
		grantSheet("Core Funding", "G-9"),
	}}

	res := newTestImporter(store, nil).ImportWorkbook(context.Background(), "grants.xlsx", wb)

	if res.Sheets[0].State != StateSkipped || len(res.SkippedGrants) != 0 {
		t.Errorf("empty sheet: state %s, skipped %v", res.Sheets[0].State, res.SkippedGrants)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Message != "sheet is empty and was ignored" {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if res.ProcessedGrants != 1 || res.ProcessedItems != 0 {
		t.Errorf("processed %d grants, %d items; want 1, 0", res.ProcessedGrants, res.ProcessedItems)
	}
	if got := res.Summary(); got != "Processed: 1 grant, Warnings: 1" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestImporter_NotifierFailureDoesNotPropagate(t *testing.T) {
	store := newFakeStore()
	var (
		mu  sync.Mutex
		got []Notification
	)
	notifier := MultiNotifier{
		NotifierFunc(func(ctx context.Context, n Notification) error {
			return errors.New("smtp unavailable")
		}),
		NotifierFunc(func(ctx context.Context, n Notification) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, n)
			return nil
		}),
		NotifierFunc(func(ctx context.Context, n Notification) error {
			panic("notifier bug")
		}),
	}

	res := newTestImporter(store, notifier).ImportWorkbook(context.Background(), "grants.xlsx",
		&Workbook{Sheets: []Sheet{grantSheet("Malaria Vaccine Trial", "G-1", nItems(1)...)}})

	if res.ProcessedGrants != 1 {
		t.Errorf("processed %d grants, want 1", res.ProcessedGrants)
	}
	if len(got) != 1 || got[0].Level != LevelSuccess || got[0].ImportID != res.ImportID {
		t.Errorf("notifications = %+v", got)
	}
	if len(store.records) != 1 || store.records[0].Message != res.Summary() {
		t.Errorf("history = %+v", store.records)
	}
}

func TestImporter_ValidateWritesNothing(t *testing.T) {
	store := newFakeStore()
	buf := buildWorkbook(t, []string{"A", "B", "C"}, map[string]map[string]any{
		"A": grantCells("Malaria Vaccine Trial", "G-1", 3),
		"B": grantCells("Repeat", "G-1", 2),
		"C": grantCells("TB Screening", "G-2", 5),
	})

	res, err := newTestImporter(store, nil).Validate(context.Background(), "grants.xlsx", buf)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.DryRun {
		t.Error("DryRun = false")
	}
	if res.ProcessedGrants != 2 || res.ProcessedItems != 8 {
		t.Errorf("processed %d grants, %d items; want 2, 8", res.ProcessedGrants, res.ProcessedItems)
	}
	if len(res.SkippedGrants) != 1 {
		t.Errorf("SkippedGrants = %v, want one duplicate", res.SkippedGrants)
	}
	if grants, _ := store.counts(); grants != 0 {
		t.Errorf("dry run stored %d grants", grants)
	}
	if len(store.records) != 0 {
		t.Error("dry run recorded history")
	}
}

func TestImporter_ValidateWithoutStore(t *testing.T) {
	buf := buildWorkbook(t, []string{"A"}, map[string]map[string]any{
		"A": grantCells("Malaria Vaccine Trial", "G-1", 2),
	})
	res, err := NewImporter(nil, nil, nil, nil).Validate(context.Background(), "grants.xlsx", buf)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.ProcessedGrants != 1 || res.ProcessedItems != 2 {
		t.Errorf("processed %d grants, %d items; want 1, 2", res.ProcessedGrants, res.ProcessedItems)
	}

	if _, err := NewImporter(nil, nil, nil, nil).Import(context.Background(), "grants.xlsx", buf); err == nil {
		t.Error("Import without a store should fail")
	}
}

func TestImporter_MalformedWorkbook(t *testing.T) {
	store := newFakeStore()
	_, err := newTestImporter(store, nil).Import(context.Background(), "grants.xlsx", strings.NewReader("PK not really"))
	if !errors.Is(err, ErrMalformedWorkbook) {
		t.Fatalf("error = %v, want ErrMalformedWorkbook", err)
	}
	if len(store.records) != 0 {
		t.Error("malformed workbook was recorded")
	}
}

func TestImportResult_Summary(t *testing.T) {
	tests := []struct {
		name string
		res  ImportResult
		want string
	}{
		{"nothing", ImportResult{}, "No grants found in workbook"},
		{"single", ImportResult{ProcessedGrants: 1, ProcessedItems: 1}, "Processed: 1 grant, 1 grant item"},
		{
			"everything",
			ImportResult{
				ProcessedGrants: 2,
				ProcessedItems:  8,
				Errors:          []ImportError{{Sheet: "x"}},
				Warnings:        []ImportError{{Sheet: "y"}, {Sheet: "z"}},
				SkippedGrants:   []string{"G-3"},
			},
			"Processed: 2 grants, 8 grant items, Errors: 1, Warnings: 2, Skipped: 1",
		},
		{"errors only", ImportResult{Errors: []ImportError{{Sheet: "x"}}}, "Errors: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImportResult_RecordCarriesClient(t *testing.T) {
	ctx := WithClient(context.Background(), ClientInfo{IPAddress: "10.0.0.7", UserAgent: "curl/8"})
	res := &ImportResult{FileName: "grants.xlsx", ProcessedGrants: 1}

	rec := res.Record(ctx)
	if rec.IPAddress != "10.0.0.7" || rec.UserAgent != "curl/8" {
		t.Errorf("record client = %q %q", rec.IPAddress, rec.UserAgent)
	}
	if rec.Message != "Processed: 1 grant" {
		t.Errorf("record message = %q", rec.Message)
	}
}

func lookup(s *fakeStore, code string) (Grant, []GrantItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[code]
	return g, s.items[g.ID], ok
}

func TestImportResult_MergeNonTerminalOutcome(t *testing.T) {
	var res ImportResult
	res.merge(SheetOutcome{Sheet: "Grant A", State: StatePersisting, Code: "G-1", Items: 3})

	if res.ProcessedGrants != 0 || res.ProcessedItems != 0 {
		t.Errorf("processed %d grants, %d items; want none", res.ProcessedGrants, res.ProcessedItems)
	}
	if len(res.Sheets) != 1 || res.Sheets[0].State != StateFailed {
		t.Fatalf("sheets = %+v, want one failed outcome", res.Sheets)
	}
	want := "Sheet 'Grant A': processing stopped while persisting"
	if got := res.ErrorStrings(); len(got) != 1 || got[0] != want {
		t.Errorf("errors = %q, want [%q]", got, want)
	}
}

func TestSheetState_Terminal(t *testing.T) {
	tests := []struct {
		state SheetState
		want  bool
	}{
		{StateParsingHeader, false},
		{StateValidatingItems, false},
		{StatePersisting, false},
		{StateCommitted, true},
		{StateSkipped, true},
		{StateFailed, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
