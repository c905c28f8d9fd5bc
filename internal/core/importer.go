package core

// importer.go drives the per-sheet state machine across a workbook.
//
// Each sheet is processed by processSheet, which returns a SheetOutcome value.
// The run loop merges outcomes into the ImportResult; no sheet can see or
// change another sheet's counters.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/GrantImport/internal/logging"
	"github.com/google/uuid"
)

// existsFunc reports whether a grant code is already taken.
type existsFunc func(ctx context.Context, code string) (bool, error)

// Importer validates and commits grant workbooks.
type Importer struct {
	store    Store
	headers  *SheetValidator
	writer   *TransactionalWriter
	notifier Notifier
	history  HistoryStore
	now      func() time.Time
}

// NewImporter returns an importer. store may be nil for validation-only use;
// notifier and history are optional.
func NewImporter(store Store, headers *SheetValidator, notifier Notifier, history HistoryStore) *Importer {
	if headers == nil {
		headers = NewSheetValidator(nil, 0, 0)
	}
	im := &Importer{
		store:    store,
		headers:  headers,
		notifier: notifier,
		history:  history,
		now:      time.Now,
	}
	if store != nil {
		im.writer = NewTransactionalWriter(store)
	}
	return im
}

// Import reads the workbook and commits every valid sheet. Only an unreadable
// workbook returns an error; sheet problems are reported in the result.
func (im *Importer) Import(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	if im.store == nil {
		return nil, errors.New("import requires a store")
	}
	wb, err := ReadWorkbook(r)
	if err != nil {
		return nil, err
	}
	return im.ImportWorkbook(ctx, fileName, wb), nil
}

// Validate runs every check Import runs without writing anything. Sheets that
// would be committed are reported as committed.
func (im *Importer) Validate(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	wb, err := ReadWorkbook(r)
	if err != nil {
		return nil, err
	}
	return im.run(ctx, fileName, wb, true), nil
}

// ImportWorkbook commits an already parsed workbook.
func (im *Importer) ImportWorkbook(ctx context.Context, fileName string, wb *Workbook) *ImportResult {
	res := im.run(ctx, fileName, wb, false)
	im.record(ctx, res)
	im.notify(ctx, res)
	return res
}

func (im *Importer) run(ctx context.Context, fileName string, wb *Workbook, dryRun bool) *ImportResult {
	res := &ImportResult{
		ImportID:  uuid.New(),
		FileName:  fileName,
		DryRun:    dryRun,
		StartedAt: im.now().UTC(),
	}
	logger := logging.WithFields(ctx, "import_id", res.ImportID, "file", fileName, "dry_run", dryRun)

	// Codes committed earlier in this run. In a dry run nothing reaches the
	// store, so this is the only record of sheets that would have committed.
	seen := make(map[string]bool)
	exists := func(ctx context.Context, code string) (bool, error) {
		if seen[code] {
			return true, nil
		}
		if im.store == nil {
			return false, nil
		}
		return im.store.GrantCodeExists(ctx, code)
	}

	for _, sheet := range wb.Sheets {
		out := im.processSheet(ctx, sheet, res.ImportID, exists, !dryRun)
		if out.State == StateCommitted {
			seen[out.Code] = true
		}
		res.merge(out)

		logger.Info("sheet processed",
			"sheet", out.Sheet,
			"state", out.State,
			"code", out.Code,
			"items", out.Items,
			"errors", len(out.Errors),
		)
	}

	res.FinishedAt = im.now().UTC()
	logger.Info("import finished",
		"grants", res.ProcessedGrants,
		"items", res.ProcessedItems,
		"skipped", len(res.SkippedGrants),
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res
}

// processSheet walks one sheet to a terminal state.
func (im *Importer) processSheet(ctx context.Context, sheet Sheet, importID uuid.UUID, exists existsFunc, commit bool) SheetOutcome {
	out := SheetOutcome{Sheet: sheet.Name, State: StateParsingHeader}

	if sheet.RowCount() == 0 {
		out.State = StateSkipped
		out.Warnings = []ImportError{{Sheet: sheet.Name, Message: "sheet is empty and was ignored"}}
		return out
	}

	out.State = StateValidatingHeader
	header, warnings, err := im.headers.Validate(sheet)
	out.Warnings = warnings
	if err != nil {
		return out.fail(err)
	}
	out.Code = header.Code

	out.State = StateCheckingDuplicate
	dup, err := exists(ctx, header.Code)
	if err != nil {
		return out.fail(&PersistenceError{Sheet: sheet.Name, Code: header.Code, Err: err})
	}
	if dup {
		out.State = StateSkipped
		return out
	}

	out.State = StateValidatingItems
	items, itemErrs := ValidateItems(sheet)
	if len(itemErrs) > 0 {
		out.State = StateFailed
		for _, e := range itemErrs {
			out.Errors = append(out.Errors, e.ImportError())
		}
		return out
	}

	if !commit {
		out.State = StateCommitted
		out.Items = len(items)
		return out
	}

	out.State = StatePersisting
	if _, err := im.writer.Commit(ctx, sheet.Name, importID, header, items); err != nil {
		if errors.Is(err, ErrDuplicateGrantCode) {
			out.State = StateSkipped
			return out
		}
		return out.fail(err)
	}

	out.State = StateCommitted
	out.Items = len(items)
	return out
}

func (o SheetOutcome) fail(err error) SheetOutcome {
	o.State = StateFailed
	o.Errors = append(o.Errors, sheetErrors(o.Sheet, err)...)
	return o
}

// merge folds one sheet outcome into the run totals. An outcome that never
// reached a terminal state counts as failed.
func (r *ImportResult) merge(out SheetOutcome) {
	if !out.State.Terminal() {
		out = out.fail(fmt.Errorf("processing stopped while %s", strings.ReplaceAll(string(out.State), "_", " ")))
	}
	switch out.State {
	case StateCommitted:
		r.ProcessedGrants++
		r.ProcessedItems += out.Items
	case StateSkipped:
		if out.Code != "" {
			r.SkippedGrants = append(r.SkippedGrants, out.Code)
		}
	}
	r.Errors = append(r.Errors, out.Errors...)
	r.Warnings = append(r.Warnings, out.Warnings...)
	r.Sheets = append(r.Sheets, out)
}

// Summary describes the run, mentioning only non-zero counters, e.g.
// "Processed: 2 grants, 8 grant items, Warnings: 2, Skipped: 1".
func (r *ImportResult) Summary() string {
	var parts []string
	if r.ProcessedGrants > 0 {
		parts = append(parts, plural(r.ProcessedGrants, "grant", "grants"))
	}
	if r.ProcessedItems > 0 {
		parts = append(parts, plural(r.ProcessedItems, "grant item", "grant items"))
	}

	var msg string
	if len(parts) > 0 {
		msg = "Processed: " + strings.Join(parts, ", ")
	}

	var extras []string
	if n := len(r.Errors); n > 0 {
		extras = append(extras, fmt.Sprintf("Errors: %d", n))
	}
	if n := len(r.Warnings); n > 0 {
		extras = append(extras, fmt.Sprintf("Warnings: %d", n))
	}
	if n := len(r.SkippedGrants); n > 0 {
		extras = append(extras, fmt.Sprintf("Skipped: %d", n))
	}

	switch {
	case msg == "" && len(extras) == 0:
		return "No grants found in workbook"
	case msg == "":
		return strings.Join(extras, ", ")
	case len(extras) == 0:
		return msg
	default:
		return msg + ", " + strings.Join(extras, ", ")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// ErrorStrings renders every error with its sheet/row/cell context.
func (r *ImportResult) ErrorStrings() []string {
	return importErrorStrings(r.Errors)
}

// WarningStrings renders every warning with its sheet/row/cell context.
func (r *ImportResult) WarningStrings() []string {
	return importErrorStrings(r.Warnings)
}

func importErrorStrings(errs []ImportError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.String()
	}
	return out
}

// Record converts the result into its history entry.
func (r *ImportResult) Record(ctx context.Context) ImportRecord {
	client := ClientFromContext(ctx)
	return ImportRecord{
		ID:              r.ImportID,
		FileName:        r.FileName,
		ProcessedGrants: r.ProcessedGrants,
		ProcessedItems:  r.ProcessedItems,
		SkippedGrants:   r.SkippedGrants,
		Errors:          r.ErrorStrings(),
		Warnings:        r.WarningStrings(),
		Message:         r.Summary(),
		IPAddress:       client.IPAddress,
		UserAgent:       client.UserAgent,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
}

func (im *Importer) record(ctx context.Context, res *ImportResult) {
	if im.history == nil {
		return
	}
	if err := im.history.RecordImport(ctx, res.Record(ctx)); err != nil {
		logging.FromContext(ctx).Error("failed to record import history",
			"import_id", res.ImportID,
			"error", err,
		)
	}
}

// notify hands the summary to the notifier. Failures, including panics, are
// logged and swallowed.
func (im *Importer) notify(ctx context.Context, res *ImportResult) {
	if im.notifier == nil {
		return
	}
	logger := logging.FromContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("import notifier panicked", "import_id", res.ImportID, "panic", p)
		}
	}()
	if err := im.notifier.Notify(ctx, NewNotification(res)); err != nil {
		logger.Warn("import notification failed", "import_id", res.ImportID, "error", err)
	}
}
