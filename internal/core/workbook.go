package core

// workbook.go turns an uploaded .xlsx container into ordered sheets of tagged cells.
//
// Cell kinds come from the stored cell type and number format rather than from
// the displayed text, so "45,000" typed as text and 45000 typed as a number are
// distinguishable to validators.

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet as a 2-D grid of cells.
type Sheet struct {
	Name string
	rows [][]Cell
}

// NewSheet builds a sheet from rows of cells. Row 1 is rows[0].
func NewSheet(name string, rows [][]Cell) Sheet {
	return Sheet{Name: name, rows: rows}
}

// Cell returns the value at a 1-based row and column. Out-of-range
// coordinates read as blank.
func (s Sheet) Cell(row, col int) Cell {
	if row < 1 || row > len(s.rows) {
		return Cell{}
	}
	r := s.rows[row-1]
	if col < 1 || col > len(r) {
		return Cell{}
	}
	return r[col-1]
}

// RowCount returns the number of rows up to the last non-empty one.
func (s Sheet) RowCount() int {
	return len(s.rows)
}

// RowBlank reports whether every cell of the 1-based row is blank.
func (s Sheet) RowBlank(row int) bool {
	if row < 1 || row > len(s.rows) {
		return true
	}
	for _, c := range s.rows[row-1] {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Workbook is an ordered sequence of sheets.
type Workbook struct {
	Sheets []Sheet
}

// CellName converts 1-based coordinates into a spreadsheet address like "B3".
func CellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row, col)
	}
	return name
}

// ReadWorkbook parses an .xlsx stream. Any structural failure is returned as
// a *MalformedWorkbookError and no sheets are produced.
func ReadWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &MalformedWorkbookError{Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("close workbook", "error", err)
		}
	}()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, &MalformedWorkbookError{Err: fmt.Errorf("no sheets found")}
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	wb := &Workbook{Sheets: make([]Sheet, 0, len(names))}
	for _, name := range names {
		sheet, err := readSheet(f, name, date1904)
		if err != nil {
			return nil, &MalformedWorkbookError{Err: fmt.Errorf("sheet %q: %w", name, err)}
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func readSheet(f *excelize.File, name string, date1904 bool) (Sheet, error) {
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Sheet{}, err
	}

	rows := make([][]Cell, len(raw))
	for r, values := range raw {
		cells := make([]Cell, len(values))
		for c, v := range values {
			cells[c] = readCell(f, name, CellName(c+1, r+1), v, date1904)
		}
		rows[r] = cells
	}
	return NewSheet(name, rows), nil
}

// readCell classifies one raw value using the stored cell type and style.
func readCell(f *excelize.File, sheet, addr, raw string, date1904 bool) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}

	ct, err := f.GetCellType(sheet, addr)
	if err != nil {
		return StringCell(raw)
	}

	switch ct {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return StringCell(raw)
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	}

	// Unset, Number, Date and Formula cells carry a numeric raw value when
	// they are numeric at all.
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return StringCell(raw)
	}
	format := numberFormat(f, sheet, addr)
	if ct == excelize.CellTypeDate || format == formatDate {
		if t, err := excelize.ExcelDateToTime(n, date1904); err == nil {
			return DateCell(t)
		}
	}
	if format == formatPercent {
		return PercentCell(n)
	}
	return NumberCell(n)
}

type displayFormat int

const (
	formatGeneral displayFormat = iota
	formatDate
	formatPercent
)

// builtInDateFormats are the spreadsheet number format ids that render dates.
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	45: true, 46: true, 47: true,
}

// builtInPercentFormats are the ids for "0%" and "0.00%".
var builtInPercentFormats = map[int]bool{9: true, 10: true}

// numberFormat reports how the cell's style displays a numeric value.
func numberFormat(f *excelize.File, sheet, addr string) displayFormat {
	styleID, err := f.GetCellStyle(sheet, addr)
	if err != nil || styleID == 0 {
		return formatGeneral
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return formatGeneral
	}
	switch {
	case builtInDateFormats[style.NumFmt]:
		return formatDate
	case builtInPercentFormats[style.NumFmt]:
		return formatPercent
	case style.CustomNumFmt == nil:
		return formatGeneral
	case isDateLayout(*style.CustomNumFmt):
		return formatDate
	case isPercentLayout(*style.CustomNumFmt):
		return formatPercent
	}
	return formatGeneral
}

// isDateLayout reports whether a custom number format renders a date.
// Quoted literals and bracketed sections ([Red], [$-409]) are ignored.
func isDateLayout(format string) bool {
	s := formatTokens(format)
	return strings.Contains(s, "y") || strings.Contains(s, "d")
}

// isPercentLayout reports whether a custom number format scales by 100.
func isPercentLayout(format string) bool {
	return strings.Contains(formatTokens(format), "%")
}

// formatTokens lowercases a number format and drops quoted literals and
// bracketed sections.
func formatTokens(format string) string {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == '[' && !inQuote:
			inBracket = true
		case r == ']' && !inQuote:
			inBracket = false
		case !inQuote && !inBracket:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// excelEpochToTime is used by validators for numeric cells holding a date serial.
func excelEpochToTime(serial float64) (time.Time, error) {
	return excelize.ExcelDateToTime(serial, false)
}
