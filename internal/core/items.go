package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Position number bounds. A blank cell means DefaultPositionNumber.
const (
	DefaultPositionNumber = 1
	MaxPositionNumber     = 1000
)

var positionRangeMessage = fmt.Sprintf("Position number must be between 1 and %d", MaxPositionNumber)

// ValidateItems is the first pass over a sheet's item table. It reads rows
// from FirstItemRow until the first fully blank row and has no side effects.
//
// A row becomes a GrantItem only when every field is valid; each offending
// field adds one error. Callers must discard the items when any error is
// returned.
func ValidateItems(sheet Sheet) ([]GrantItem, []*ItemValidationError) {
	var (
		items []GrantItem
		errs  []*ItemValidationError
	)
	for row := FirstItemRow; !sheet.RowBlank(row); row++ {
		item, rowErrs := validateItemRow(sheet, row)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		items = append(items, item)
	}
	return items, errs
}

func validateItemRow(sheet Sheet, row int) (GrantItem, []*ItemValidationError) {
	var errs []*ItemValidationError
	fail := func(field string, col int, msg string) {
		errs = append(errs, &ItemValidationError{
			Sheet:   sheet.Name,
			Row:     row,
			Cell:    CellName(col, row),
			Field:   field,
			Message: msg,
		})
	}

	item := GrantItem{SourceRow: row, PositionNumber: DefaultPositionNumber}

	item.Position = CellText(sheet.Cell(row, ColPosition))
	if msg := checkRule("Position", item.Position, "required,min=2,max=255"); msg != "" {
		fail("position", ColPosition, msg)
	}

	item.BudgetLineCode = CellText(sheet.Cell(row, ColBudgetLineCode))
	if msg := checkRule("Budget line code", item.BudgetLineCode, "omitempty,max=50"); msg != "" {
		fail("budget_line_code", ColBudgetLineCode, msg)
	}

	item.Salary = amountField(sheet, row, ColSalary, "salary", "Salary", fail)
	item.Benefit = amountField(sheet, row, ColBenefit, "benefit", "Benefit", fail)

	c := sheet.Cell(row, ColLevelOfEffort)
	if effort, err := ParseEffort(c); err != nil {
		fail("level_of_effort", ColLevelOfEffort, valueMessage("Level of effort", c, err))
	} else {
		item.LevelOfEffort = effort
	}

	if c := sheet.Cell(row, ColPositionNumber); !c.IsBlank() {
		n, err := ParseInt(c)
		if errors.Is(err, ErrIntOutOfRange) {
			fail("position_number", ColPositionNumber, positionRangeMessage)
		} else if err != nil {
			fail("position_number", ColPositionNumber, valueMessage("Position number", c, err))
		} else if msg := checkRule("Position number", n, fmt.Sprintf("gte=1,lte=%d", MaxPositionNumber)); msg != "" {
			fail("position_number", ColPositionNumber, msg)
		} else {
			item.PositionNumber = n
		}
	}

	return item, errs
}

func amountField(sheet Sheet, row, col int, field, label string, fail func(string, int, string)) decimal.NullDecimal {
	c := sheet.Cell(row, col)
	d, err := ParseAmount(c)
	if err != nil {
		fail(field, col, valueMessage(label, c, err))
		return decimal.NullDecimal{}
	}
	return d
}

// valueMessage formats a conversion failure, quoting the offending input.
func valueMessage(label string, c Cell, err error) string {
	if c.IsBlank() {
		return fmt.Sprintf("%s %v", label, err)
	}
	return fmt.Sprintf("%s %v (got '%s')", label, err, CellText(c))
}
