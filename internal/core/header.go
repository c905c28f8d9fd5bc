package core

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultEndDateHorizonYears is how far ahead an end date may lie before it
// is flagged with a warning.
const DefaultEndDateHorizonYears = 10

var grantCodeRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// validate is shared by header and item rules. It is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("grantcode", func(fl validator.FieldLevel) bool {
		return grantCodeRegex.MatchString(fl.Field().String())
	})
	return v
}

// checkRule runs one validator tag set against a value and returns a
// user-facing message, or "" when the value passes.
func checkRule(label string, value any, tag string) string {
	err := validate.Var(value, tag)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Sprintf("%s is invalid", label)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be between 1 and %d", label, MaxPositionNumber)
	case "grantcode":
		return fmt.Sprintf("%s may only contain letters, digits, '.', '-' and '_'", label)
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// SheetValidator checks the fixed-position header block of a sheet.
type SheetValidator struct {
	Subsidiaries []string
	MaxDistance  int
	HorizonYears int

	// Now is the reference time for end-date warnings.
	Now func() time.Time
}

// NewSheetValidator returns a validator with defaults for any zero argument.
func NewSheetValidator(subsidiaries []string, maxDistance, horizonYears int) *SheetValidator {
	if len(subsidiaries) == 0 {
		subsidiaries = DefaultSubsidiaries
	}
	if maxDistance <= 0 {
		maxDistance = DefaultMaxFuzzyDistance
	}
	if horizonYears <= 0 {
		horizonYears = DefaultEndDateHorizonYears
	}
	return &SheetValidator{
		Subsidiaries: subsidiaries,
		MaxDistance:  maxDistance,
		HorizonYears: horizonYears,
		Now:          time.Now,
	}
}

// Validate reads and checks rows 1-5 of the sheet. Every field problem is
// collected into one *HeaderValidationError. End dates outside the expected
// window are returned as warnings and do not fail the sheet.
func (v *SheetValidator) Validate(sheet Sheet) (GrantHeader, []ImportError, error) {
	var (
		header   GrantHeader
		fields   []FieldError
		warnings []ImportError
	)
	addr := func(row int) string { return CellName(HeaderValueCol, row) }
	fail := func(field string, row int, msg string, err error) {
		fields = append(fields, FieldError{Field: field, Cell: addr(row), Message: msg, Err: err})
	}

	header.Name = CellText(sheet.Cell(RowName, HeaderValueCol))
	if msg := checkRule("Grant name", header.Name, "required,min=3,max=255"); msg != "" {
		fail("name", RowName, msg, nil)
	}

	header.Code = CellText(sheet.Cell(RowCode, HeaderValueCol))
	if msg := checkRule("Grant code", header.Code, "required,max=50,grantcode"); msg != "" {
		fail("code", RowCode, msg, nil)
	}

	rawSub := CellText(sheet.Cell(RowSubsidiary, HeaderValueCol))
	if rawSub == "" {
		fail("subsidiary", RowSubsidiary, "Subsidiary is required", nil)
	} else if sub, err := MatchEnum("subsidiary", rawSub, v.Subsidiaries, v.MaxDistance); err != nil {
		fail("subsidiary", RowSubsidiary, err.Error(), err)
	} else {
		header.Subsidiary = sub
	}

	if c := sheet.Cell(RowEndDate, HeaderValueCol); !c.IsBlank() {
		end, err := ParseDate(c)
		if err != nil {
			fail("end_date", RowEndDate, "End date: "+err.Error(), err)
		} else {
			header.EndDate = &end
			if msg := v.endDateWarning(end); msg != "" {
				warnings = append(warnings, ImportError{Sheet: sheet.Name, Cell: addr(RowEndDate), Message: msg})
			}
		}
	}

	header.Description = CellText(sheet.Cell(RowDescription, HeaderValueCol))
	if msg := checkRule("Description", header.Description, "omitempty,max=1000"); msg != "" {
		fail("description", RowDescription, msg, nil)
	}

	if len(fields) > 0 {
		return GrantHeader{}, warnings, &HeaderValidationError{Sheet: sheet.Name, Fields: fields}
	}
	return header, warnings, nil
}

func (v *SheetValidator) endDateWarning(end time.Time) string {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	today := truncateDay(now())
	horizon := v.HorizonYears
	if horizon <= 0 {
		horizon = DefaultEndDateHorizonYears
	}

	switch {
	case end.Before(today):
		return fmt.Sprintf("End date %s is in the past", end.Format("2006-01-02"))
	case end.After(today.AddDate(horizon, 0, 0)):
		return fmt.Sprintf("End date %s is more than %d years in the future", end.Format("2006-01-02"), horizon)
	}
	return ""
}
