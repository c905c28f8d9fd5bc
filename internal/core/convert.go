package core

// convert.go interprets tagged cells as the typed values validators need.
//
// These functions handle the messy reality of user-typed spreadsheet data:
//   - Multiple date formats (US, EU, ISO, etc.) as text, or date serials
//   - Currency symbols, spaces and thousand separators in amounts
//   - Effort written as 0.75, 75, 75% or 3/4
//   - Excel formula prefixes (="value")

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a plain decimal after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// MaxAmount is the largest salary or benefit value accepted.
var MaxAmount = decimal.RequireFromString("99999999.99")

var (
	errNotNumeric = errors.New("must be a number")
	errNegative   = errors.New("must not be negative")

	errEffortRange = errors.New("must be between 0% and 100%")
)

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "2 January 2006", "02-Jan-2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"20060102",
	}
)

// CleanCell removes common spreadsheet artifacts from a text value:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// CellText returns the cleaned textual form of any cell.
func CellText(c Cell) string {
	if c.Kind == CellString {
		return CleanCell(c.Text)
	}
	return c.String()
}

// parseDecimalText converts user-typed numeric text into a decimal.
// Handles currency symbols, thousands separators, inner spaces and
// accounting format (parentheses for negative).
func parseDecimalText(s string) (decimal.Decimal, error) {
	s = CleanCell(s)

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer(
		"$", "",
		"€", "", // Euro
		"£", "", // Pound
		"฿", "", // Baht
		",", "",
		" ", "",
		"\u00a0", "",
	).Replace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, errNotNumeric
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errNotNumeric
	}
	return d, nil
}

// ParseAmount interprets a salary or benefit cell. Blank cells yield an
// invalid NullDecimal and no error.
func ParseAmount(c Cell) (decimal.NullDecimal, error) {
	var d decimal.Decimal
	switch c.Kind {
	case CellBlank:
		return decimal.NullDecimal{}, nil
	case CellNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.NullDecimal{}, errNotNumeric
		}
		d = decimal.NewFromFloat(c.Number)
	case CellString:
		var err error
		if d, err = parseDecimalText(c.Text); err != nil {
			return decimal.NullDecimal{}, err
		}
	default:
		return decimal.NullDecimal{}, errNotNumeric
	}

	if d.IsNegative() {
		return decimal.NullDecimal{}, errNegative
	}
	if d.GreaterThan(MaxAmount) {
		return decimal.NullDecimal{}, fmt.Errorf("must not exceed %s", MaxAmount.StringFixed(2))
	}
	return decimal.NewNullDecimal(d.Round(2)), nil
}

var hundred = decimal.NewFromInt(100)

// ParseEffort normalizes a level-of-effort cell to a fraction in [0,1].
//
// A "%" suffix always means percent. A bare magnitude greater than 1 is read
// as a percentage; a bare magnitude of at most 1 is already a fraction, so
// "1" is 100% and "0.5" is 50%. "a/b" is read as a fraction. Percent-formatted
// number cells already hold the fraction. The range is checked before
// rounding.
func ParseEffort(c Cell) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch c.Kind {
	case CellBlank:
		return decimal.Zero, errors.New("is required")
	case CellNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.Zero, errNotNumeric
		}
		d = decimal.NewFromFloat(c.Number)
		if !c.Percent && d.GreaterThan(decimal.NewFromInt(1)) {
			d = d.Div(hundred)
		}
	case CellString:
		var err error
		if d, err = parseEffortText(c.Text); err != nil {
			return decimal.Zero, err
		}
	default:
		return decimal.Zero, errNotNumeric
	}

	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, errEffortRange
	}
	return d.Round(4), nil
}

func parseEffortText(s string) (decimal.Decimal, error) {
	s = CleanCell(s)

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := parseDecimalText(num)
		if err != nil {
			return decimal.Zero, errNotNumeric
		}
		dn, err := parseDecimalText(den)
		if err != nil || dn.IsZero() {
			return decimal.Zero, errNotNumeric
		}
		return n.Div(dn), nil
	}

	if p, ok := strings.CutSuffix(s, "%"); ok {
		d, err := parseDecimalText(p)
		if err != nil {
			return decimal.Zero, errNotNumeric
		}
		return d.Div(hundred), nil
	}

	d, err := parseDecimalText(s)
	if err != nil {
		return decimal.Zero, errNotNumeric
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(hundred)
	}
	return d, nil
}

// ErrIntOutOfRange is returned by ParseInt for whole numbers beyond int32.
var ErrIntOutOfRange = errors.New("is out of range")

var maxInt = decimal.NewFromInt(math.MaxInt32)

// ParseInt interprets a cell as a whole number.
func ParseInt(c Cell) (int, error) {
	var d decimal.Decimal
	switch c.Kind {
	case CellNumber:
		d = decimal.NewFromFloat(c.Number)
	case CellString:
		var err error
		if d, err = parseDecimalText(c.Text); err != nil {
			return 0, errors.New("must be a whole number")
		}
	default:
		return 0, errors.New("must be a whole number")
	}
	if !d.IsInteger() {
		return 0, errors.New("must be a whole number")
	}
	if d.Abs().GreaterThan(maxInt) {
		return 0, ErrIntOutOfRange
	}
	return int(d.IntPart()), nil
}

// ParseDate interprets a date cell, a date serial, or date text.
func ParseDate(c Cell) (time.Time, error) {
	switch c.Kind {
	case CellDate:
		return truncateDay(c.Time), nil
	case CellNumber:
		t, err := excelEpochToTime(c.Number)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date serial %s", c.String())
		}
		return truncateDay(t), nil
	case CellString:
		if t, ok := parseDateText(CleanCell(c.Text)); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date '%s' (use YYYY-MM-DD)", CellText(c))
}

func parseDateText(s string) (time.Time, bool) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
