package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind tags the variant held by a Cell.
type CellKind int

const (
	CellBlank CellKind = iota
	CellString
	CellNumber
	CellDate
	CellBool
)

func (k CellKind) String() string {
	switch k {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	case CellBool:
		return "bool"
	default:
		return "blank"
	}
}

// Cell is an untyped spreadsheet value. Only the field matching Kind is meaningful.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
	Bool   bool

	// Percent marks a number cell displayed with a percent format; Number
	// holds the stored fraction (1.5 for "150%").
	Percent bool
}

// StringCell returns a string cell, or a blank cell for whitespace-only input.
func StringCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellString, Text: s}
}

func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }

func PercentCell(f float64) Cell { return Cell{Kind: CellNumber, Number: f, Percent: true} }

func DateCell(t time.Time) Cell { return Cell{Kind: CellDate, Time: t} }

func BoolCell(b bool) Cell { return Cell{Kind: CellBool, Bool: b} }

// IsBlank reports whether the cell holds no value.
func (c Cell) IsBlank() bool {
	return c.Kind == CellBlank
}

// String renders the cell the way a user would type it.
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return strings.TrimSpace(c.Text)
	case CellNumber:
		if c.Percent {
			return decimal.NewFromFloat(c.Number).Shift(2).String() + "%"
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return c.Time.Format("2006-01-02")
	case CellBool:
		if c.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}
