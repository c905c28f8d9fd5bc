package core

import "time"

// grantSheet builds a sheet with a valid header block and the given item rows.
func grantSheet(name, code string, items ...[]Cell) Sheet {
	rows := [][]Cell{
		{StringCell("Grant name"), StringCell(name)},
		{StringCell("Grant code"), StringCell(code)},
		{StringCell("Subsidiary"), StringCell("SMRU")},
		{StringCell("End date"), DateCell(time.Now().AddDate(1, 0, 0))},
		{StringCell("Description"), StringCell("Imported in tests")},
		{},
		{
			StringCell("Position"), StringCell("Budget line code"), StringCell("Salary"),
			StringCell("Benefit"), StringCell("Level of effort"), StringCell("Position number"),
		},
		{StringCell("required"), StringCell("optional"), StringCell("number"), StringCell("number"), StringCell("0-100%"), StringCell("1-1000")},
	}
	rows = append(rows, items...)
	return NewSheet(name, rows)
}

// itemRow builds a valid item row.
func itemRow(position string, salary float64, effort string) []Cell {
	return []Cell{
		StringCell(position),
		StringCell("BL-01"),
		NumberCell(salary),
		NumberCell(salary / 10),
		StringCell(effort),
		NumberCell(1),
	}
}

// withHeader returns a copy of sheet with one header value replaced.
func withHeader(sheet Sheet, row int, value Cell) Sheet {
	rows := make([][]Cell, len(sheet.rows))
	for i, r := range sheet.rows {
		rows[i] = append([]Cell(nil), r...)
	}
	rows[row-1][HeaderValueCol-1] = value
	return NewSheet(sheet.Name, rows)
}
