// Package core provides the business logic for grant workbook imports.
//
// This package has no transport dependencies and can be used by the web
// server, the CLI, or tests without modification.
//
// # Workbook layout
//
// Every sheet describes one grant. Column B of rows 1-5 holds the header
// (name, code, subsidiary, end date, description). Row 7 labels the item
// columns, row 8 carries instructions and is never read as data, and item rows
// start at row 9 and run until the first fully blank row.
//
// # Import pipeline
//
// [ReadWorkbook] turns the upload into tagged [Cell] values. For each sheet,
// in order, the [Importer] runs:
//
//  1. [SheetValidator.Validate], collecting every header problem at once
//  2. a duplicate check on the grant code (a hit skips the sheet)
//  3. [ValidateItems], a pure pass over the item rows
//  4. [TransactionalWriter.Commit], only when steps 1-3 found no errors
//
// A failed or skipped sheet never stops the sheets after it, and a sheet is
// written completely or not at all. Only an unreadable workbook aborts the
// whole request, as a [MalformedWorkbookError].
//
// # Level of effort
//
// A "%" suffix means percent. A bare value above 1 is also read as a percent,
// and a bare value of at most 1 is a fraction, so "75", "75%" and "0.75" all
// mean 0.75 while "1" means 1.0. Results outside [0, 1] are rejected.
//
// # Error codes
//
// Request-level failures are mapped to user messages with support codes by
// [MapError]; see error_messages.go for the code ranges.
package core
