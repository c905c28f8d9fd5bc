package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fixed sheet layout. Header values live in column B, item tables start in column A.
const (
	RowName        = 1
	RowCode        = 2
	RowSubsidiary  = 3
	RowEndDate     = 4
	RowDescription = 5
	RowItemHeaders = 7
	RowItemRules   = 8 // instructions row, never data
	FirstItemRow   = 9

	HeaderValueCol = 2
)

// Item table columns (1-based).
const (
	ColPosition = iota + 1
	ColBudgetLineCode
	ColSalary
	ColBenefit
	ColLevelOfEffort
	ColPositionNumber
)

// DefaultSubsidiaries is the set of organizations a grant may belong to.
var DefaultSubsidiaries = []string{"SMRU", "BHF", "MORU", "OUCRU"}

// GrantHeader is the validated identity block of one sheet.
type GrantHeader struct {
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Subsidiary  string     `json:"subsidiary"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Grant is a persisted grant header.
type Grant struct {
	ID uuid.UUID `json:"id"`
	GrantHeader
	ImportID  uuid.UUID `json:"import_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GrantItem is one budget line (funded position) of a grant.
type GrantItem struct {
	ID             uuid.UUID           `json:"id"`
	GrantID        uuid.UUID           `json:"grant_id"`
	Position       string              `json:"position"`
	BudgetLineCode string              `json:"budget_line_code,omitempty"`
	Salary         decimal.NullDecimal `json:"salary"`
	Benefit        decimal.NullDecimal `json:"benefit"`
	LevelOfEffort  decimal.Decimal     `json:"level_of_effort"`
	PositionNumber int                 `json:"position_number"`
	SourceRow      int                 `json:"source_row"`
}

// ImportError is one fully formed, user-facing problem found during an import.
type ImportError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row,omitempty"`
	Cell    string `json:"cell,omitempty"`
	Message string `json:"message"`
}

// String renders the error with its sheet/row/cell context.
func (e ImportError) String() string {
	switch {
	case e.Row > 0 && e.Cell != "":
		return fmt.Sprintf("Sheet '%s', row %d (cell %s): %s", e.Sheet, e.Row, e.Cell, e.Message)
	case e.Row > 0:
		return fmt.Sprintf("Sheet '%s', row %d: %s", e.Sheet, e.Row, e.Message)
	case e.Cell != "":
		return fmt.Sprintf("Sheet '%s', cell %s: %s", e.Sheet, e.Cell, e.Message)
	default:
		return fmt.Sprintf("Sheet '%s': %s", e.Sheet, e.Message)
	}
}

// SheetState is a step of the per-sheet import state machine.
type SheetState string

const (
	StateParsingHeader     SheetState = "parsing_header"
	StateValidatingHeader  SheetState = "validating_header"
	StateCheckingDuplicate SheetState = "checking_duplicate"
	StateValidatingItems   SheetState = "validating_items"
	StatePersisting        SheetState = "persisting"
	StateCommitted         SheetState = "committed"
	StateSkipped           SheetState = "skipped"
	StateFailed            SheetState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s SheetState) Terminal() bool {
	return s == StateCommitted || s == StateSkipped || s == StateFailed
}

// SheetOutcome is the value returned by processing a single sheet.
// Outcomes are merged by the caller into an ImportResult.
type SheetOutcome struct {
	Sheet    string        `json:"sheet"`
	State    SheetState    `json:"state"`
	Code     string        `json:"code,omitempty"`
	Items    int           `json:"items"`
	Errors   []ImportError `json:"errors,omitempty"`
	Warnings []ImportError `json:"warnings,omitempty"`
}

// ImportResult contains the final result of an import run.
type ImportResult struct {
	ImportID        uuid.UUID      `json:"import_id"`
	FileName        string         `json:"file_name"`
	DryRun          bool           `json:"dry_run"`
	ProcessedGrants int            `json:"processed_grants"`
	ProcessedItems  int            `json:"processed_items"`
	SkippedGrants   []string       `json:"skipped_grants,omitempty"`
	Errors          []ImportError  `json:"errors,omitempty"`
	Warnings        []ImportError  `json:"warnings,omitempty"`
	Sheets          []SheetOutcome `json:"sheets"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}

// ImportRecord is the persisted history entry for a completed import run.
type ImportRecord struct {
	ID              uuid.UUID `json:"id"`
	FileName        string    `json:"file_name"`
	ProcessedGrants int       `json:"processed_grants"`
	ProcessedItems  int       `json:"processed_items"`
	SkippedGrants   []string  `json:"skipped_grants"`
	Errors          []string  `json:"errors"`
	Warnings        []string  `json:"warnings"`
	Message         string    `json:"message"`
	IPAddress       string    `json:"ip_address,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Store is the persistence collaborator used by the transactional writer.
// Implementations must enforce uniqueness of grant codes.
type Store interface {
	GrantCodeExists(ctx context.Context, code string) (bool, error)
	// WithTx runs fn inside one transaction. A non-nil error from fn rolls
	// back everything fn wrote.
	WithTx(ctx context.Context, fn func(tx GrantTx) error) error
}

// GrantTx is the write surface available inside a Store transaction.
type GrantTx interface {
	GrantCodeExists(ctx context.Context, code string) (bool, error)
	InsertGrant(ctx context.Context, g *Grant) error
	InsertGrantItems(ctx context.Context, items []GrantItem) (int64, error)
}

// HistoryStore persists import run summaries.
type HistoryStore interface {
	RecordImport(ctx context.Context, rec ImportRecord) error
	ListImports(ctx context.Context, limit int) ([]ImportRecord, error)
}

// Repository is everything the Service needs from the storage layer.
type Repository interface {
	Store
	HistoryStore
	NotificationStore
}
