// Package store implements the import engine's persistence on PostgreSQL,
// plus an in-memory equivalent for tests and ephemeral servers.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/JonMunkholm/GrantImport/internal/config"
	"github.com/JonMunkholm/GrantImport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Postgres is a core.Repository backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ core.Repository = (*Postgres)(nil)

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens and pings a pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates any missing tables. It is safe to run on every start.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func grantCodeExists(ctx context.Context, q querier, code string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM grants WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant code %q: %w", code, err)
	}
	return exists, nil
}

// GrantCodeExists reports whether a grant with code is committed.
func (p *Postgres) GrantCodeExists(ctx context.Context, code string) (bool, error) {
	return grantCodeExists(ctx, p.pool, code)
}

// WithTx runs fn in a transaction that commits only if fn returns nil.
func (p *Postgres) WithTx(ctx context.Context, fn func(core.GrantTx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op once committed

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GrantCodeExists(ctx context.Context, code string) (bool, error) {
	return grantCodeExists(ctx, t.tx, code)
}

func (t *pgTx) InsertGrant(ctx context.Context, g *core.Grant) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO grants (id, code, name, subsidiary, end_date, description, import_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		toPgUUID(g.ID),
		g.Code,
		g.Name,
		g.Subsidiary,
		toPgDate(g.EndDate),
		toPgText(g.Description),
		toPgUUID(g.ImportID),
		g.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("grant code %q was created concurrently: %w", g.Code, err)
		}
		return err
	}
	return nil
}

var grantItemColumns = []string{
	"id", "grant_id", "position", "budget_line_code", "salary", "benefit",
	"level_of_effort", "position_number", "source_row",
}

// InsertGrantItems bulk loads items with COPY.
func (t *pgTx) InsertGrantItems(ctx context.Context, items []core.GrantItem) (int64, error) {
	return t.tx.CopyFrom(ctx,
		pgx.Identifier{"grant_items"},
		grantItemColumns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{
				toPgUUID(it.ID),
				toPgUUID(it.GrantID),
				it.Position,
				toPgText(it.BudgetLineCode),
				toPgNumeric(it.Salary),
				toPgNumeric(it.Benefit),
				toPgNumeric(nullDecimal(it.LevelOfEffort)),
				int32(it.PositionNumber),
				int32(it.SourceRow),
			}, nil
		}),
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// RecordImport stores one import run.
func (p *Postgres) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO imports (id, file_name, processed_grants, processed_items,
			skipped_grants, errors, warnings, message, ip_address, user_agent,
			started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		toPgUUID(rec.ID),
		rec.FileName,
		int32(rec.ProcessedGrants),
		int32(rec.ProcessedItems),
		jsonList(rec.SkippedGrants),
		jsonList(rec.Errors),
		jsonList(rec.Warnings),
		rec.Message,
		toPgText(rec.IPAddress),
		toPgText(rec.UserAgent),
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}

// ListImports returns the newest import runs first.
func (p *Postgres) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, file_name, processed_grants, processed_items, skipped_grants,
			errors, warnings, message, ip_address, user_agent, started_at, finished_at
		FROM imports
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var records []core.ImportRecord
	for rows.Next() {
		var (
			rec                     core.ImportRecord
			id                      pgtype.UUID
			grants, items           int32
			skipped, errs, warnings []byte
			ipAddress, userAgent    pgtype.Text
		)
		if err := rows.Scan(&id, &rec.FileName, &grants, &items, &skipped, &errs, &warnings,
			&rec.Message, &ipAddress, &userAgent, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		rec.ID = fromPgUUID(id)
		rec.ProcessedGrants = int(grants)
		rec.ProcessedItems = int(items)
		rec.IPAddress = fromPgText(ipAddress)
		rec.UserAgent = fromPgText(userAgent)
		if rec.SkippedGrants, err = parseJSONList(skipped); err != nil {
			return nil, fmt.Errorf("decode skipped grants: %w", err)
		}
		if rec.Errors, err = parseJSONList(errs); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
		if rec.Warnings, err = parseJSONList(warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveNotification stores a notification in the inbox.
func (p *Postgres) SaveNotification(ctx context.Context, n core.Notification) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO notifications (id, import_id, level, message, file_name,
			processed_grants, processed_items, skipped_grants, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		toPgUUID(n.ID),
		toPgUUID(n.ImportID),
		n.Level,
		n.Message,
		n.FileName,
		int32(n.ProcessedGrants),
		int32(n.ProcessedItems),
		jsonList(n.SkippedGrants),
		jsonList(n.Errors),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications first.
func (p *Postgres) ListNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, import_id, level, message, file_name, processed_grants,
			processed_items, skipped_grants, errors, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var (
			n             core.Notification
			id, importID  pgtype.UUID
			grants, items int32
			skipped, errs []byte
		)
		if err := rows.Scan(&id, &importID, &n.Level, &n.Message, &n.FileName,
			&grants, &items, &skipped, &errs, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = fromPgUUID(id)
		n.ImportID = fromPgUUID(importID)
		n.ProcessedGrants = int(grants)
		n.ProcessedItems = int(items)
		if n.SkippedGrants, err = parseJSONList(skipped); err != nil {
			return nil, fmt.Errorf("decode skipped grants: %w", err)
		}
		if n.Errors, err = parseJSONList(errs); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
