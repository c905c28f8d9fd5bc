package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionalWriter is the second pass: it persists one validated header
// and all of its items in a single transaction, or nothing.
type TransactionalWriter struct {
	store Store
	now   func() time.Time
}

// NewTransactionalWriter returns a writer backed by store.
func NewTransactionalWriter(store Store) *TransactionalWriter {
	return &TransactionalWriter{store: store, now: time.Now}
}

// Commit writes the grant and its items atomically.
//
// If the code already exists inside the transaction it returns
// ErrDuplicateGrantCode and writes nothing. Any other failure is returned as a
// *PersistenceError after the transaction has been rolled back.
func (w *TransactionalWriter) Commit(ctx context.Context, sheet string, importID uuid.UUID, header GrantHeader, items []GrantItem) (*Grant, error) {
	grant := &Grant{
		ID:          uuid.New(),
		GrantHeader: header,
		ImportID:    importID,
		CreatedAt:   w.now().UTC(),
	}

	rows := make([]GrantItem, len(items))
	for i, item := range items {
		item.ID = uuid.New()
		item.GrantID = grant.ID
		rows[i] = item
	}

	err := w.store.WithTx(ctx, func(tx GrantTx) error {
		exists, err := tx.GrantCodeExists(ctx, header.Code)
		if err != nil {
			return fmt.Errorf("check grant code: %w", err)
		}
		if exists {
			return ErrDuplicateGrantCode
		}

		if err := tx.InsertGrant(ctx, grant); err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}
		n, err := tx.InsertGrantItems(ctx, rows)
		if err != nil {
			return fmt.Errorf("insert grant items: %w", err)
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("insert grant items: wrote %d of %d rows", n, len(rows))
		}
		return nil
	})

	switch {
	case err == nil:
		return grant, nil
	case errors.Is(err, ErrDuplicateGrantCode):
		return nil, ErrDuplicateGrantCode
	default:
		return nil, &PersistenceError{Sheet: sheet, Code: header.Code, Err: err}
	}
}
