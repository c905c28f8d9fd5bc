package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/JonMunkholm/GrantImport/internal/core"
	"github.com/google/uuid"
)

// MemoryURL selects the in-memory repository in place of a database URL.
const MemoryURL = "memory://"

// ErrUniqueViolation mirrors the database's unique constraint on grant codes.
var ErrUniqueViolation = errors.New(`duplicate key value violates unique constraint "grants_code_key"`)

// Memory is a core.Repository held in process memory.
//
// Transactions are serialized: WithTx holds the lock until fn returns, and
// writes are staged so a failed fn leaves nothing behind.
type Memory struct {
	mu            sync.Mutex
	grants        map[string]core.Grant
	items         map[uuid.UUID][]core.GrantItem
	imports       []core.ImportRecord
	notifications []core.Notification
}

var _ core.Repository = (*Memory)(nil)

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{
		grants: make(map[string]core.Grant),
		items:  make(map[uuid.UUID][]core.GrantItem),
	}
}

func (m *Memory) GrantCodeExists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grants[code]
	return ok, nil
}

func (m *Memory) WithTx(ctx context.Context, fn func(core.GrantTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		m:      m,
		grants: make(map[string]core.Grant),
		items:  make(map[uuid.UUID][]core.GrantItem),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for code, g := range tx.grants {
		m.grants[code] = g
	}
	for id, items := range tx.items {
		m.items[id] = append(m.items[id], items...)
	}
	return nil
}

// Grant returns a committed grant and its items.
func (m *Memory) Grant(code string) (core.Grant, []core.GrantItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[code]
	if !ok {
		return core.Grant{}, nil, false
	}
	return g, slices.Clone(m.items[g.ID]), true
}

// Counts returns the number of committed grants and items.
func (m *Memory) Counts() (grants, items int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.items {
		items += len(list)
	}
	return len(m.grants), items
}

func (m *Memory) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports = append(m.imports, rec)
	return nil
}

func (m *Memory) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.imports, limit), nil
}

func (m *Memory) SaveNotification(ctx context.Context, n core.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *Memory) ListNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.notifications, limit), nil
}

// newestFirst returns up to limit entries in reverse insertion order.
// A non-positive limit returns everything.
func newestFirst[T any](list []T, limit int) []T {
	out := slices.Clone(list)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type memTx struct {
	m      *Memory
	grants map[string]core.Grant
	items  map[uuid.UUID][]core.GrantItem
}

func (t *memTx) GrantCodeExists(ctx context.Context, code string) (bool, error) {
	if _, ok := t.m.grants[code]; ok {
		return true, nil
	}
	_, ok := t.grants[code]
	return ok, nil
}

func (t *memTx) InsertGrant(ctx context.Context, g *core.Grant) error {
	if exists, _ := t.GrantCodeExists(ctx, g.Code); exists {
		return ErrUniqueViolation
	}
	t.grants[g.Code] = *g
	return nil
}

func (t *memTx) InsertGrantItems(ctx context.Context, items []core.GrantItem) (int64, error) {
	for _, it := range items {
		if !t.hasGrant(it.GrantID) {
			return 0, fmt.Errorf("grant item references unknown grant %s", it.GrantID)
		}
	}
	for _, it := range items {
		t.items[it.GrantID] = append(t.items[it.GrantID], it)
	}
	return int64(len(items)), nil
}

func (t *memTx) hasGrant(id uuid.UUID) bool {
	for _, g := range t.grants {
		if g.ID == id {
			return true
		}
	}
	for _, g := range t.m.grants {
		if g.ID == id {
			return true
		}
	}
	return false
}
