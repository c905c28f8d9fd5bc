package core

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// fakeStore is an in-package transactional Store with failure injection.
type fakeStore struct {
	mu     sync.Mutex
	grants map[string]Grant
	items  map[uuid.UUID][]GrantItem

	// failItemsFor makes InsertGrantItems fail for the named grant code.
	failItemsFor string
	// existsErr is returned by the pre-check outside transactions.
	existsErr error
	// raceCode is reported as free by the pre-check but taken inside the
	// transaction, as if another import committed it in between.
	raceCode string

	records       []ImportRecord
	notifications []Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		grants: make(map[string]Grant),
		items:  make(map[uuid.UUID][]GrantItem),
	}
}

func (s *fakeStore) GrantCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.grants[code]
	return ok, nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(GrantTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{s: s, grants: make(map[string]Grant)}
	if err := fn(tx); err != nil {
		return err
	}
	for code, g := range tx.grants {
		s.grants[code] = g
	}
	for _, it := range tx.items {
		s.items[it.GrantID] = append(s.items[it.GrantID], it)
	}
	return nil
}

func (s *fakeStore) counts() (grants, items int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.items {
		items += len(list)
	}
	return len(s.grants), items
}

func (s *fakeStore) RecordImport(ctx context.Context, rec ImportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) ListImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ImportRecord(nil), s.records...), nil
}

func (s *fakeStore) SaveNotification(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *fakeStore) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...), nil
}

type fakeTx struct {
	s      *fakeStore
	grants map[string]Grant
	items  []GrantItem
}

func (tx *fakeTx) GrantCodeExists(ctx context.Context, code string) (bool, error) {
	if code == tx.s.raceCode {
		return true, nil
	}
	if _, ok := tx.s.grants[code]; ok {
		return true, nil
	}
	_, ok := tx.grants[code]
	return ok, nil
}

func (tx *fakeTx) InsertGrant(ctx context.Context, g *Grant) error {
	tx.grants[g.Code] = *g
	return nil
}

func (tx *fakeTx) InsertGrantItems(ctx context.Context, items []GrantItem) (int64, error) {
	for _, it := range items {
		for code, g := range tx.grants {
			if g.ID == it.GrantID && code == tx.s.failItemsFor {
				return 0, errors.New(`new row for relation "grant_items" violates check constraint "grant_items_salary_check"`)
			}
		}
	}
	tx.items = append(tx.items, items...)
	return int64(len(items)), nil
}
