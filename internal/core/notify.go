package core

// notify.go delivers the end-of-import summary to users.
//
// Delivery is fire-and-forget from the importer's point of view: a failing
// Notifier is logged and never changes the outcome of an import.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is the user-facing message produced by one import run.
type Notification struct {
	ID              uuid.UUID `json:"id"`
	ImportID        uuid.UUID `json:"import_id"`
	Level           string    `json:"level"`
	Message         string    `json:"message"`
	FileName        string    `json:"file_name"`
	ProcessedGrants int       `json:"processed_grants"`
	ProcessedItems  int       `json:"processed_items"`
	SkippedGrants   []string  `json:"skipped_grants,omitempty"`
	Errors          []string  `json:"errors,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewNotification builds the notification for a finished import.
func NewNotification(res *ImportResult) Notification {
	level := LevelSuccess
	switch {
	case len(res.Errors) > 0:
		level = LevelError
	case len(res.Warnings) > 0 || len(res.SkippedGrants) > 0:
		level = LevelWarning
	}
	return Notification{
		ID:              uuid.New(),
		ImportID:        res.ImportID,
		Level:           level,
		Message:         res.Summary(),
		FileName:        res.FileName,
		ProcessedGrants: res.ProcessedGrants,
		ProcessedItems:  res.ProcessedItems,
		SkippedGrants:   res.SkippedGrants,
		Errors:          res.ErrorStrings(),
		CreatedAt:       res.FinishedAt,
	}
}

// Notifier delivers a notification through some channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// MultiNotifier delivers to every notifier, even after one fails.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "import notification",
		"import_id", n.ImportID,
		"file", n.FileName,
		"message", n.Message,
	)
	return nil
}

// NotificationStore persists notifications for the user inbox.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)
}

// InboxNotifier persists notifications so they can be read later.
type InboxNotifier struct {
	Store NotificationStore
}

func (i InboxNotifier) Notify(ctx context.Context, n Notification) error {
	return i.Store.SaveNotification(ctx, n)
}

// Hub broadcasts notifications to live subscribers.
// Slow subscribers miss messages rather than blocking delivery.
type Hub struct {
	mu        sync.Mutex
	listeners map[chan Notification]struct{}
	closed    bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[chan Notification]struct{})}
}

// Subscribe returns a channel of future notifications and a function that
// unsubscribes and closes it. The channel is also closed by Close.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 10)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.listeners[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.listeners[ch]; ok {
				delete(h.listeners, ch)
				close(ch)
			}
		})
	}
}

// Notify sends n to every subscriber without blocking.
func (h *Hub) Notify(_ context.Context, n Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.listeners {
		select {
		case ch <- n:
		default:
			// Listener is slow, skip this update
		}
	}
	return nil
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.listeners {
		close(ch)
	}
	h.listeners = make(map[chan Notification]struct{})
	h.closed = true
}
