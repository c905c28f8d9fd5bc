package core

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/GrantImport/internal/config"
)

// DefaultImportTimeout bounds a single import request.
const DefaultImportTimeout = 5 * time.Minute

// Options configures a Service. Zero values select defaults.
type Options struct {
	Subsidiaries        []string
	MaxFuzzyDistance    int
	EndDateHorizonYears int

	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration

	// Notifiers receive every import notification in addition to the log,
	// the persisted inbox and live subscribers.
	Notifiers []Notifier
}

// OptionsFromConfig maps the import settings onto service options.
func OptionsFromConfig(cfg config.ImportConfig) Options {
	return Options{
		Subsidiaries:        cfg.Subsidiaries,
		MaxFuzzyDistance:    cfg.FuzzyMaxDistance,
		EndDateHorizonYears: cfg.EndDateHorizonYears,
		MaxConcurrent:       cfg.MaxConcurrent,
		MaxWait:             cfg.MaxWaitTime,
		Timeout:             cfg.Timeout,
	}
}

// NewValidator returns a validation-only importer for the given settings.
// It needs no store.
func NewValidator(cfg config.ImportConfig) *Importer {
	headers := NewSheetValidator(cfg.Subsidiaries, cfg.FuzzyMaxDistance, cfg.EndDateHorizonYears)
	return NewImporter(nil, headers, nil, nil)
}

// Service is the entry point used by the web and CLI frontends.
type Service struct {
	repo     Repository
	importer *Importer
	limiter  *ImportLimiter
	hub      *Hub
	timeout  time.Duration
}

// NewService wires an importer to repo with the standard notifiers.
func NewService(repo Repository, opts Options) *Service {
	hub := NewHub()

	notifiers := MultiNotifier{LogNotifier{}, InboxNotifier{Store: repo}, hub}
	notifiers = append(notifiers, opts.Notifiers...)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}

	headers := NewSheetValidator(opts.Subsidiaries, opts.MaxFuzzyDistance, opts.EndDateHorizonYears)

	return &Service{
		repo:     repo,
		importer: NewImporter(repo, headers, notifiers, repo),
		limiter:  NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		hub:      hub,
		timeout:  timeout,
	}
}

// Import validates and commits a workbook. It returns an error only when the
// request cannot be served: the workbook is unreadable or the server is busy.
//
// A client disconnect does not cancel the run; every sheet reaches a terminal
// state within the configured timeout.
func (s *Service) Import(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	return s.importer.Import(ctx, fileName, r)
}

// Validate runs every import check without writing.
func (s *Service) Validate(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.importer.Validate(ctx, fileName, r)
}

// History lists the most recent import runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ImportRecord, error) {
	return s.repo.ListImports(ctx, limit)
}

// Notifications lists the most recent inbox notifications, newest first.
func (s *Service) Notifications(ctx context.Context, limit int) ([]Notification, error) {
	return s.repo.ListNotifications(ctx, limit)
}

// Subscribe streams notifications of future imports. Call the returned
// function to stop.
func (s *Service) Subscribe() (<-chan Notification, func()) {
	return s.hub.Subscribe()
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Close ends every live notification stream.
func (s *Service) Close() {
	s.hub.Close()
}
