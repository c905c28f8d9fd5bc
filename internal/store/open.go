package store

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/GrantImport/internal/config"
	"github.com/JonMunkholm/GrantImport/internal/core"
)

// Open returns the repository selected by cfg.URL: the in-memory store for
// MemoryURL, PostgreSQL otherwise. The returned func releases it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Repository, func(), error) {
	if cfg.URL == MemoryURL {
		slog.Warn("using in-memory store; imported grants are lost on exit")
		return NewMemory(), func() {}, nil
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	pg := NewPostgres(pool)

	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	slog.Info("connected to database", "max_conns", cfg.MaxConns)
	return pg, pg.Close, nil
}
