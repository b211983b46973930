// Package chessbuilder wires the arbiter's dependencies from configuration.
package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/game"
	"github.com/park285/cheese-board/internal/repository"
	"github.com/park285/cheese-board/internal/store"
)

type Deps struct {
	Service *game.Service
	Mover   engine.Mover
	Store   store.Store
	Repo    repository.Repository

	closers []func() error
}

func New(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	// Engine (Stockfish optional → random mover)
	if strings.TrimSpace(cfg.StockfishPath) != "" {
		sf, err := engine.NewStockfish(engine.StockfishConfig{
			BinaryPath:     cfg.StockfishPath,
			Depth:          cfg.EngineDepth,
			MoveTimeMillis: cfg.EngineMoveTimeMs,
			PoolSize:       cfg.EnginePoolSize,
			SkillLevel:     cfg.EngineSkillLevel,
			Logger:         logger.Named("engine"),
		})
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		d.Mover = sf
		d.closers = append(d.closers, sf.Close)
	} else {
		logger.Warn("engine_fallback_random", zap.String("reason", "STOCKFISH_PATH not set"))
		d.Mover = engine.NewRandomMover(time.Now().UnixNano())
	}

	if strings.TrimSpace(cfg.OpeningBookPath) != "" {
		book, err := engine.LoadBook(cfg.OpeningBookPath)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init opening book: %w", err)
		}
		d.Mover = engine.NewBookMover(book, d.Mover, cfg.OpeningBookPlies, logger.Named("book"))
	}

	// Sessions (Redis optional → memory)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		d.Store = rs
		d.closers = append(d.closers, rs.Close)
	} else {
		d.Store = store.NewMemoryStore()
	}

	// Archive (Postgres optional → memory)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		d.closers = append(d.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		d.Repo = pg
	} else {
		d.Repo = repository.NewMemory()
	}

	svc, err := game.NewService(d.Store, d.Mover, d.Repo, game.Config{EngineTimeout: cfg.EngineTimeout}, logger.Named("game"))
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.Service = svc
	return d, nil
}

// Close releases engine processes and connections in reverse order of creation.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
