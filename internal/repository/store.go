package repository

import (
	"context"
	"fmt"

	"legend-tracker/internal/config"
	"legend-tracker/internal/database"
	"legend-tracker/internal/domain"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Store persists the players, seasonal and previous-trophy documents.
//
// Update loads the current state, hands it to fn and writes back every document fn changed.
// If fn returns an error nothing is written. Write failures are wrapped in
// domain.ErrPersistence.
type Store interface {
	Load(ctx context.Context) (*domain.State, error)
	Update(ctx context.Context, fn func(st *domain.State) error) error
}

type backend interface {
	read(ctx context.Context) (map[document][]byte, error)
	// write stores after[doc] for every doc in which. before holds the committed encoding
	// so a backend that cannot write atomically can put things back.
	write(ctx context.Context, before, after map[document][]byte, which []document) error
}

// New picks the store backend from config.
func New(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case "", "file":
		return NewFileStore(cfg.DataDir, logger)
	case "sqlite":
		db, err := database.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if err := db.Close(); err != nil {
					logger.Warn().Err(err).Msg("error closing database connection")
				}
				return nil
			},
		})
		return NewSQLiteStore(db, logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func load(ctx context.Context, b backend) (*domain.State, error) {
	raw, err := b.read(ctx)
	if err != nil {
		return nil, err
	}
	return decodeState(raw)
}

func update(ctx context.Context, b backend, logger zerolog.Logger, fn func(st *domain.State) error) error {
	st, err := load(ctx, b)
	if err != nil {
		return err
	}
	before, err := encodeState(st)
	if err != nil {
		return err
	}

	if err := fn(st); err != nil {
		return err
	}

	after, err := encodeState(st)
	if err != nil {
		return fmt.Errorf("refusing to persist invalid state: %w", err)
	}
	which := changed(before, after)
	if len(which) == 0 {
		return nil
	}
	if err := b.write(ctx, before, after, which); err != nil {
		logger.Error().Err(err).Msg("failed to persist state")
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}
