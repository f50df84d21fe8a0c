package main

import (
	"context"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"gitea.kood.tech/petrkubec/genre-match/internal/config"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

// openStore connects the configured store and makes sure the schema exists.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil
	case config.DriverPostgres:
		pg, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Annotate(err, "cannot reach the database")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		logger.Info().Msg("database connection established")
		return pg, nil
	}
	return nil, errors.NotValidf("store driver %q", cfg.StoreDriver)
}
