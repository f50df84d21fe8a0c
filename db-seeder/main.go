// Command db-seeder prepares a genre-match database: it applies the schema,
// fills it with fake users and poll answers, and prints rankings.
package main

import (
	"context"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"gitea.kood.tech/petrkubec/genre-match/internal/config"
	"gitea.kood.tech/petrkubec/genre-match/internal/logging"
	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

var logger = logging.New(logging.Config{Level: "info", Format: "console"})

func main() {
	if err := rootCmd().Execute(); err != nil {
		logger.Fatal().Err(err).Msg("db-seeder failed")
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "db-seeder",
		Short:         "Schema, fake data and rankings for a genre-match database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("dsn", "", "Postgres DSN [env: DATABASE_URL]")
	root.PersistentFlags().String("config", os.Getenv("CONFIG_FILE"), "YAML config file [env: CONFIG_FILE]")
	root.PersistentFlags().Duration("timeout", 5*time.Minute, "Give up after this long")

	root.AddCommand(schemaCmd(), seedCmd(), rankCmd())
	return root
}

// openPostgres resolves the DSN from --dsn or the service configuration.
func openPostgres(cmd *cobra.Command) (*store.Postgres, context.Context, context.CancelFunc, error) {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, nil, nil, errors.Annotate(err, "load config")
		}
		dsn = cfg.DatabaseURL
	}
	if dsn == "" {
		return nil, nil, nil, errors.New("missing DSN: provide --dsn or set DATABASE_URL")
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	pg, err := store.Open(ctx, dsn)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return pg, ctx, cancel, nil
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the users and interests tables if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, ctx, cancel, err := openPostgres(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pg.Close()

			if err := pg.EnsureSchema(ctx); err != nil {
				return errors.Annotate(err, "apply schema")
			}
			logger.Info().Msg("schema applied")
			return nil
		},
	}
}
