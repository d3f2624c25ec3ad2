// Command donusturctl runs operator tasks against the Dönüştür database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/donustur/donustur/internal/config"
	"github.com/donustur/donustur/internal/infra"
	"github.com/donustur/donustur/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:           "donusturctl",
	Short:         "Operator tooling for the Dönüştür API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		logger = logging.New(cfg.LogLevel, cfg.IsDev())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(binCmd)
	rootCmd.AddCommand(userCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openDB connects to DATABASE_URL; every subcommand works against Postgres.
func openDB(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	return infra.NewPostgresPool(ctx, cfg.DatabaseURL)
}
