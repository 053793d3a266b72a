package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/entrypoint"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// NewRootCommand builds the bookshelf command tree. Running the binary
// without a subcommand starts the HTTP server.
func NewRootCommand(version, commit string) *cobra.Command {
	root := &cobra.Command{
		Use:           "bookshelf",
		Short:         "Shared book catalog with personal shelves",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), version)
		},
	}

	root.AddCommand(
		NewServeCommand(version),
		NewCreateAdminCommand(),
		NewImportCatalogCommand(),
		NewVersionCommand(version, commit),
	)
	return root
}

// NewServeCommand starts the HTTP server.
func NewServeCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default if no command given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), version)
		},
	}
}

func serve(ctx context.Context, version string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// kill (no param) default sends syscall.SIGTERM, kill -2 is syscall.SIGINT
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return entrypoint.Run(ctx, config.NewConfig(), version)
}

// NewVersionCommand prints build information.
func NewVersionCommand(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookshelf %s (%s)\n", version, commit)
		},
	}
}

// openDatabase loads the configuration, applies a --db override and opens
// the database for a one-off command.
func openDatabase(dbPath string, verbose bool) (*config.Config, *database.Database, *logger.Logger, error) {
	cfg := config.NewConfig()
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	log := logger.Nop()
	if verbose {
		l, err := logger.New(cfg.Logging.Mode)
		if err != nil {
			return nil, nil, nil, err
		}
		log = l
	}

	db, err := database.NewDatabase(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, db, log, nil
}
