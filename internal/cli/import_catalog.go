package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/catalog"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/users"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// ImportCatalogCommand loads books from a YAML or JSON seed file.
type ImportCatalogCommand struct {
	FilePath     string
	OwnerEmail   string
	DatabasePath string
	Verbose      bool
}

func NewImportCatalogCommand() *cobra.Command {
	c := &ImportCatalogCommand{}
	cmd := &cobra.Command{
		Use:   "import-catalog",
		Short: "Import books from a YAML or JSON seed file",
		Long: `Import books from a seed file into the shared catalog.

Books already in the catalog (same title and authors) are skipped, so the
import can be re-run. Imported books are owned by the --owner account.

Seed format:

  books:
    - title: The Hobbit
      author: J.R.R. Tolkien
      publisher: Allen & Unwin
      categories: [Fantasy]
      pdf_reference: https://example.com/hobbit.pdf`,
		Example: `  bookshelf import-catalog --file seed.yaml --owner admin@example.com`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd)
		},
	}

	cmd.Flags().StringVarP(&c.FilePath, "file", "f", "", "Path to the seed file (required)")
	cmd.Flags().StringVar(&c.OwnerEmail, "owner", "", "Email of the account that owns the imported books (required)")
	cmd.Flags().StringVar(&c.DatabasePath, "db", "", "Path to the SQLite database (defaults to DATABASE_PATH)")
	cmd.Flags().BoolVar(&c.Verbose, "verbose", false, "Enable verbose logging")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func (c *ImportCatalogCommand) Run(cmd *cobra.Command) error {
	f, err := os.Open(c.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	_, db, log, err := openDatabase(c.DatabasePath, c.Verbose)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := importCatalog(cmd.Context(), db, f, c.OwnerEmail, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created: %d, skipped: %d, failed: %d\n", result.Created, result.Skipped, result.Failed)
	for _, msg := range result.Errors {
		fmt.Fprintf(out, "  %s\n", msg)
	}
	return nil
}

func importCatalog(ctx context.Context, db *database.Database, r io.Reader, ownerEmail string, log *logger.Logger) (*catalog.ImportResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	owner, err := users.NewRepository(db.DB).GetByEmail(ctx, entities.NormalizeEmail(ownerEmail))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no account with email %q", ownerEmail)
		}
		return nil, fmt.Errorf("failed to look up owner: %w", err)
	}

	seed, err := catalog.ParseSeed(r)
	if err != nil {
		return nil, err
	}

	bookRepo := books.NewRepository(db.DB)
	service := catalog.NewService(bookRepo, nil, log)
	actor := entities.Actor{UserID: owner.ID, Role: owner.Role}
	return service.ImportSeed(ctx, actor, bookRepo, seed)
}
