package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/users"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// AdminPasswordEnv is read when --password is not given, keeping the
// password out of the shell history.
const AdminPasswordEnv = "BOOKSHELF_ADMIN_PASSWORD"

// CreateAdminCommand creates an administrator account.
type CreateAdminCommand struct {
	Email        string
	Password     string
	Username     string
	DatabasePath string
	Verbose      bool
}

func NewCreateAdminCommand() *cobra.Command {
	c := &CreateAdminCommand{}
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account in the configured database.

The password is taken from --password or the ` + AdminPasswordEnv + ` environment variable.`,
		Example: `  bookshelf create-admin --email admin@example.com
  bookshelf create-admin --email admin@example.com --username admin --db ./bookshelf.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd)
		},
	}

	cmd.Flags().StringVar(&c.Email, "email", "", "Email address of the administrator (required)")
	cmd.Flags().StringVar(&c.Password, "password", "", "Password (defaults to $"+AdminPasswordEnv+")")
	cmd.Flags().StringVar(&c.Username, "username", "", "Optional username")
	cmd.Flags().StringVar(&c.DatabasePath, "db", "", "Path to the SQLite database (defaults to DATABASE_PATH)")
	cmd.Flags().BoolVar(&c.Verbose, "verbose", false, "Enable verbose logging")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func (c *CreateAdminCommand) Run(cmd *cobra.Command) error {
	password := c.Password
	if password == "" {
		password = os.Getenv(AdminPasswordEnv)
	}
	if password == "" {
		return fmt.Errorf("password is required (--password or $%s)", AdminPasswordEnv)
	}

	cfg, db, log, err := openDatabase(c.DatabasePath, c.Verbose)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := createAdmin(cmd.Context(), db, cfg.Auth, c.Email, password, c.Username, log)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created administrator %s (id %s)\n", user.Email, user.ID)
	return nil
}

// createAdmin stores an admin account. No tokens are issued, so the token
// manager gets a throwaway secret.
func createAdmin(ctx context.Context, db *database.Database, cfg config.Auth, email, password, username string, log *logger.Logger) (*entities.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	secret, err := auth.GenerateSecret()
	if err != nil {
		return nil, err
	}

	service := auth.NewService(
		users.NewRepository(db.DB),
		auth.NewTokenManager([]byte(secret), cfg.TokenIssuer, time.Minute),
		auth.NewMemoryRevoker(time.Minute),
		cfg,
		log,
	)
	return service.CreateUser(ctx, email, password, username, entities.UserRoleAdmin)
}
