package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/entities"
)

func setupDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "cli.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var testAuth = config.Auth{TokenIssuer: "bookshelf", BcryptCost: bcrypt.MinCost, MinPasswordLength: 8}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand("1.2.3", "abc123")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "bookshelf 1.2.3 (abc123)\n", out.String())
}

func TestCreateAdminCommand_RequiresEmail(t *testing.T) {
	root := NewRootCommand("dev", "unknown")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"create-admin"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestCreateAdmin(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	user, err := createAdmin(ctx, db, testAuth, " Admin@Example.com ", "long-enough-password", "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", user.Email)
	assert.Equal(t, entities.UserRoleAdmin, user.Role)

	_, err = createAdmin(ctx, db, testAuth, "admin@example.com", "long-enough-password", "", nil)
	assert.Error(t, err, "duplicate email")

	_, err = createAdmin(ctx, db, testAuth, "other@example.com", "short", "", nil)
	assert.Error(t, err, "password below the minimum length")
}

const seedYAML = `
books:
  - title: The Hobbit
    author: J.R.R. Tolkien
    publisher: Allen & Unwin
    categories: [Fantasy]
  - title: Good Omens
    authors: [Terry Pratchett, Neil Gaiman]
    category: Fantasy
  - title: ""
    author: Nobody
`

func TestImportCatalog(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	owner, err := createAdmin(ctx, db, testAuth, "admin@example.com", "long-enough-password", "", nil)
	require.NoError(t, err)

	result, err := importCatalog(ctx, db, strings.NewReader(seedYAML), "ADMIN@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "book 3")

	list, total, err := books.NewRepository(db.DB).List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, b := range list {
		assert.Equal(t, owner.ID, b.UploaderID)
	}

	t.Run("re-running skips existing books", func(t *testing.T) {
		result, err := importCatalog(ctx, db, strings.NewReader(seedYAML), "admin@example.com", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Created)
		assert.Equal(t, 2, result.Skipped)
	})
}

func TestImportCatalog_UnknownOwner(t *testing.T) {
	db := setupDB(t)

	_, err := importCatalog(context.Background(), db, strings.NewReader(seedYAML), "ghost@example.com", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost@example.com")
}

func TestImportCatalog_MalformedSeed(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	_, err := createAdmin(ctx, db, testAuth, "admin@example.com", "long-enough-password", "", nil)
	require.NoError(t, err)

	_, err = importCatalog(ctx, db, strings.NewReader("books: [unterminated"), "admin@example.com", nil)
	assert.Error(t, err)
}
