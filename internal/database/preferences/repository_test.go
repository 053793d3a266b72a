package preferences

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "prefs.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB)
}

func TestRepository_UpsertAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1", "theme")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.Upsert(ctx, "u1", "theme", "dark")
	require.NoError(t, err)
	pref, err := repo.Upsert(ctx, "u1", "theme", "light")
	require.NoError(t, err)
	assert.Equal(t, "light", pref.Value)

	got, err := repo.Get(ctx, "u1", "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got.Value)

	_, err = repo.Get(ctx, "u2", "theme")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_List(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, "u1", "theme", "dark")
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "u1", "reader_mode", "single")
	require.NoError(t, err)

	prefs, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "reader_mode", prefs[0].Key)
	assert.Equal(t, "theme", prefs[1].Key)

	require.NoError(t, repo.Delete(ctx, "u1", "theme"))
	prefs, err = repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, prefs, 1)
}

func TestRepository_UpdateSerializesToggles(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	flip := func(current string, found bool) (string, error) {
		if found && current == "dark" {
			return "light", nil
		}
		return "dark", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "u1", "theme", flip)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// An even number of flips from the unset state lands back on light.
	got, err := repo.Get(ctx, "u1", "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got.Value)
}

func TestRepository_UpdateAbortsOnError(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := repo.Update(ctx, "u1", "theme", func(string, bool) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.Get(ctx, "u1", "theme")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
