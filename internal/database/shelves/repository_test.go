package shelves

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "shelves.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB), db.DB
}

func createBook(t *testing.T, db *gorm.DB, title string) *entities.Book {
	t.Helper()
	book := &entities.Book{Title: title, Authors: []string{"Author"}}
	require.NoError(t, db.Create(book).Error)
	return book
}

func TestRepository_UpsertReplacesShelf(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	book := createBook(t, db, "Dune")

	first, err := repo.Upsert(ctx, "user-1", book.ID, entities.ShelfPlanToRead)
	require.NoError(t, err)
	assert.Equal(t, entities.ShelfPlanToRead, first.Shelf)

	second, err := repo.Upsert(ctx, "user-1", book.ID, entities.ShelfCompleted)
	require.NoError(t, err)
	assert.Equal(t, entities.ShelfCompleted, second.Shelf)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

	var count int64
	db.Model(&entities.ShelfEntry{}).Where("user_id = ?", "user-1").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRepository_UpsertUnknownBook(t *testing.T) {
	repo, _ := setupTestDB(t)

	_, err := repo.Upsert(context.Background(), "user-1", "missing", entities.ShelfReading)

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_ConcurrentUpsertsKeepOneRow(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	book := createBook(t, db, "Contended")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Upsert(ctx, "user-1", book.ID, entities.AllShelves[i%len(entities.AllShelves)])
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Shelf.Valid())
}

func TestRepository_ListByUserIsolatesUsers(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	a := createBook(t, db, "A")
	b := createBook(t, db, "B")

	_, err := repo.Upsert(ctx, "user-1", a.ID, entities.ShelfReading)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "user-1", b.ID, entities.ShelfOnHold)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "user-2", a.ID, entities.ShelfCompleted)
	require.NoError(t, err)

	entries, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "user-1", e.UserID)
		require.NotNil(t, e.Book)
	}

	empty, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	counts, err := repo.CountByShelf(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[entities.ShelfReading])
	assert.Equal(t, int64(1), counts[entities.ShelfOnHold])
	assert.Equal(t, int64(0), counts[entities.ShelfCompleted])
}

func TestRepository_Delete(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()
	book := createBook(t, db, "Gone")

	_, err := repo.Upsert(ctx, "user-1", book.ID, entities.ShelfReading)
	require.NoError(t, err)

	removed, err := repo.Delete(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.Get(ctx, "user-1", book.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
