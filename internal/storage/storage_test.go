package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/storage/storagetest"
)

func TestLocalStore_PutOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "books/b1/file.pdf", strings.NewReader("content"), 7, "application/pdf"))

	exists, err := store.Exists(ctx, "books/b1/file.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Open(ctx, "books/b1/file.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	url, err := store.URL(ctx, "books/b1/file.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/files/books/b1/file.pdf", url)

	require.NoError(t, store.Delete(ctx, "books/b1/file.pdf"))
	require.NoError(t, store.Delete(ctx, "books/b1/file.pdf"))

	_, err = store.Open(ctx, "books/b1/file.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "/abs/path", "a/../../b", `a\b`} {
		err := store.Put(ctx, key, strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalStore_PutHonoursCancellation(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Put(ctx, "books/x.pdf", strings.NewReader("data"), 4, "")
	assert.ErrorIs(t, err, context.Canceled)

	exists, err := store.Exists(context.Background(), "books/x.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNew_SelectsBackend(t *testing.T) {
	store, err := New(context.Background(), config.Storage{Backend: config.StorageBackendLocal, LocalDir: t.TempDir(), PublicPrefix: "/files"})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(context.Background(), config.Storage{Backend: "ftp"})
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		ref  string
		want string
	}{
		{"", ""},
		{"https://cdn.example.com/book.pdf", "https://cdn.example.com/book.pdf"},
		{"/static/book.pdf", "/static/book.pdf"},
		{"books/1/a.pdf", "/files/books/1/a.pdf"},
	}
	for _, tt := range tests {
		got, err := ResolveURL(ctx, store, tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err = ResolveURL(ctx, nil, "books/1/a.pdf")
	assert.Error(t, err)
}

func TestNewBookKey(t *testing.T) {
	key := NewBookKey("book-1", "My Scan.PDF")

	assert.True(t, strings.HasPrefix(key, "books/book-1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, NewBookKey("book-1", "My Scan.PDF"))
	assert.True(t, OwnsKey("book-1", key))
}

func TestOwnsKey(t *testing.T) {
	tests := []struct {
		name   string
		bookID string
		key    string
		want   bool
	}{
		{"own file", "book-1", "books/book-1/a.pdf", true},
		{"other book", "book-1", "books/book-2/a.pdf", false},
		{"id prefix of another id", "book-1", "books/book-10/a.pdf", false},
		{"escapes namespace", "book-1", "books/book-1/../book-2/a.pdf", false},
		{"namespace itself", "book-1", "books/book-1", false},
		{"empty key", "book-1", "", false},
		{"empty book id", "", "books//a.pdf", false},
		{"absolute path", "book-1", "/books/book-1/a.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OwnsKey(tt.bookID, tt.key))
		})
	}
}

func TestPageCount(t *testing.T) {
	doc := storagetest.MinimalPDF(3)

	pages, err := PageCount(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestPageCount_RejectsGarbage(t *testing.T) {
	garbage := []byte("definitely not a pdf")

	_, err := PageCount(bytes.NewReader(garbage), int64(len(garbage)))
	assert.Error(t, err)
}
