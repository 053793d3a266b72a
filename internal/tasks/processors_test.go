package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/storage/storagetest"
)

type fakeCleaner struct {
	retention time.Duration
	deleted   int64
	err       error

	maintenance []string
}

func (f *fakeCleaner) DeleteOldEvents(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return f.deleted, f.err
}

func (f *fakeCleaner) LogMaintenance(action, _ string, _ int64, _ error) {
	f.maintenance = append(f.maintenance, action)
}

func TestCleanupAuditEventsTaskConfig(t *testing.T) {
	cfg := CleanupAuditEventsTask{}.Config()

	assert.Equal(t, "cleanup_audit_events", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.NotNil(t, cfg.Retention)
}

func TestCleanupAuditEventsProcessor(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 7}
	process := CleanupAuditEventsProcessor(cleaner, nil)

	require.NoError(t, process(context.Background(), CleanupAuditEventsTask{RetentionDays: 10}))
	assert.Equal(t, 10*24*time.Hour, cleaner.retention)
	assert.Equal(t, []string{"cleanup_audit_events"}, cleaner.maintenance)
}

func TestCleanupAuditEventsProcessor_DefaultRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	process := CleanupAuditEventsProcessor(cleaner, nil)

	require.NoError(t, process(context.Background(), CleanupAuditEventsTask{}))
	assert.Equal(t, DefaultAuditRetentionDays*24*time.Hour, cleaner.retention)
}

func TestCleanupAuditEventsProcessor_Errors(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("disk full")}
	err := CleanupAuditEventsProcessor(cleaner, nil)(context.Background(), CleanupAuditEventsTask{RetentionDays: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	// The failure is still recorded
	assert.Len(t, cleaner.maintenance, 1)

	err = CleanupAuditEventsProcessor(nil, nil)(context.Background(), CleanupAuditEventsTask{})
	assert.Error(t, err)
}

func TestPurgeBookBlobsTaskConfig(t *testing.T) {
	cfg := PurgeBookBlobsTask{BookID: "b1"}.Config()

	assert.Equal(t, "purge_book_blobs", cfg.Name)
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestPurgeBookBlobsProcessor(t *testing.T) {
	ctx := context.Background()
	blobs := storagetest.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, "books/b1/book.pdf", strings.NewReader("pdf"), 3, "application/pdf"))
	require.NoError(t, blobs.Put(ctx, "books/b1/cover.jpg", strings.NewReader("jpg"), 3, "image/jpeg"))
	require.NoError(t, blobs.Put(ctx, "books/b2/book.pdf", strings.NewReader("pdf"), 3, "application/pdf"))

	process := PurgeBookBlobsProcessor(blobs, nil)
	err := process(ctx, PurgeBookBlobsTask{
		BookID: "b1",
		Keys:   []string{"books/b1/book.pdf", "books/b1/cover.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"books/b2/book.pdf"}, blobs.Keys())
	assert.Equal(t, []string{"books/b1/book.pdf", "books/b1/cover.jpg"}, blobs.Deleted())
}

func TestPurgeBookBlobsProcessor_OnlyOwnNamespace(t *testing.T) {
	ctx := context.Background()
	blobs := storagetest.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, "books/b2/book.pdf", strings.NewReader("pdf"), 3, "application/pdf"))

	process := PurgeBookBlobsProcessor(blobs, nil)
	err := process(ctx, PurgeBookBlobsTask{
		BookID: "b1",
		Keys:   []string{"books/b2/book.pdf", "books/b1/../b2/book.pdf"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"books/b2/book.pdf"}, blobs.Keys())
	assert.Empty(t, blobs.Deleted())
}

type failingDeleter struct{ failKey string }

func (f failingDeleter) Delete(_ context.Context, key string) error {
	if key == f.failKey {
		return errors.New("unavailable")
	}
	return nil
}

func TestPurgeBookBlobsProcessor_PartialFailure(t *testing.T) {
	process := PurgeBookBlobsProcessor(failingDeleter{failKey: "books/x/b"}, nil)

	err := process(context.Background(), PurgeBookBlobsTask{BookID: "x", Keys: []string{"books/x/a", "books/x/b", "books/x/c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete books/x/b")
	assert.NotContains(t, err.Error(), "delete books/x/a")
}
