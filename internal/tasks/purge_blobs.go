package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/storage"
)

// BlobDeleter removes stored files. storage.BlobStore satisfies it.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// PurgeBookBlobsTask removes the files of a deleted book.
type PurgeBookBlobsTask struct {
	BookID string   `json:"book_id"`
	Keys   []string `json:"keys"`
}

// Config returns the queue configuration for blob purge tasks.
func (t PurgeBookBlobsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "purge_book_blobs",
		MaxAttempts: 5,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PurgeBookBlobsProcessor deletes every key of the task that lies inside
// the book's namespace. Keys already gone count as deleted, so a retried
// task finishes the remaining keys.
func PurgeBookBlobsProcessor(blobs BlobDeleter, log *logger.Logger) backlite.QueueProcessor[PurgeBookBlobsTask] {
	log = logger.OrNop(log)
	return func(ctx context.Context, task PurgeBookBlobsTask) error {
		if blobs == nil {
			return fmt.Errorf("blob store not configured")
		}

		var errs []error
		for _, key := range task.Keys {
			if !storage.OwnsKey(task.BookID, key) {
				log.Warn("skipping blob outside book namespace", "book_id", task.BookID, "key", key)
				continue
			}
			if err := blobs.Delete(ctx, key); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("purge blobs of book %s: %w", task.BookID, err)
		}

		log.Info("book blobs purged", "book_id", task.BookID, "keys", len(task.Keys))
		return nil
	}
}

// NewPurgeBookBlobsQueue creates a backlite queue for blob purge tasks.
func NewPurgeBookBlobsQueue(blobs BlobDeleter, log *logger.Logger) backlite.Queue {
	return backlite.NewQueue(PurgeBookBlobsProcessor(blobs, log))
}
