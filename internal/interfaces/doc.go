// Package interfaces documents the core abstractions used throughout the application.
//
// Services declare the narrow interfaces they consume next to their own
// code; repositories and adapters satisfy them implicitly. This package
// lists those pairs in one place and pins them with compile-time checks.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - UserStore: Accounts and login bookkeeping (internal/auth/service.go)
//   - BookStore: Catalog persistence (internal/catalog/catalog.go)
//   - SeedLookup: Duplicate detection for seed imports (internal/catalog/seed.go)
//   - CandidateSource: Books narrowed for search scoring (internal/search/search.go)
//   - ShelfStore, HistoryStore, FavouriteStore: Per-user library (internal/shelves/shelves.go)
//   - Store: Preference rows (internal/preferences/preferences.go)
//
// ## Infrastructure Interfaces
//
//   - BlobStore: PDF and cover storage, local or S3-compatible (internal/storage/storage.go)
//   - Revoker: Token revocation, in memory or Redis (internal/auth/revoker.go)
//   - Pinger: Health check probes (internal/http/health.go)
//
// ## Background Work Interfaces
//
//   - BlobPurger: Deferred blob deletion (internal/catalog/catalog.go)
//   - AuditEventCleaner: Audit retention (internal/tasks/cleanup_audit.go)
//   - AuditCleanupEnqueuer: Scheduled cleanups (internal/scheduler/maintenance.go)
//   - TaskRunner: Admin task endpoints (internal/http/tasks.go)
//
// ## Audit Interfaces
//
//   - AuthAuditor, Auditor: Write-only audit hooks implemented by audit.Service
//
// # Adding a New Storage Backend
//
//  1. Implement BlobStore in internal/storage/
//
//     type GCSStore struct {
//         bucket string
//     }
//
//     func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
//     func (s *GCSStore) Delete(ctx context.Context, key string) error
//     func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error)
//     func (s *GCSStore) URL(ctx context.Context, key string) (string, error)
//
//  2. Select it in storage.New from a new config.StorageBackend value
//
//  3. Add a compile-time check to checks.go
//
// # Adding a New Background Task
//
//  1. Define the task and its processor in internal/tasks/
//
//  2. Register its queue in entrypoint.go
//
//  3. Expose it in the admin task endpoints if it can be run manually
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
