package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/bookshelf/internal/audit"
	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/catalog"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/favourites"
	"github.com/mrlokans/bookshelf/internal/database/history"
	prefrepo "github.com/mrlokans/bookshelf/internal/database/preferences"
	shelfrepo "github.com/mrlokans/bookshelf/internal/database/shelves"
	"github.com/mrlokans/bookshelf/internal/database/users"
	"github.com/mrlokans/bookshelf/internal/http"
	"github.com/mrlokans/bookshelf/internal/preferences"
	"github.com/mrlokans/bookshelf/internal/scheduler"
	"github.com/mrlokans/bookshelf/internal/search"
	"github.com/mrlokans/bookshelf/internal/shelves"
	"github.com/mrlokans/bookshelf/internal/storage"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ auth.UserStore = (*users.Repository)(nil)

var _ catalog.BookStore = (*books.Repository)(nil)
var _ catalog.SeedLookup = (*books.Repository)(nil)
var _ search.CandidateSource = (*books.Repository)(nil)

var _ shelves.ShelfStore = (*shelfrepo.Repository)(nil)
var _ shelves.HistoryStore = (*history.Repository)(nil)
var _ shelves.FavouriteStore = (*favourites.Repository)(nil)

var _ preferences.Store = (*prefrepo.Repository)(nil)

// =============================================================================
// Blob Storage
// =============================================================================

var _ storage.BlobStore = (*storage.LocalStore)(nil)
var _ storage.BlobStore = (*storage.MinioStore)(nil)
var _ tasks.BlobDeleter = (storage.BlobStore)(nil)

// =============================================================================
// Token Revocation and Login Throttling
// =============================================================================

var _ auth.Revoker = (*auth.MemoryRevoker)(nil)
var _ auth.Revoker = (*auth.RedisRevoker)(nil)

var _ auth.LoginLimiter = (*auth.MemoryLoginLimiter)(nil)
var _ auth.LoginLimiter = (*auth.RedisLoginLimiter)(nil)

// =============================================================================
// Audit Trail
// =============================================================================

var _ auth.AuthAuditor = (*audit.Service)(nil)
var _ catalog.Auditor = (*audit.Service)(nil)
var _ preferences.Auditor = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

var _ catalog.BlobPurger = (*tasks.Client)(nil)
var _ http.TaskRunner = (*tasks.Client)(nil)
var _ scheduler.AuditCleanupEnqueuer = (*tasks.Client)(nil)

// =============================================================================
// Health Checks
// =============================================================================

var _ http.Pinger = (*database.Database)(nil)
var _ http.Pinger = (*storage.MinioStore)(nil)
