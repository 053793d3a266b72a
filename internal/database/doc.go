// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite or postgres), migrations
//	├── books/           # Catalog rows, categories, cascade delete, search candidates
//	├── shelves/         # Shelf assignments keyed by (user, book)
//	├── history/         # Append-only reading progress log
//	├── preferences/     # Per-user key/value settings
//	├── favourites/      # Favourite books per user
//	├── users/           # User accounts
//	└── audit/           # Audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase(cfg.Database, log)
//
//	booksRepo := books.NewRepository(db.DB)
//	shelvesRepo := shelves.NewRepository(db.DB)
//
//	book, err := booksRepo.GetByID(ctx, id)
//	entries, err := shelvesRepo.ListByUser(ctx, userID, "")
//
// # Error Translation
//
// The connection is opened with TranslateError, so repositories surface
// gorm.ErrRecordNotFound, gorm.ErrDuplicatedKey and gorm.ErrForeignKeyViolated
// instead of driver-specific errors.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add the entity to Models in database.go
//  5. Add compile-time interface check in internal/interfaces/checks.go
package database
