package config

// Default paths for on-disk state
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./bookshelf.db"

	// DefaultStorageDir is where the local blob store keeps uploaded PDFs and covers
	DefaultStorageDir = "./data/blobs"
)
