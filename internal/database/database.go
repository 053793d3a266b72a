package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

// Models lists every entity managed by AutoMigrate, in dependency order.
var Models = []any{
	&entities.User{},
	&entities.Book{},
	&entities.BookCategory{},
	&entities.ShelfEntry{},
	&entities.ReadingHistoryEntry{},
	&entities.Favourite{},
	&entities.Preference{},
	&entities.AuditEvent{},
}

type Database struct {
	DB     *gorm.DB
	Driver config.DatabaseDriver
}

// NewDatabase opens the configured database and migrates the schema.
func NewDatabase(cfg config.Database, log *logger.Logger) (*Database, error) {
	log = logger.OrNop(log)

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver != config.DatabaseDriverPostgres && isMemoryPath(cfg.Path) {
		// Every connection to :memory: is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db, Driver: driverOrDefault(cfg.Driver)}
	log.Info("database initialized", "driver", database.Driver, "path", cfg.Path)

	return database, nil
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch driverOrDefault(cfg.Driver) {
	case config.DatabaseDriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("database path is required for sqlite")
		}
		return sqlite.Open(SQLiteDSN(cfg.Path)), nil
	case config.DatabaseDriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required for postgres")
		}
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func driverOrDefault(d config.DatabaseDriver) config.DatabaseDriver {
	if d == "" {
		return config.DatabaseDriverSQLite
	}
	return d
}

// SQLiteDSN appends the connection options every SQLite handle needs:
// enforced foreign keys, a busy timeout and write-locking transactions so
// concurrent upserts queue instead of failing with SQLITE_BUSY.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if !isMemoryPath(path) {
		params += "&_journal_mode=WAL"
	}
	return path + "?" + params
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the pooled handle for components that speak database/sql.
func (d *Database) SQLDB() (*sql.DB, error) {
	return d.DB.DB()
}

// Ping checks database connectivity.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
