package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8188), cfg.HTTP.Port)
	assert.Equal(t, DatabaseDriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpiry)
	assert.Equal(t, "bookshelf", cfg.Auth.TokenIssuer)
	assert.False(t, cfg.Auth.SessionsEnabled)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "/files", cfg.Storage.PublicPrefix)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("AUTH_TOKEN_EXPIRY", "1h")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := NewConfig()

	assert.Equal(t, int32(9000), cfg.HTTP.Port)
	assert.Equal(t, DatabaseDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Auth.TokenExpiry)
	assert.Equal(t, StorageBackendMinio, cfg.Storage.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList("a,"))
}
