package entrypoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
)

func TestSecretBytes(t *testing.T) {
	t.Run("hex value is decoded", func(t *testing.T) {
		b, err := secretBytes("00ff")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xff}, b)
	})

	t.Run("non-hex value is used as is", func(t *testing.T) {
		b, err := secretBytes("not hex at all")
		require.NoError(t, err)
		assert.Equal(t, []byte("not hex at all"), b)
	})

	t.Run("empty value is generated", func(t *testing.T) {
		a, err := secretBytes("")
		require.NoError(t, err)
		b, err := secretBytes("")
		require.NoError(t, err)
		assert.Len(t, a, 32)
		assert.NotEqual(t, a, b)
	})
}

func TestOpenRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled without an address", func(t *testing.T) {
		client, err := OpenRedis(ctx, config.Redis{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("connects and pings", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := OpenRedis(ctx, config.Redis{Addr: mr.Addr()})
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, redisPinger{client: client}.Ping(ctx))
	})

	t.Run("unreachable server fails", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := OpenRedis(ctx, config.Redis{Addr: addr})
		assert.Error(t, err)
	})
}

func TestNewSessionManager_SQLite(t *testing.T) {
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "sessions.db")}, nil)
	require.NoError(t, err)
	defer db.Close()

	sm, err := newSessionManager(db, config.Auth{SecureCookies: true})
	require.NoError(t, err)
	assert.Equal(t, "session", sm.Cookie.Name)
	assert.True(t, sm.Cookie.Secure)

	var count int
	require.NoError(t, db.DB.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sessions'").Scan(&count).Error)
	assert.Equal(t, 1, count)
}
