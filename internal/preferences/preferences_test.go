package preferences

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	prefrepo "github.com/mrlokans/bookshelf/internal/database/preferences"
	"github.com/mrlokans/bookshelf/internal/entities"
)

var (
	alice = entities.Actor{UserID: "alice", Role: entities.UserRoleUser}
	bob   = entities.Actor{UserID: "bob", Role: entities.UserRoleUser}
)

type recordingAuditor struct {
	mu      sync.Mutex
	changes []string
}

func (a *recordingAuditor) LogPreference(_, key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changes = append(a.changes, key+"="+value)
}

func setupService(t *testing.T) (*Service, *recordingAuditor) {
	t.Helper()
	db, err := database.NewDatabase(config.Database{Path: filepath.Join(t.TempDir(), "prefs.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	auditor := &recordingAuditor{}
	return NewService(prefrepo.NewRepository(db.DB), nil).WithAuditor(auditor), auditor
}

func TestGet_Defaults(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	theme, err := svc.Get(ctx, alice, alice.UserID, "theme")
	require.NoError(t, err)
	assert.Equal(t, &Setting{Key: "theme", Value: "light", IsDefault: true}, theme)

	mode, err := svc.Get(ctx, alice, alice.UserID, "reader_mode")
	require.NoError(t, err)
	assert.Equal(t, "double", mode.Value)

	_, err = svc.Get(ctx, alice, alice.UserID, "font_size")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, alice, alice.UserID, "Bad-Key")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSet_ReadYourWrite(t *testing.T) {
	svc, auditor := setupService(t)
	ctx := context.Background()

	set, err := svc.Set(ctx, alice, alice.UserID, "theme", " Dark ")
	require.NoError(t, err)
	assert.Equal(t, "dark", set.Value)

	got, err := svc.Get(ctx, alice, alice.UserID, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Value)
	assert.False(t, got.IsDefault)

	// Other users keep the default
	other, err := svc.Get(ctx, bob, bob.UserID, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", other.Value)

	assert.Equal(t, []string{"theme=dark"}, auditor.changes)
}

func TestSet_Validation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"theme outside domain", "theme", "purple"},
		{"reader mode outside domain", "reader_mode", "triple"},
		{"uppercase key", "Theme", "dark"},
		{"key with dash", "font-size", "12"},
		{"key too long", strings.Repeat("k", 65), "x"},
		{"value too long", "notes", strings.Repeat("v", MaxValueLength+1)},
		{"invalid utf8", "notes", "\xff\xfe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Set(ctx, alice, alice.UserID, tt.key, tt.value)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	theme, err := svc.Get(ctx, alice, alice.UserID, "theme")
	require.NoError(t, err)
	assert.True(t, theme.IsDefault, "rejected writes must not persist")
}

func TestSet_FreeFormKey(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, alice, alice.UserID, "font_size", "14px")
	require.NoError(t, err)

	got, err := svc.Get(ctx, alice, alice.UserID, "font_size")
	require.NoError(t, err)
	assert.Equal(t, "14px", got.Value)
}

func TestToggle(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	got, err := svc.Toggle(ctx, alice, alice.UserID, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Value)

	got, err = svc.Toggle(ctx, alice, alice.UserID, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got.Value)

	mode, err := svc.Toggle(ctx, alice, alice.UserID, "reader_mode")
	require.NoError(t, err)
	assert.Equal(t, "single", mode.Value)

	_, err = svc.Toggle(ctx, alice, alice.UserID, "font_size")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestToggle_Concurrent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Toggle(ctx, alice, alice.UserID, "theme")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// An even number of flips from the default lands back on it
	got, err := svc.Get(ctx, alice, alice.UserID, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got.Value)
}

func TestReset(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, alice, alice.UserID, "theme", "dark")
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx, alice, alice.UserID, "theme"))

	got, err := svc.Get(ctx, alice, alice.UserID, "theme")
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
}

func TestList(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, alice, alice.UserID, "theme", "dark")
	require.NoError(t, err)
	_, err = svc.Set(ctx, alice, alice.UserID, "font_size", "16")
	require.NoError(t, err)

	settings, err := svc.List(ctx, alice, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, []Setting{
		{Key: "font_size", Value: "16"},
		{Key: "reader_mode", Value: "double", IsDefault: true},
		{Key: "theme", Value: "dark"},
	}, settings)
}

func TestAuthorization(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, bob, alice.UserID, "theme", "dark")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Get(ctx, entities.Actor{}, alice.UserID, "theme")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	admin := entities.Actor{UserID: "root", Role: entities.UserRoleAdmin}
	_, err = svc.Toggle(ctx, admin, alice.UserID, "theme")
	assert.NoError(t, err)
}

func TestEffective(t *testing.T) {
	assert.Equal(t, "light", effective("theme", "sepia"))
	assert.Equal(t, "dark", effective("theme", "dark"))
	assert.Equal(t, "anything", effective("notes", "anything"))
}
