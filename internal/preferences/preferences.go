// Package preferences stores per-user UI settings.
//
// Known keys have a fixed set of values and a default that applies until
// the user sets one. Other keys matching the key format are accepted as
// free-form values so clients can keep their own settings.
//
// Known keys:
//
//	theme        light | dark      (default light)
//	reader_mode  single | double   (default double)
package preferences

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

const MaxValueLength = 1024

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Definition describes a known preference key.
type Definition struct {
	Key     string
	Values  []string
	Default string
}

// Toggleable reports whether the key flips between exactly two values.
func (d Definition) Toggleable() bool {
	return len(d.Values) == 2
}

var definitions = map[string]Definition{
	entities.PreferenceKeyTheme: {
		Key:     entities.PreferenceKeyTheme,
		Values:  []string{entities.ThemeLight, entities.ThemeDark},
		Default: entities.ThemeLight,
	},
	entities.PreferenceKeyReaderMode: {
		Key:     entities.PreferenceKeyReaderMode,
		Values:  []string{entities.ReaderModeSingle, entities.ReaderModeDouble},
		Default: entities.ReaderModeDouble,
	},
}

// Lookup returns the definition of a known key.
func Lookup(key string) (Definition, bool) {
	d, ok := definitions[key]
	return d, ok
}

// Default returns the default value of a known key, or "".
func Default(key string) string {
	return definitions[key].Default
}

// Setting is the effective value of one key.
type Setting struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	IsDefault bool   `json:"is_default"`
}

// Store is implemented by database/preferences.Repository.
type Store interface {
	Get(ctx context.Context, userID, key string) (*entities.Preference, error)
	List(ctx context.Context, userID string) ([]entities.Preference, error)
	Upsert(ctx context.Context, userID, key, value string) (*entities.Preference, error)
	Update(ctx context.Context, userID, key string, fn func(current string, found bool) (string, error)) (*entities.Preference, error)
	Delete(ctx context.Context, userID, key string) error
}

// Auditor records preference changes.
type Auditor interface {
	LogPreference(userID, key, value string)
}

// Service reads and writes preferences.
type Service struct {
	store Store
	audit Auditor
	log   *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: logger.OrNop(log)}
}

func (s *Service) WithAuditor(a Auditor) *Service {
	s.audit = a
	return s
}

// Get returns the effective value of key. Unset known keys resolve to their
// default; unset unknown keys are NotFound.
func (s *Service) Get(ctx context.Context, actor entities.Actor, ownerID, key string) (*Setting, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	pref, err := s.store.Get(ctx, ownerID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if def, ok := Lookup(key); ok {
				return &Setting{Key: key, Value: def.Default, IsDefault: true}, nil
			}
			return nil, apperr.NotFound("preference %q is not set", key)
		}
		return nil, apperr.Internal(err, "failed to load preference")
	}
	return &Setting{Key: key, Value: effective(key, pref.Value)}, nil
}

// Set validates and stores a value. Values of known keys are matched
// case-insensitively and stored in their canonical form.
func (s *Service) Set(ctx context.Context, actor entities.Actor, ownerID, key, value string) (*Setting, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	canonical, err := validate(key, value)
	if err != nil {
		return nil, err
	}

	pref, err := s.store.Upsert(ctx, ownerID, key, canonical)
	if err != nil {
		return nil, apperr.Internal(err, "failed to save preference")
	}
	s.logChange(ownerID, key, pref.Value)
	return &Setting{Key: key, Value: pref.Value}, nil
}

// Toggle flips a two-valued key atomically and returns the new value. An
// unset key flips away from its default.
func (s *Service) Toggle(ctx context.Context, actor entities.Actor, ownerID, key string) (*Setting, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	def, ok := Lookup(key)
	if !ok || !def.Toggleable() {
		return nil, apperr.Validation("preference %q cannot be toggled", key)
	}

	pref, err := s.store.Update(ctx, ownerID, key, func(current string, found bool) (string, error) {
		if !found {
			current = def.Default
		}
		if effective(key, current) == def.Values[0] {
			return def.Values[1], nil
		}
		return def.Values[0], nil
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to toggle preference")
	}
	s.logChange(ownerID, key, pref.Value)
	return &Setting{Key: key, Value: pref.Value}, nil
}

// Reset removes a stored value so the key falls back to its default.
func (s *Service) Reset(ctx context.Context, actor entities.Actor, ownerID, key string) error {
	if err := authorize(actor, ownerID); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ownerID, key); err != nil {
		return apperr.Internal(err, "failed to reset preference")
	}
	s.logChange(ownerID, key, Default(key))
	return nil
}

// List returns every known key with its effective value followed by the
// stored free-form keys, sorted by key.
func (s *Service) List(ctx context.Context, actor entities.Actor, ownerID string) ([]Setting, error) {
	if err := authorize(actor, ownerID); err != nil {
		return nil, err
	}
	stored, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load preferences")
	}

	byKey := make(map[string]Setting, len(stored)+len(definitions))
	for key, def := range definitions {
		byKey[key] = Setting{Key: key, Value: def.Default, IsDefault: true}
	}
	for _, pref := range stored {
		byKey[pref.Key] = Setting{Key: pref.Key, Value: effective(pref.Key, pref.Value)}
	}

	settings := make([]Setting, 0, len(byKey))
	for _, setting := range byKey {
		settings = append(settings, setting)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

func (s *Service) logChange(userID, key, value string) {
	s.log.Debug("preference updated", "user_id", userID, "key", key, "value", value)
	if s.audit != nil {
		s.audit.LogPreference(userID, key, value)
	}
}

func authorize(actor entities.Actor, ownerID string) error {
	if actor.UserID == "" {
		return apperr.Unauthenticated("authentication required")
	}
	if ownerID == "" || !actor.CanAccess(ownerID) {
		return apperr.Forbidden("not allowed to access these preferences")
	}
	return nil
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return apperr.Validation("invalid preference key %q", key)
	}
	return nil
}

// validate checks value against key and returns its canonical form.
func validate(key, value string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	def, ok := Lookup(key)
	if !ok {
		if !utf8.ValidString(value) || len(value) > MaxValueLength {
			return "", apperr.Validation("preference value must be valid text of at most %d bytes", MaxValueLength)
		}
		return value, nil
	}

	folded := strings.ToLower(strings.TrimSpace(value))
	if !slices.Contains(def.Values, folded) {
		return "", apperr.Validation("invalid %s %q: must be one of %s", key, value, strings.Join(def.Values, ", "))
	}
	return folded, nil
}

// effective maps a stored value outside a known key's domain onto the
// key's default.
func effective(key, value string) string {
	def, ok := Lookup(key)
	if !ok || slices.Contains(def.Values, value) {
		return value
	}
	return def.Default
}
