package entities

import (
	"time"
)

// Preference is a durable per-user UI setting.
type Preference struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"-"`
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"size:1024;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Preference) TableName() string {
	return "user_preferences"
}

// Known preference keys
const (
	PreferenceKeyTheme      = "theme"
	PreferenceKeyReaderMode = "reader_mode"
)

// Recognized values for the known keys
const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	ReaderModeSingle = "single"
	ReaderModeDouble = "double"
)
