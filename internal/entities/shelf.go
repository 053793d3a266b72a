package entities

import (
	"strings"
	"time"
	"unicode"
)

// Shelf is one of the four reading buckets. The string value is the wire form.
type Shelf string

const (
	ShelfPlanToRead Shelf = "Plan to Read"
	ShelfReading    Shelf = "Reading"
	ShelfOnHold     Shelf = "On Hold"
	ShelfCompleted  Shelf = "Completed"
)

// AllShelves lists the shelves in their display order.
var AllShelves = []Shelf{ShelfPlanToRead, ShelfReading, ShelfOnHold, ShelfCompleted}

var shelfAliases = map[string]Shelf{
	"plantoread":       ShelfPlanToRead,
	"planningtoread":   ShelfPlanToRead,
	"planned":          ShelfPlanToRead,
	"reading":          ShelfReading,
	"currentlyreading": ShelfReading,
	"onhold":           ShelfOnHold,
	"paused":           ShelfOnHold,
	"completed":        ShelfCompleted,
	"finished":         ShelfCompleted,
	"read":             ShelfCompleted,
}

// ParseShelf maps a client-supplied label onto a Shelf. Matching ignores
// case, whitespace and '_'/'-' separators.
func ParseShelf(raw string) (Shelf, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		return "", false
	}
	shelf, ok := shelfAliases[b.String()]
	return shelf, ok
}

func (s Shelf) Valid() bool {
	switch s {
	case ShelfPlanToRead, ShelfReading, ShelfOnHold, ShelfCompleted:
		return true
	}
	return false
}

// ShelfEntry is the single shelf assignment of a book for a user.
type ShelfEntry struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"user_id"`
	BookID    string    `gorm:"primaryKey;size:36;index" json:"book_id"`
	Shelf     Shelf     `gorm:"size:20;not null;index" json:"shelf"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Book *Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ShelfEntry) TableName() string {
	return "shelf_entries"
}

// ReadingHistoryEntry is one append-only progress record.
type ReadingHistoryEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:36;not null;index:idx_history_user_book" json:"user_id"`
	BookID     string    `gorm:"size:36;not null;index:idx_history_user_book;index" json:"book_id"`
	Progress   int       `gorm:"not null" json:"progress"`
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`

	Book *Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ReadingHistoryEntry) TableName() string {
	return "reading_history"
}

type Favourite struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"user_id"`
	BookID    string    `gorm:"primaryKey;size:36;index" json:"book_id"`
	CreatedAt time.Time `json:"created_at"`

	Book *Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Favourite) TableName() string {
	return "favourites"
}
