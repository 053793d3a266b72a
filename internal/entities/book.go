package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Book struct {
	ID                  string                      `gorm:"primaryKey;size:36" json:"id"`
	Title               string                      `gorm:"size:512;not null" json:"title"`
	Authors             datatypes.JSONSlice[string] `json:"authors"`
	Publisher           string                      `gorm:"size:256" json:"publisher,omitempty"`
	Description         string                      `gorm:"type:text" json:"description,omitempty"`
	Categories          []BookCategory              `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"-"`
	PDFReference        string                      `gorm:"size:2048" json:"pdf_reference,omitempty"`
	CoverImageReference string                      `gorm:"size:2048" json:"cover_image_reference,omitempty"`
	Pages               int                         `json:"pages,omitempty"`
	UploaderID          string                      `gorm:"index;size:36" json:"uploader_id"`
	CreatedAt           time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`

	// Case-folded copies used by the search queries.
	TitleFolded       string `gorm:"size:512;index" json:"-"`
	AuthorsFolded     string `gorm:"size:1024" json:"-"`
	PublisherFolded   string `gorm:"size:256" json:"-"`
	DescriptionFolded string `gorm:"type:text" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Fold()
	return nil
}

// Fold refreshes the case-folded search columns from the display fields.
func (b *Book) Fold() {
	b.TitleFolded = Fold(b.Title)
	b.AuthorsFolded = Fold(b.AuthorLine())
	b.PublisherFolded = Fold(b.Publisher)
	b.DescriptionFolded = Fold(b.Description)
}

// AuthorLine joins the ordered author list for display and matching.
func (b *Book) AuthorLine() string {
	return strings.Join(b.Authors, ", ")
}

// CategoryNames returns the category labels in stored order.
func (b *Book) CategoryNames() []string {
	names := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		names = append(names, c.Name)
	}
	return names
}

// HasCategory reports a case-insensitive exact match against the category set.
func (b *Book) HasCategory(category string) bool {
	folded := Fold(category)
	for _, c := range b.Categories {
		if c.NameFolded == folded || Fold(c.Name) == folded {
			return true
		}
	}
	return false
}

type BookCategory struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	BookID     string `gorm:"size:36;not null;uniqueIndex:idx_book_category" json:"-"`
	Name       string `gorm:"size:100;not null" json:"name"`
	NameFolded string `gorm:"size:100;not null;uniqueIndex:idx_book_category;index" json:"-"`
}

func (BookCategory) TableName() string {
	return "book_categories"
}

func (c *BookCategory) BeforeSave(tx *gorm.DB) error {
	c.NameFolded = Fold(c.Name)
	return nil
}

// Fold is the case folding applied to every searchable field.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
