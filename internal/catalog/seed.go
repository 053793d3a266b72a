package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/entities"
)

// SeedFile is the layout of a catalog seed document. JSON documents parse
// as well, being a subset of YAML.
type SeedFile struct {
	Books []SeedBook `yaml:"books"`
}

// SeedBook is one catalog entry in a seed document. Either author or
// authors may be given.
type SeedBook struct {
	Title               string   `yaml:"title"`
	Author              string   `yaml:"author"`
	Authors             []string `yaml:"authors"`
	Publisher           string   `yaml:"publisher"`
	Description         string   `yaml:"description"`
	Categories          []string `yaml:"categories"`
	Category            string   `yaml:"category"`
	PDFReference        string   `yaml:"pdf_reference"`
	CoverImageReference string   `yaml:"cover_image_reference"`
	Pages               int      `yaml:"pages"`
}

func (b SeedBook) input() BookInput {
	authors := b.Authors
	if b.Author != "" {
		authors = append([]string{b.Author}, authors...)
	}
	categories := b.Categories
	if b.Category != "" {
		categories = append([]string{b.Category}, categories...)
	}
	return BookInput{
		Title:               b.Title,
		Authors:             authors,
		Publisher:           b.Publisher,
		Description:         b.Description,
		Categories:          categories,
		PDFReference:        b.PDFReference,
		CoverImageReference: b.CoverImageReference,
		Pages:               b.Pages,
	}
}

// SeedLookup finds an existing book so re-running an import does not
// duplicate it.
type SeedLookup interface {
	GetByTitleAndAuthors(ctx context.Context, title, authors string) (*entities.Book, error)
}

// ImportResult summarizes a seed import.
type ImportResult struct {
	Created int
	Skipped int
	Failed  int
	Errors  []string
}

// ParseSeed decodes a seed document.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// ImportSeed creates every seed book that is not in the catalog yet, owned
// by actor. Invalid entries are counted and reported without stopping the
// import.
func (s *Service) ImportSeed(ctx context.Context, actor entities.Actor, lookup SeedLookup, seed *SeedFile) (*ImportResult, error) {
	result := &ImportResult{}
	for i, entry := range seed.Books {
		input := entry.input()
		book, err := buildBook(input)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("book %d (%q): %s", i+1, entry.Title, apperr.Message(err)))
			continue
		}

		if lookup != nil {
			_, err := lookup.GetByTitleAndAuthors(ctx, book.Title, book.AuthorLine())
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return result, fmt.Errorf("failed to look up %q: %w", book.Title, err)
			}
		}

		if _, err := s.CreateBook(ctx, actor, input); err != nil {
			if errors.Is(err, apperr.ErrInternal) {
				return result, err
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("book %d (%q): %s", i+1, entry.Title, apperr.Message(err)))
			continue
		}
		result.Created++
	}

	s.log.Info("catalog seed imported",
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"user_id", actor.UserID)
	return result, nil
}
