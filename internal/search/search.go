// Package search answers free-text and field queries over the catalog.
//
// Matching is case-insensitive substring matching against title, authors
// and description for the free-text query, and against the named field for
// the title, author and publisher filters. A category filter needs an exact
// (case-insensitive) category name. All supplied criteria must hold.
//
// The database narrows candidates with LIKE; every candidate is checked
// again in Go before it is ranked, so the result does not depend on the
// collation of the backing database.
//
// # Ordering
//
// Results are ordered by score (title hits weigh 3, plus 1 when the title
// starts with the query; author hits 2; description hits 1), then newest
// first, then by id. Identical inputs over the same catalog give the same
// order.
package search

import (
	"context"
	"slices"
	"strings"

	"github.com/mrlokans/bookshelf/internal/apperr"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/logger"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	maxTermLength = 200
)

// CandidateSource is the catalog query the engine narrows with. Implemented
// by database/books.Repository.
type CandidateSource interface {
	Candidates(ctx context.Context, f books.Filter) ([]entities.Book, error)
}

// Query holds the search criteria. Empty fields are ignored.
type Query struct {
	Text      string
	Category  string
	Title     string
	Author    string
	Publisher string
	Limit     int
	Offset    int
}

// Engine runs catalog searches.
type Engine struct {
	source CandidateSource
	log    *logger.Logger
}

func NewEngine(source CandidateSource, log *logger.Logger) *Engine {
	return &Engine{source: source, log: logger.OrNop(log)}
}

// Search returns the books matching every criterion of q. An empty result
// is an empty, non-nil slice.
func (e *Engine) Search(ctx context.Context, q Query) ([]entities.Book, error) {
	return e.search(ctx, q, false)
}

// search runs q. With unbounded set, a zero limit returns every match
// instead of DefaultLimit.
func (e *Engine) search(ctx context.Context, q Query, unbounded bool) ([]entities.Book, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	limit := 0
	if !unbounded || q.Limit != 0 {
		if limit, err = normalizeLimit(q.Limit); err != nil {
			return nil, err
		}
	}
	if q.Offset < 0 {
		return nil, apperr.Validation("offset must not be negative")
	}

	candidates, err := e.source.Candidates(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err, "failed to search books")
	}

	type scored struct {
		book  entities.Book
		score int
	}
	matches := make([]scored, 0, len(candidates))
	for _, book := range candidates {
		if !Matches(&book, filter) {
			continue
		}
		matches = append(matches, scored{book: book, score: Score(&book, filter.Query)})
	}

	slices.SortStableFunc(matches, func(a, b scored) int {
		if a.score != b.score {
			return b.score - a.score
		}
		if c := b.book.CreatedAt.Compare(a.book.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.book.ID, b.book.ID)
	})

	if limit == 0 {
		limit = len(matches)
	}
	results := make([]entities.Book, 0, min(limit, len(matches)))
	for i := q.Offset; i < len(matches) && len(results) < limit; i++ {
		results = append(results, matches[i].book)
	}

	e.log.Debug("search executed",
		"query", filter.Query,
		"category", filter.Category,
		"candidates", len(candidates),
		"matches", len(matches))

	return results, nil
}

// ListByCategory returns every book in the category, or one page of them
// when limit is set. The category is required.
func (e *Engine) ListByCategory(ctx context.Context, category string, limit, offset int) ([]entities.Book, error) {
	if strings.TrimSpace(category) == "" {
		return nil, apperr.Validation("category is required")
	}
	return e.search(ctx, Query{Category: category, Limit: limit, Offset: offset}, true)
}

func (q Query) filter() (books.Filter, error) {
	f := books.Filter{
		Query:     entities.Fold(q.Text),
		Category:  entities.Fold(q.Category),
		Title:     entities.Fold(q.Title),
		Author:    entities.Fold(q.Author),
		Publisher: entities.Fold(q.Publisher),
	}
	for _, term := range []string{f.Query, f.Category, f.Title, f.Author, f.Publisher} {
		if len(term) > maxTermLength {
			return books.Filter{}, apperr.Validation("search terms must be at most %d bytes", maxTermLength)
		}
	}
	return f, nil
}

func normalizeLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, apperr.Validation("limit must not be negative")
	case limit == 0:
		return DefaultLimit, nil
	case limit > MaxLimit:
		return MaxLimit, nil
	}
	return limit, nil
}

// Matches reports whether book satisfies every criterion of a folded filter.
func Matches(book *entities.Book, f books.Filter) bool {
	title := entities.Fold(book.Title)
	authors := entities.Fold(book.AuthorLine())

	if f.Query != "" &&
		!strings.Contains(title, f.Query) &&
		!strings.Contains(authors, f.Query) &&
		!strings.Contains(entities.Fold(book.Description), f.Query) {
		return false
	}
	if f.Category != "" && !book.HasCategory(f.Category) {
		return false
	}
	if f.Title != "" && !strings.Contains(title, f.Title) {
		return false
	}
	if f.Author != "" && !strings.Contains(authors, f.Author) {
		return false
	}
	if f.Publisher != "" && !strings.Contains(entities.Fold(book.Publisher), f.Publisher) {
		return false
	}
	return true
}

// Score ranks a match of the folded free-text query. Filter-only searches
// score every book 0.
func Score(book *entities.Book, query string) int {
	if query == "" {
		return 0
	}
	score := 0
	title := entities.Fold(book.Title)
	if strings.Contains(title, query) {
		score += 3
		if strings.HasPrefix(title, query) {
			score++
		}
	}
	if strings.Contains(entities.Fold(book.AuthorLine()), query) {
		score += 2
	}
	if strings.Contains(entities.Fold(book.Description), query) {
		score++
	}
	return score
}
