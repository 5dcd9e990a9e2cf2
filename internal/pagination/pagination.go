// Package pagination slices in-memory lists and gorm queries into pages.
package pagination

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPage = 1
	DefaultSize = 10
)

// Page is one slice of a larger result set.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Search narrows a query to rows whose column contains Term.
type Search struct {
	Column string
	Term   string
}

// Normalize applies the default page and size to non-positive values.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}

	if size < 1 {
		size = DefaultSize
	}

	return page, size
}

// TotalPages returns ceil(total/size).
func TotalPages(total int64, size int) int {
	if size < 1 || total <= 0 {
		return 0
	}

	return int((total + int64(size) - 1) / int64(size))
}

// Slice returns the requested page of items. Pages past the end are empty.
func Slice[T any](items []T, page, size int) Page[T] {
	page, size = Normalize(page, size)
	total := int64(len(items))

	result := Page[T]{
		Data:       []T{},
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: TotalPages(total, size),
	}

	start := (page - 1) * size
	if start >= len(items) {
		return result
	}

	end := min(start+size, len(items))
	result.Data = items[start:end]

	return result
}

// Filter narrows q to rows matching search. A non-empty term matches
// case-insensitively on postgres (ILIKE) and with the store's LIKE semantics
// elsewhere. An empty term applies no filter.
func Filter(q *gorm.DB, search *Search) *gorm.DB {
	if search == nil || search.Term == "" {
		return q
	}

	op := "LIKE"
	if q.Dialector.Name() == "postgres" {
		op = "ILIKE"
	}

	return q.Where(clause.Expr{
		SQL:  "? " + op + " ?",
		Vars: []any{clause.Column{Name: search.Column}, "%" + search.Term + "%"},
	})
}

// Query pages the rows selected by q. The caller sets the table or model and
// any ordering on q. Count and slice run concurrently on cloned sessions.
func Query[T any](ctx context.Context, q *gorm.DB, search *Search, page, size int) (Page[T], error) {
	page, size = Normalize(page, size)

	base := Filter(q.Session(&gorm.Session{}), search)

	var (
		total int64
		data  []T
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return base.WithContext(gctx).Count(&total).Error
	})

	g.Go(func() error {
		return base.WithContext(gctx).Limit(size).Offset((page - 1) * size).Find(&data).Error
	})

	if err := g.Wait(); err != nil {
		return Page[T]{}, fmt.Errorf("failed to paginate query: %w", err)
	}

	if data == nil {
		data = []T{}
	}

	return Page[T]{
		Data:       data,
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: TotalPages(total, size),
	}, nil
}
