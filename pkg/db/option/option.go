package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before execution. Options compose; the
// repository applies them in order.
type QueryOption func(tx *gorm.DB) *gorm.DB

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	// Allow whitelists sortable columns. A nil map allows any column; an
	// unlisted column falls back to created_at.
	Allow map[string]bool
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" {
			column = "created_at"
		}
		if sort.Allow != nil && !sort.Allow[column] {
			column = "created_at"
		}

		direction := "ASC"
		if strings.EqualFold(sort.OrderBy, "desc") {
			direction = "DESC"
		}

		return tx.Order(fmt.Sprintf("%s %s", column, direction))
	}
}

func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit)
	}
}

// Keyset is a two-column boundary for cursor pagination: the sort column
// plus a unique tie-breaker, so rows sharing the boundary value are never
// skipped.
type Keyset struct {
	Column    string
	TieColumn string
	Value     any
	TieValue  any
}

// WithKeysetBefore restricts the query to rows strictly before the boundary
// in (Column DESC, TieColumn DESC) order.
func WithKeysetBefore(k Keyset) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(
			fmt.Sprintf("%s < ? OR (%s = ? AND %s < ?)", k.Column, k.Column, k.TieColumn),
			k.Value, k.Value, k.TieValue,
		)
	}
}
