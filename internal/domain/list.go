package domain

import "math"

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page converts 1-based page/per-page parameters into limit and offset.
// Out-of-range values fall back to the first page and the default size; a page
// too large for the offset to fit in an int is clamped to the last representable one.
func Page(page, perPage int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return perPage, (page - 1) * perPage
}
