// Package page provides the pagination primitive every multi-row query
// in the service returns.
package page

// NotPaginated is the NextPageIndex sentinel of an unpaginated result.
const NotPaginated = -1

// Page is an immutable view over one page of a larger result set.
//
// TotalItems is the cardinality of the result before skip/take were
// applied. NextPageIndex is skip+count+1 unless that would run past
// TotalItems, in which case it is 0 ("end of results"). A Page built
// with All carries NextPageIndex == NotPaginated.
type Page[T any] struct {
	Items         []T `json:"items"`
	TotalItems    int `json:"totalItems"`
	NextPageIndex int `json:"nextPageIndex"`
}

// FromSlice applies skip/take to an already-materialized result set.
// Negative skip or count are caller bugs; they are clamped to zero
// rather than modeled as failures.
func FromSlice[T any](all []T, skip, count int) Page[T] {
	if skip < 0 {
		skip = 0
	}
	if count < 0 {
		count = 0
	}
	total := len(all)
	if skip > total {
		skip = total
	}
	end := skip + count
	if end > total {
		end = total
	}
	items := make([]T, end-skip)
	copy(items, all[skip:end])
	return Page[T]{
		Items:         items,
		TotalItems:    total,
		NextPageIndex: nextIndex(skip, count, total),
	}
}

// FromPartial wraps items that already had skip/take applied by the
// underlying query, together with the unpaginated total.
func FromPartial[T any](items []T, totalItems, skip, count int) Page[T] {
	return Page[T]{
		Items:         items,
		TotalItems:    totalItems,
		NextPageIndex: nextIndex(skip, count, totalItems),
	}
}

// All wraps a complete result set with no paging applied.
func All[T any](items []T) Page[T] {
	return Page[T]{
		Items:         items,
		TotalItems:    len(items),
		NextPageIndex: NotPaginated,
	}
}

// Empty returns a page with no items and no further pages.
func Empty[T any]() Page[T] {
	return Page[T]{Items: []T{}, TotalItems: 0, NextPageIndex: 0}
}

// nextIndex computes the forward cursor: skip+count+1, or 0 once that
// would exceed the total.
func nextIndex(skip, count, total int) int {
	if skip+count+1 > total {
		return 0
	}
	return skip + count + 1
}
