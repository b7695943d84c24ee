// paginator.go
// ------------
// Cursor-driven pagination for bulk list operations. The provider returns a
// bounded page with no explicit "has more" flag; a full page (len == limit)
// means more data is assumed to exist and the loop continues from the last
// result's identifier. The iterator is lazy and non-restartable: batches are
// consumed as they arrive, the cursor lives only for the loop's lifetime, and
// a page failure stops the loop without rolling back batches already yielded.
package atsbridge

import (
	"context"
	"encoding/json"
)

// PageItem is one result row from a paginated read. ID feeds the next page's
// cursor; Raw is the undecoded row handed to the caller.
type PageItem struct {
	ID  string
	Raw json.RawMessage
}

// PageFetcher retrieves one page resuming from cursor. An empty cursor means
// page one.
type PageFetcher func(ctx context.Context, cursor string) ([]PageItem, error)

// PageIter yields batches of results one page at a time:
//
//	it := NewPageIter(fetch, 1000)
//	for it.Next(ctx) {
//	    process(it.Batch())
//	}
//	if err := it.Err(); err != nil { ... }
type PageIter struct {
	fetch  PageFetcher
	limit  int
	cursor string
	batch  []PageItem
	err    error
	done   bool
}

// NewPageIter builds an iterator. pageLimit is the provider's page size; a
// page shorter than it terminates the loop.
func NewPageIter(fetch PageFetcher, pageLimit int) *PageIter {
	if pageLimit <= 0 {
		pageLimit = defaultPageSizeLimit
	}
	return &PageIter{fetch: fetch, limit: pageLimit}
}

// Next fetches the next page. It returns false once the read is exhausted or
// failed; check Err afterwards.
func (it *PageIter) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}

	items, err := it.fetch(ctx, it.cursor)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if len(items) == 0 {
		it.done = true
		return false
	}

	it.batch = items
	if len(items) < it.limit {
		it.done = true
	} else {
		it.cursor = items[len(items)-1].ID
	}
	return true
}

// Batch returns the page most recently fetched by Next.
func (it *PageIter) Batch() []PageItem {
	return it.batch
}

// Err returns the failure that stopped the iterator, or nil on normal
// exhaustion. Batches yielded before the failure stand.
func (it *PageIter) Err() error {
	return it.err
}
