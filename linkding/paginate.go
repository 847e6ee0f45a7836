package linkding

import (
	"context"
	"fmt"
	"net/url"
)

// Iterator lazily walks a cursor-paginated listing. It is forward-only and
// not restartable: the first Next call fetches the initial page, exhausting a
// page follows its next cursor verbatim, and an absent cursor ends the
// sequence. Memory use is bounded by one page.
//
//	it := linkding.Bookmarks(client, nil)
//	for it.Next(ctx) {
//		b := it.Item()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator[T any] struct {
	client *Client
	path   string
	params url.Values

	page    *Page[T]
	idx     int
	started bool
	done    bool
	err     error
}

// Paginate creates an iterator over any listing endpoint of the client.
func Paginate[T any](c *Client, path string, params url.Values) *Iterator[T] {
	return &Iterator[T]{client: c, path: path, params: params}
}

func assetPath(bookmarkID int64) string {
	return fmt.Sprintf("/api/bookmarks/%d/assets/", bookmarkID)
}

// Bookmarks iterates the full bookmark listing.
func Bookmarks(c *Client, params url.Values) *Iterator[Bookmark] {
	return Paginate[Bookmark](c, "/api/bookmarks/", params)
}

// Tags iterates the full tag listing.
func Tags(c *Client, params url.Values) *Iterator[Tag] {
	return Paginate[Tag](c, "/api/tags/", params)
}

// Assets iterates a bookmark's asset listing.
func Assets(c *Client, bookmarkID int64, params url.Values) *Iterator[Asset] {
	return Paginate[Asset](c, assetPath(bookmarkID), params)
}

// Next advances to the next item, fetching pages as needed. It returns false
// when the sequence is exhausted or a fetch failed; check Err afterwards.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}

	if !it.started {
		it.started = true
		it.page, it.err = getPage[T](ctx, it.client, it.path, it.params)
		if it.err != nil {
			it.done = true
			return false
		}
		it.idx = -1
	}

	for {
		it.idx++
		if it.idx < len(it.page.Results) {
			return true
		}
		if it.page.Next == "" {
			it.done = true
			return false
		}
		it.page, it.err = getCursor[T](ctx, it.client, it.page.Next)
		if it.err != nil {
			it.done = true
			return false
		}
		it.idx = -1
	}
}

// Item returns the current item. Only valid after a true Next.
func (it *Iterator[T]) Item() T {
	return it.page.Results[it.idx]
}

// Err returns the first error encountered while walking, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// TotalCount returns the server-reported total across all pages once any page
// has been fetched. It is informational, not a commitment: the remote
// collection can mutate mid-walk.
func (it *Iterator[T]) TotalCount() int {
	if it.page == nil {
		return 0
	}
	return it.page.Count
}
