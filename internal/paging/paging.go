// Package paging implements the fetch-all-pages protocol shared by the
// platform and directory clients.
package paging

import "context"

// Page is one page of items plus whatever pagination signal the server uses.
// APIs report either a total page count or an explicit has-more flag; an
// absent envelope (both zero) means the first page is the only page.
type Page[T any] struct {
	Items      []T
	TotalPages int
	HasMore    bool
}

// All issues fetch with 1-based page numbers until the server reports no
// further pages, concatenating items in server order. Errors are returned
// as-is; retrying a single page is the fetch callback's concern.
func All[T any](ctx context.Context, fetch func(ctx context.Context, page int) (Page[T], error)) ([]T, error) {
	var items []T
	for page := 1; ; page++ {
		res, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		items = append(items, res.Items...)
		if res.HasMore {
			continue
		}
		if res.TotalPages == 0 || page >= res.TotalPages {
			return items, nil
		}
	}
}

// AllCursor issues fetch with a continuation token until the server stops
// returning one. The first call uses an empty token.
func AllCursor[T any](ctx context.Context, fetch func(ctx context.Context, token string) ([]T, string, error)) ([]T, error) {
	var items []T
	token := ""
	for {
		page, next, err := fetch(ctx, token)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if next == "" {
			return items, nil
		}
		token = next
	}
}
