package storyblok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// CollectOptions tune a Collect call.
type CollectOptions struct {
	Query url.Values

	// Zero means a single, unpaginated request.
	PerPage int

	// Maximum number of pages in flight after the first one; zero or less
	// means no limit.
	Concurrency int
}

// Collect fetches every record of entity from endpoint.  When paginating, the
// first page is fetched on its own to learn the total, then all remaining pages
// are requested at once.  Any failing page fails the whole collection.
func Collect[T any](ctx context.Context, api Getter, endpoint, entity string, opts CollectOptions) ([]T, error) {
	if opts.PerPage <= 0 {
		res, err := api.Get(ctx, endpoint, opts.Query)
		if err != nil {
			return nil, fmt.Errorf("storyblok: couldn't get %s: %w", endpoint, err)
		}
		return decodeEntity[T](res, entity)
	}

	firstPage, err := api.Get(ctx, endpoint, pageQuery(opts.Query, opts.PerPage, 1))
	if err != nil {
		return nil, fmt.Errorf("storyblok: couldn't get page 1 of %s: %w", endpoint, err)
	}
	if firstPage.Records == nil {
		return []T{}, nil
	}

	first, err := decodeEntity[T](firstPage, entity)
	if err != nil {
		return nil, err
	}

	totalPages := (firstPage.Total + opts.PerPage - 1) / opts.PerPage
	if totalPages < 2 {
		return first, nil
	}

	// pages[i] holds page i+2; every goroutine owns exactly one slot.
	pages := make([][]T, totalPages-1)

	var grp errgroup.Group
	if opts.Concurrency > 0 {
		grp.SetLimit(opts.Concurrency)
	}
	for page := 2; page <= totalPages; page++ {
		page := page
		grp.Go(func() error {
			res, err := api.Get(ctx, endpoint, pageQuery(opts.Query, opts.PerPage, page))
			if err != nil {
				return fmt.Errorf("storyblok: couldn't get page %d of %s: %w", page, endpoint, err)
			}
			records, err := decodeEntity[T](res, entity)
			if err != nil {
				return err
			}
			pages[page-2] = records
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	results := first
	for _, p := range pages {
		results = append(results, p...)
	}
	return results, nil
}

func pageQuery(q url.Values, perPage, page int) url.Values {
	v := url.Values{}
	for key, values := range q {
		v[key] = append([]string(nil), values...)
	}
	v.Set("per_page", strconv.Itoa(perPage))
	v.Set("page", strconv.Itoa(page))
	return v
}

// decodeEntity pulls entity out of a response.  The API answers list
// endpoints with arrays and single-item endpoints with an object; both come
// back as a slice.
func decodeEntity[T any](res *Response, entity string) ([]T, error) {
	raw, ok := res.Records[entity]
	raw = bytes.TrimSpace(raw)
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}

	if raw[0] == '[' {
		var records []T
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("storyblok: couldn't parse %s: %w", entity, err)
		}
		if records == nil {
			records = []T{}
		}
		return records, nil
	}

	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("storyblok: couldn't parse %s: %w", entity, err)
	}
	return []T{record}, nil
}
