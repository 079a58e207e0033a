package localdump

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/toothbrush/storyblok-dump/storyblok"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// DatasourceEntries are the entries of one datasource, across dimensions.
//
// nil means the datasource itself couldn't be resolved and encodes as {}; an
// empty, non-nil list encodes as [].  Site templates written against the JS
// importer only check for emptiness, so both shapes must be kept.
type DatasourceEntries []storyblok.DatasourceEntry

func (e DatasourceEntries) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal([]storyblok.DatasourceEntry(e))
}

// Datasources is what GetDatasources resolves to: either one datasource or
// every datasource of the space keyed by slug.
type Datasources struct {
	Slug    string
	Entries DatasourceEntries
	All     map[string]DatasourceEntries
}

func (ds Datasources) Empty() bool {
	if ds.Slug != "" {
		return len(ds.Entries) == 0
	}
	return len(ds.All) == 0
}

func (ds Datasources) MarshalJSON() ([]byte, error) {
	if ds.Slug != "" {
		return json.Marshal(ds.Entries)
	}
	if ds.All == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(ds.All)
}

// GetDatasources resolves one datasource, or all of them if slug is empty.
func (d *Dumper) GetDatasources(ctx context.Context, slug string) Datasources {
	if slug != "" {
		return Datasources{Slug: slug, Entries: d.GetDatasource(ctx, slug)}
	}
	return Datasources{All: d.GetAllDatasources(ctx)}
}

// GetAllDatasources lists the datasources of the space and resolves each of
// them.  A datasource that can't be resolved maps to nil.
func (d *Dumper) GetAllDatasources(ctx context.Context) map[string]DatasourceEntries {
	index, err := storyblok.Collect[storyblok.Datasource](ctx, d.API, "datasources", "datasources", storyblok.CollectOptions{
		PerPage:     perPage,
		Concurrency: d.concurrency,
	})
	if err != nil {
		d.Logger.Printf("Couldn't list datasources: %v\n", err)
		return map[string]DatasourceEntries{}
	}

	resolved := make([]DatasourceEntries, len(index))
	grp := d.fanOut()
	for i, ds := range index {
		i, slug := i, ds.Slug
		grp.Go(func() error {
			resolved[i] = d.GetDatasource(ctx, slug)
			return nil
		})
	}
	_ = grp.Wait()

	all := make(map[string]DatasourceEntries, len(index))
	for i, ds := range index {
		all[ds.Slug] = resolved[i]
	}

	slugs := maps.Keys(all)
	sort.Strings(slugs)
	d.Logger.Printf("Resolved %d datasources: %v\n", len(slugs), slugs)

	return all
}

// GetDatasource fetches the entries of every dimension of a datasource,
// starting with the default one.  A dimension that fails contributes nothing.
func (d *Dumper) GetDatasource(ctx context.Context, slug string) DatasourceEntries {
	info, err := storyblok.Collect[storyblok.Datasource](ctx, d.API, "datasources/"+slug, "datasource", storyblok.CollectOptions{})
	var fe *storyblok.FetchError
	if errors.As(err, &fe) && fe.NotFound() {
		d.Logger.Printf("Datasource with slug %q not found\n", slug)
		return nil
	}
	if err != nil {
		d.Logger.Printf("Couldn't get datasource %q: %v\n", slug, err)
		return nil
	}
	if len(info) == 0 {
		d.Logger.Printf("Datasource with slug %q not found\n", slug)
		return nil
	}

	dimensions := []string{""}
	for _, dim := range info[0].Dimensions {
		dimensions = append(dimensions, dim.EntryValue)
	}

	perDimension := make([]DatasourceEntries, len(dimensions))
	grp := d.fanOut()
	for i, dimension := range dimensions {
		i, dimension := i, dimension
		grp.Go(func() error {
			perDimension[i] = d.GetDatasourceDimension(ctx, slug, dimension)
			return nil
		})
	}
	_ = grp.Wait()

	entries := DatasourceEntries{}
	for _, e := range perDimension {
		entries = append(entries, e...)
	}
	return entries
}

// GetDatasourceDimension fetches the entries of one dimension; "" is the
// default dimension.  Failures come back as an empty list.
func (d *Dumper) GetDatasourceDimension(ctx context.Context, slug, dimension string) DatasourceEntries {
	params, err := storyblok.Values(storyblok.DatasourceEntriesQuery{
		Datasource: slug,
		Dimension:  dimension,
		PerPage:    perPage,
	})
	if err != nil {
		d.Logger.Printf("Couldn't build datasource entries query: %v\n", err)
		return DatasourceEntries{}
	}

	entries, err := storyblok.Collect[storyblok.DatasourceEntry](ctx, d.API, "datasource_entries", "datasource_entries", storyblok.CollectOptions{
		Query:       params,
		PerPage:     perPage,
		Concurrency: d.concurrency,
	})
	if err != nil {
		return DatasourceEntries{}
	}
	return entries
}

// fanOut returns a group honouring the configured concurrency cap.  Siblings
// are never cancelled: every member runs to completion.
func (d *Dumper) fanOut() *errgroup.Group {
	grp := &errgroup.Group{}
	if d.concurrency > 0 {
		grp.SetLimit(d.concurrency)
	}
	return grp
}
