package storyblok

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

// All content delivery endpoints live under this prefix.
const cdnPrefix = "cdn/"

// StoriesQuery defines the query parameters for:
// https://www.storyblok.com/docs/api/content-delivery/v2/stories/retrieve-multiple-stories
type StoriesQuery struct {
	Version string `url:"version,omitempty"` // draft or published
	PerPage int    `url:"per_page,omitempty"`
	Page    int    `url:"page,omitempty"`

	Component        string `url:"filter_query[component][in],omitempty"` // comma separated component names
	ResolveRelations string `url:"resolve_relations,omitempty"`           // e.g. article.author,article.categories
	ResolveLinks     string `url:"resolve_links,omitempty"`               // story, url or link
	Language         string `url:"language,omitempty"`
	FallbackLang     string `url:"fallback_lang,omitempty"`
}

// DatasourceEntriesQuery defines the query parameters for:
// https://www.storyblok.com/docs/api/content-delivery/v2/datasources/retrieve-multiple-datasource-entries
//
// Dimension is always sent, even when empty: the empty dimension selects the
// default values of the datasource.
type DatasourceEntriesQuery struct {
	Datasource string `url:"datasource"`
	Dimension  string `url:"dimension"`
	PerPage    int    `url:"per_page,omitempty"`
	Page       int    `url:"page,omitempty"`
}

// DatasourcesQuery defines the query parameters for:
// https://www.storyblok.com/docs/api/content-delivery/v2/datasources/retrieve-multiple-datasources
type DatasourcesQuery struct {
	PerPage int `url:"per_page,omitempty"`
	Page    int `url:"page,omitempty"`
}

// Values encodes one of the query structs above into request parameters.
func Values(opts any) (url.Values, error) {
	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("storyblok: couldn't encode query params: %w", err)
	}
	return v, nil
}

// resolveEndpoint returns the content delivery URL for an endpoint like
// "stories" or "datasources/colours", with the token and params attached.
func (a *API) resolveEndpoint(endpoint string, params url.Values) (*url.URL, error) {
	ref, err := url.Parse(cdnPrefix + strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("storyblok: failed to parse endpoint ref: %w", err)
	}

	ep := a.BaseURI.ResolveReference(ref)

	v := url.Values{}
	for key, values := range params {
		v[key] = append([]string(nil), values...)
	}
	v.Set("token", a.token)
	ep.RawQuery = v.Encode()

	return ep, nil
}
