package storyblok

import "encoding/json"

// Story is a content entry as delivered by the API.  Only the fields we need
// get accessors; everything else stays opaque.
//
// See https://www.storyblok.com/docs/api/content-delivery/v2/stories/the-story-object
type Story struct {
	Object
}

func (s *Story) UUID() string     { return s.GetString("uuid") }
func (s *Story) FullSlug() string { return s.GetString("full_slug") }

// Path is the "real path" override editors can set; often null.
func (s *Story) Path() string { return s.GetString("path") }

// Content returns the raw content object, nil if the story has none.
func (s *Story) Content() json.RawMessage {
	raw, _ := s.Raw("content")
	return raw
}

// Component names the content type of the story, "" if it can't be found.
func (s *Story) Component() string {
	var c struct {
		Component string `json:"component"`
	}
	if err := json.Unmarshal(s.Content(), &c); err != nil {
		return ""
	}
	return c.Component
}

// See https://www.storyblok.com/docs/api/content-delivery/v2/datasources/the-datasource-object
type Datasource struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Slug       string      `json:"slug"`
	Dimensions []Dimension `json:"dimensions,omitempty"`
}

type Dimension struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	EntryValue string `json:"entry_value"`
}

// See https://www.storyblok.com/docs/api/content-delivery/v2/datasources/the-datasource-entry-object
type DatasourceEntry struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	DimensionValue *string `json:"dimension_value"`
}
