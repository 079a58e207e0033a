package localdump

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toothbrush/storyblok-dump/storyblok"
)

// StoriesFilter narrows down GetStories.  Empty fields are not sent.
type StoriesFilter struct {
	Component        string `yaml:"component"`
	ResolveRelations string `yaml:"resolve-relations"`
	ResolveLinks     string `yaml:"resolve-links"`
	Language         string `yaml:"language"`
	FallbackLang     string `yaml:"fallback-lang"`
}

// TransformedStory is a story ready to be used as front matter: the story's
// own fields minus content, plus layout, tags, data and permalink.
type TransformedStory struct {
	storyblok.Object
}

func (t *TransformedStory) UUID() string      { return t.GetString("uuid") }
func (t *TransformedStory) Layout() string    { return t.GetString("layout") }
func (t *TransformedStory) Tags() string      { return t.GetString("tags") }
func (t *TransformedStory) Permalink() string { return t.GetString("permalink") }

func (t *TransformedStory) Data() json.RawMessage {
	raw, _ := t.Raw("data")
	return raw
}

// GetStories fetches every story matching filter and transforms it.  Failures
// are logged and result in an empty list.
func (d *Dumper) GetStories(ctx context.Context, filter StoriesFilter) []TransformedStory {
	stories, err := d.fetchStories(ctx, filter)
	if err != nil {
		d.Logger.Printf("Couldn't get stories: %v\n", err)
		return []TransformedStory{}
	}
	return stories
}

func (d *Dumper) fetchStories(ctx context.Context, filter StoriesFilter) ([]TransformedStory, error) {
	params, err := storyblok.Values(storyblok.StoriesQuery{
		Version:          d.version,
		PerPage:          perPage,
		Component:        filter.Component,
		ResolveRelations: filter.ResolveRelations,
		ResolveLinks:     filter.ResolveLinks,
		Language:         filter.Language,
		FallbackLang:     filter.FallbackLang,
	})
	if err != nil {
		return nil, fmt.Errorf("localdump: couldn't build stories query: %w", err)
	}

	stories, err := storyblok.Collect[storyblok.Story](ctx, d.API, "stories", "stories", storyblok.CollectOptions{
		Query:       params,
		PerPage:     perPage,
		Concurrency: d.concurrency,
	})
	if err != nil {
		return nil, err
	}

	transformed := make([]TransformedStory, 0, len(stories))
	for _, story := range stories {
		transformed = append(transformed, d.Transform(story))
	}
	return transformed, nil
}

// Transform reshapes a story for the site generator.  The story's component
// picks the layout (unless remapped) and becomes the tag; the content moves to
// data.
func (d *Dumper) Transform(story storyblok.Story) TransformedStory {
	layoutBase := strings.Trim(d.layoutsPath, "/") + "/"

	component := story.Component()
	layout := component
	if mapped := d.componentsLayoutsMap[component]; mapped != "" {
		layout = mapped
	}

	// editors can override the path; otherwise the slug is the permalink
	permalink := story.Path()
	if permalink == "" {
		permalink = story.FullSlug()
	}
	permalink = strings.Trim(permalink, "/") + "/"

	t := TransformedStory{Object: story.Clone()}
	t.Delete("content")
	t.Set("layout", jsonString(layoutBase+layout))
	t.Set("tags", jsonString(component))
	t.Set("data", story.Content())
	t.Set("permalink", jsonString(permalink))

	return t
}

func jsonString(s string) json.RawMessage {
	raw, _ := marshalIndent(s)
	return raw
}
