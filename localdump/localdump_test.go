package localdump

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/toothbrush/storyblok-dump/storyblok"
)

// fakeSpace answers requests from canned JSON bodies keyed by endpoint, and
// for datasource_entries by "datasource_entries?<datasource>/<dimension>".
type fakeSpace struct {
	bodies map[string]string
	total  map[string]int
	fail   map[string]bool

	mu       sync.Mutex
	requests []string
	queries  []url.Values
}

func (f *fakeSpace) Get(ctx context.Context, endpoint string, params url.Values) (*storyblok.Response, error) {
	key := endpoint
	if endpoint == "datasource_entries" {
		key += "?" + params.Get("datasource") + "/" + params.Get("dimension")
	}

	f.mu.Lock()
	f.requests = append(f.requests, key)
	f.queries = append(f.queries, params)
	f.mu.Unlock()

	if f.fail[key] {
		return nil, &storyblok.FetchError{StatusCode: 500, Status: "500 Internal Server Error"}
	}
	body, ok := f.bodies[key]
	if !ok {
		return nil, &storyblok.FetchError{StatusCode: 404, Status: "404 Not Found"}
	}
	if page := params.Get("page"); page != "" && page != "1" {
		body = f.bodies[key+"#"+page]
	}

	res := &storyblok.Response{Total: f.total[key]}
	if err := json.Unmarshal([]byte(body), &res.Records); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeSpace) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r == key {
			n++
		}
	}
	return n
}

func newTestDumper(t *testing.T, api storyblok.Getter) (*Dumper, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	logs := &bytes.Buffer{}
	return &Dumper{
		API:                  api,
		Logger:               log.New(logs, "", 0),
		version:              VersionDraft,
		layoutsPath:          "layouts",
		storiesPath:          cleanPath(dir, "storyblok"),
		datasourcesPath:      cleanPath(dir, "_data"),
		componentsLayoutsMap: map[string]string{},
	}, logs
}

func TestCleanPath(t *testing.T) {
	for in, want := range map[string]string{
		"":              "/wd/",
		"/":             "/wd/",
		"storyblok":     "/wd/storyblok/",
		"/storyblok/":   "/wd/storyblok/",
		"//a/b//":       "/wd/a/b/",
		"site/_data":    "/wd/site/_data/",
		"/site/_data//": "/wd/site/_data/",
	} {
		if got := cleanPath("/wd", in); got != want {
			t.Errorf("cleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(Config{Token: "secret", Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.version != VersionDraft {
		t.Errorf("version = %q, want draft", d.version)
	}
	if d.StoriesPath() != wd+"/storyblok/" {
		t.Errorf("stories path = %q", d.StoriesPath())
	}
	if d.DatasourcesPath() != wd+"/_data/" {
		t.Errorf("datasources path = %q", d.DatasourcesPath())
	}

	if _, err := New(Config{Token: "secret", Version: "preview"}); err == nil {
		t.Error("expected an error for an unknown version")
	}
	if _, err := New(Config{Token: "secret", ClientConfig: storyblok.ClientConfig{Region: "mars"}}); err == nil {
		t.Error("expected an error for an unknown region")
	}
}

func TestNewWithoutTokenFailsOnFirstFetch(t *testing.T) {
	d, err := New(Config{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := d.GetStories(context.Background(), StoriesFilter{}); len(got) != 0 {
		t.Fatalf("expected no stories, got %d", len(got))
	}
}

func mustStory(t *testing.T, raw string) storyblok.Story {
	t.Helper()
	var s storyblok.Story
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal story: %v", err)
	}
	return s
}

func TestTransform(t *testing.T) {
	d, _ := newTestDumper(t, &fakeSpace{})
	d.layoutsPath = "/layouts/"
	d.componentsLayoutsMap = map[string]string{"news": "article"}

	cases := []struct {
		name          string
		story         string
		wantLayout    string
		wantTags      string
		wantPermalink string
	}{
		{
			name:          "full slug",
			story:         `{"uuid":"u1","full_slug":"blog/hello","content":{"component":"page","title":"Hi"}}`,
			wantLayout:    "layouts/page",
			wantTags:      "page",
			wantPermalink: "blog/hello/",
		},
		{
			name:          "path overrides slug",
			story:         `{"uuid":"u2","full_slug":"home","path":"/","content":{"component":"page"}}`,
			wantLayout:    "layouts/page",
			wantTags:      "page",
			wantPermalink: "/",
		},
		{
			name:          "leading slash path",
			story:         `{"uuid":"u3","full_slug":"x","path":"/x","content":{"component":"page"}}`,
			wantLayout:    "layouts/page",
			wantTags:      "page",
			wantPermalink: "x/",
		},
		{
			name:          "remapped layout",
			story:         `{"uuid":"u4","full_slug":"news/a","path":"","content":{"component":"news"}}`,
			wantLayout:    "layouts/article",
			wantTags:      "news",
			wantPermalink: "news/a/",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			story := mustStory(t, tc.story)
			got := d.Transform(story)

			if got.Layout() != tc.wantLayout {
				t.Errorf("layout = %q, want %q", got.Layout(), tc.wantLayout)
			}
			if got.Tags() != tc.wantTags {
				t.Errorf("tags = %q, want %q", got.Tags(), tc.wantTags)
			}
			if got.Permalink() != tc.wantPermalink {
				t.Errorf("permalink = %q, want %q", got.Permalink(), tc.wantPermalink)
			}
			if got.Has("content") {
				t.Error("content should have been moved to data")
			}
			if string(got.Data()) != string(story.Content()) {
				t.Errorf("data = %s, want %s", got.Data(), story.Content())
			}
			if !story.Has("content") {
				t.Error("input story was modified")
			}
		})
	}
}

func TestTransformEmptyLayoutsPath(t *testing.T) {
	d, _ := newTestDumper(t, &fakeSpace{})
	d.layoutsPath = ""
	got := d.Transform(mustStory(t, `{"uuid":"u","full_slug":"a","content":{"component":"page"}}`))
	if got.Layout() != "/page" {
		t.Errorf("layout = %q, want /page", got.Layout())
	}
}

func TestGetStoriesSendsFilter(t *testing.T) {
	api := &fakeSpace{
		bodies: map[string]string{"stories": `{"stories":[{"uuid":"a","full_slug":"a","content":{"component":"page"}}]}`},
		total:  map[string]int{"stories": 1},
	}
	d, _ := newTestDumper(t, api)
	d.version = VersionPublished

	stories := d.GetStories(context.Background(), StoriesFilter{
		Component:        "page",
		ResolveRelations: "page.author",
		Language:         "de",
	})
	if len(stories) != 1 || stories[0].UUID() != "a" {
		t.Fatalf("unexpected stories: %+v", stories)
	}

	q := api.queries[0]
	for key, want := range map[string]string{
		"version":                     "published",
		"per_page":                    "100",
		"page":                        "1",
		"filter_query[component][in]": "page",
		"resolve_relations":           "page.author",
		"language":                    "de",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	for _, key := range []string{"resolve_links", "fallback_lang"} {
		if q.Has(key) {
			t.Errorf("%s should not be sent when empty", key)
		}
	}
}

func TestGetStoriesFailureIsEmpty(t *testing.T) {
	api := &fakeSpace{fail: map[string]bool{"stories": true}}
	d, logs := newTestDumper(t, api)

	stories := d.GetStories(context.Background(), StoriesFilter{})
	if stories == nil || len(stories) != 0 {
		t.Fatalf("expected an empty, non-nil list, got %#v", stories)
	}
	if !strings.Contains(logs.String(), "Couldn't get stories") {
		t.Errorf("failure wasn't logged: %q", logs.String())
	}
}

func TestGetStoriesPaginates(t *testing.T) {
	first := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		first = append(first, `{"uuid":"p1-`+strconv.Itoa(i)+`","content":{"component":"page"}}`)
	}
	api := &fakeSpace{
		bodies: map[string]string{
			"stories":   `{"stories":[` + strings.Join(first, ",") + `]}`,
			"stories#2": `{"stories":[{"uuid":"p2-0","content":{"component":"page"}}]}`,
		},
		total: map[string]int{"stories": 101},
	}
	d, _ := newTestDumper(t, api)

	stories := d.GetStories(context.Background(), StoriesFilter{})
	if len(stories) != 101 {
		t.Fatalf("expected 101 stories, got %d", len(stories))
	}
	if stories[100].UUID() != "p2-0" {
		t.Errorf("last story = %q", stories[100].UUID())
	}
}

func datasourceSpace() *fakeSpace {
	return &fakeSpace{
		bodies: map[string]string{
			"datasources/colors":    `{"datasource":{"id":1,"name":"Colors","slug":"colors","dimensions":[{"id":7,"name":"German","entry_value":"de"},{"id":8,"name":"French","entry_value":"fr"}]}}`,
			"datasource_entries?colors/":   `{"datasource_entries":[{"id":1,"name":"red","value":"#f00","dimension_value":null}]}`,
			"datasource_entries?colors/de": `{"datasource_entries":[{"id":1,"name":"red","value":"#f00","dimension_value":"rot"}]}`,
			"datasource_entries?colors/fr": `{"datasource_entries":[{"id":1,"name":"red","value":"#f00","dimension_value":"rouge"}]}`,
			"datasources/empty":     `{"datasource":{"id":2,"name":"Empty","slug":"empty","dimensions":[]}}`,
			"datasources":           `{"datasources":[{"id":1,"slug":"colors"},{"id":2,"slug":"empty"},{"id":3,"slug":"gone"}]}`,
		},
		total: map[string]int{
			"datasource_entries?colors/":   1,
			"datasource_entries?colors/de": 1,
			"datasource_entries?colors/fr": 1,
			"datasources":           3,
		},
	}
}

func TestGetDatasourceFansOutOverDimensions(t *testing.T) {
	api := datasourceSpace()
	d, _ := newTestDumper(t, api)

	entries := d.GetDatasource(context.Background(), "colors")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for _, dim := range []string{"", "de", "fr"} {
		if n := api.count("datasource_entries?colors/" + dim); n != 1 {
			t.Errorf("dimension %q fetched %d times", dim, n)
		}
	}

	got := map[string]bool{}
	for _, e := range entries {
		if e.DimensionValue == nil {
			got[""] = true
		} else {
			got[*e.DimensionValue] = true
		}
	}
	for _, want := range []string{"", "rot", "rouge"} {
		if !got[want] {
			t.Errorf("missing entry for dimension value %q", want)
		}
	}
	// the default dimension comes first
	if entries[0].DimensionValue != nil {
		t.Errorf("first entry should be the default dimension, got %v", *entries[0].DimensionValue)
	}
}

func TestGetDatasourceSkipsFailingDimension(t *testing.T) {
	api := datasourceSpace()
	api.fail = map[string]bool{"datasource_entries?colors/de": true}
	d, _ := newTestDumper(t, api)

	entries := d.GetDatasource(context.Background(), "colors")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestGetDatasourceNotFound(t *testing.T) {
	d, logs := newTestDumper(t, datasourceSpace())

	entries := d.GetDatasource(context.Background(), "nope")
	if entries != nil {
		t.Fatalf("expected nil, got %#v", entries)
	}
	b, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("missing datasource encodes as %s, want {}", b)
	}
	if !strings.Contains(logs.String(), "nope") {
		t.Errorf("expected the slug in the log, got %q", logs.String())
	}
}

func TestGetAllDatasources(t *testing.T) {
	d, _ := newTestDumper(t, datasourceSpace())

	all := d.GetAllDatasources(context.Background())
	if len(all) != 3 {
		t.Fatalf("expected 3 datasources, got %d", len(all))
	}

	b, err := json.Marshal(all)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if got := string(decoded["empty"]); got != "[]" {
		t.Errorf("empty datasource = %s, want []", got)
	}
	if got := string(decoded["gone"]); got != "{}" {
		t.Errorf("unresolvable datasource = %s, want {}", got)
	}
	var colors []storyblok.DatasourceEntry
	if err := json.Unmarshal(decoded["colors"], &colors); err != nil || len(colors) != 3 {
		t.Errorf("colors = %s (%v)", decoded["colors"], err)
	}
}

func TestGetAllDatasourcesFailure(t *testing.T) {
	api := datasourceSpace()
	api.fail = map[string]bool{"datasources": true}
	d, _ := newTestDumper(t, api)

	all := d.GetAllDatasources(context.Background())
	if all == nil || len(all) != 0 {
		t.Fatalf("expected an empty map, got %#v", all)
	}
}

func TestFanOutHonoursConcurrency(t *testing.T) {
	api := datasourceSpace()
	d, _ := newTestDumper(t, api)
	d.concurrency = 1

	if entries := d.GetDatasource(context.Background(), "colors"); len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestStoreStoriesWritesFrontMatter(t *testing.T) {
	api := &fakeSpace{
		bodies: map[string]string{"stories": `{"stories":[{"name":"Home & away","uuid":"abc","full_slug":"home","content":{"component":"page","body":"<p>hi</p>"}}]}`},
		total:  map[string]int{"stories": 1},
	}
	d, logs := newTestDumper(t, api)

	if !d.StoreStories(context.Background(), StoriesFilter{}) {
		t.Fatalf("StoreStories failed: %s", logs.String())
	}

	got, err := os.ReadFile(filepath.Join(d.storiesPath, "abc.md"))
	if err != nil {
		t.Fatal(err)
	}
	want := `---json
{
    "name": "Home & away",
    "uuid": "abc",
    "full_slug": "home",
    "layout": "layouts/page",
    "tags": "page",
    "data": {
        "component": "page",
        "body": "<p>hi</p>"
    },
    "permalink": "home/"
}
---`
	if string(got) != want {
		t.Errorf("unexpected file contents:\n%s\nwant:\n%s", got, want)
	}
	if !strings.Contains(logs.String(), "1 stories saved in "+d.storiesPath) {
		t.Errorf("unexpected log: %q", logs.String())
	}
}

func TestStoreStoriesWithProgress(t *testing.T) {
	api := &fakeSpace{
		bodies: map[string]string{"stories": `{"stories":[{"uuid":"a","content":{"component":"page"}},{"uuid":"b","content":{"component":"page"}}]}`},
		total:  map[string]int{"stories": 2},
	}
	d, _ := newTestDumper(t, api)
	d.progress = io.Discard

	if !d.StoreStories(context.Background(), StoriesFilter{}) {
		t.Fatal("StoreStories failed")
	}
	for _, name := range []string{"a.md", "b.md"} {
		if _, err := os.Stat(filepath.Join(d.storiesPath, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestStoreStoriesWithProgressAndNothingFound(t *testing.T) {
	for name, api := range map[string]*fakeSpace{
		"failing": {fail: map[string]bool{"stories": true}},
		"empty":   {bodies: map[string]string{"stories": `{"stories":[]}`}},
	} {
		d, logs := newTestDumper(t, api)
		d.progress = io.Discard

		done := make(chan bool, 1)
		go func() { done <- d.StoreStories(context.Background(), StoriesFilter{}) }()

		select {
		case ok := <-done:
			if !ok {
				t.Errorf("%s: StoreStories failed", name)
			}
			if !strings.Contains(logs.String(), "0 stories saved") {
				t.Errorf("%s: unexpected log: %q", name, logs.String())
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s: StoreStories didn't return", name)
		}
	}
}

func TestStoreStoriesNothingFound(t *testing.T) {
	api := &fakeSpace{fail: map[string]bool{"stories": true}}
	d, logs := newTestDumper(t, api)

	// an empty result is still a successful, empty dump
	if !d.StoreStories(context.Background(), StoriesFilter{}) {
		t.Fatal("StoreStories failed")
	}
	if !strings.Contains(logs.String(), "0 stories saved") {
		t.Errorf("unexpected log: %q", logs.String())
	}
}

func TestStoreStoriesUnwritableFolder(t *testing.T) {
	api := &fakeSpace{
		bodies: map[string]string{"stories": `{"stories":[{"uuid":"a","content":{"component":"page"}}]}`},
		total:  map[string]int{"stories": 1},
	}
	d, _ := newTestDumper(t, api)

	// a regular file where the folder should be
	blocker := strings.TrimSuffix(d.storiesPath, "/")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if d.StoreStories(context.Background(), StoriesFilter{}) {
		t.Fatal("expected StoreStories to fail")
	}
}

func TestStoreDatasource(t *testing.T) {
	d, _ := newTestDumper(t, datasourceSpace())

	if !d.StoreDatasources(context.Background(), "colors") {
		t.Fatal("StoreDatasources failed")
	}
	got, err := os.ReadFile(filepath.Join(d.datasourcesPath, "colors.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(got, []byte("[\n    {\n        \"id\": 1,")) {
		t.Errorf("unexpected formatting:\n%s", got)
	}
	var entries []storyblok.DatasourceEntry
	if err := json.Unmarshal(got, &entries); err != nil || len(entries) != 3 {
		t.Errorf("file holds %d entries (%v)", len(entries), err)
	}
}

func TestStoreAllDatasources(t *testing.T) {
	d, logs := newTestDumper(t, datasourceSpace())

	if !d.StoreDatasources(context.Background(), "") {
		t.Fatal("StoreDatasources failed")
	}
	got, err := os.ReadFile(filepath.Join(d.datasourcesPath, "datasources.json"))
	if err != nil {
		t.Fatal(err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(got, &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 datasources, got %d", len(all))
	}
	if !strings.Contains(logs.String(), "Datasources saved in "+d.datasourcesPath) {
		t.Errorf("unexpected log: %q", logs.String())
	}
}

func TestStoreDatasourcesSkipsEmpty(t *testing.T) {
	d, _ := newTestDumper(t, datasourceSpace())

	for _, slug := range []string{"nope", "empty"} {
		if d.StoreDatasources(context.Background(), slug) {
			t.Errorf("%s: expected nothing to be stored", slug)
		}
	}

	api := datasourceSpace()
	api.fail = map[string]bool{"datasources": true}
	d.API = api
	if d.StoreDatasources(context.Background(), "") {
		t.Error("expected nothing to be stored when listing fails")
	}

	if _, err := os.Stat(d.datasourcesPath); !os.IsNotExist(err) {
		t.Errorf("datasources folder shouldn't exist, stat: %v", err)
	}
}

func writeStoryFile(t *testing.T, d *Dumper, uuid, component string) string {
	t.Helper()
	if err := os.MkdirAll(d.storiesPath, 0755); err != nil {
		t.Fatal(err)
	}
	story := d.Transform(mustStory(t, `{"uuid":"`+uuid+`","full_slug":"`+uuid+`","content":{"component":"`+component+`"}}`))
	if err := d.writeStory(story); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(d.storiesPath, uuid+".md")
}

func TestReadStoryFile(t *testing.T) {
	d, _ := newTestDumper(t, &fakeSpace{})
	file := writeStoryFile(t, d, "abc", "news")

	story, err := readStoryFile(file)
	if err != nil {
		t.Fatalf("readStoryFile: %v", err)
	}
	if story.UUID() != "abc" || story.Tags() != "news" || story.Permalink() != "abc/" {
		t.Errorf("unexpected story: %s %s %s", story.UUID(), story.Tags(), story.Permalink())
	}

	notOurs := filepath.Join(d.storiesPath, "README.md")
	if err := os.WriteFile(notOurs, []byte("# hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readStoryFile(notOurs); err == nil {
		t.Error("expected an error for a file we didn't write")
	}
}

func TestStoreStoriesPrunes(t *testing.T) {
	api := &fakeSpace{
		bodies: map[string]string{"stories": `{"stories":[{"uuid":"fresh","content":{"component":"page"}}]}`},
		total:  map[string]int{"stories": 1},
	}
	d, logs := newTestDumper(t, api)
	d.prune = true

	stale := writeStoryFile(t, d, "stale", "page")
	otherComponent := writeStoryFile(t, d, "other", "news")
	readme := filepath.Join(d.storiesPath, "README.md")
	if err := os.WriteFile(readme, []byte("# hello"), 0644); err != nil {
		t.Fatal(err)
	}

	if !d.StoreStories(context.Background(), StoriesFilter{Component: "page"}) {
		t.Fatalf("StoreStories failed: %s", logs.String())
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale story should be gone, stat: %v", err)
	}
	for _, keep := range []string{otherComponent, readme, filepath.Join(d.storiesPath, "fresh.md")} {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("%s should have been kept: %v", filepath.Base(keep), err)
		}
	}
	if !strings.Contains(logs.String(), "1 stale stories pruned") {
		t.Errorf("unexpected log: %q", logs.String())
	}
}

func TestStoreStoriesDoesNotPruneAfterFailedFetch(t *testing.T) {
	api := &fakeSpace{fail: map[string]bool{"stories": true}}
	d, _ := newTestDumper(t, api)
	d.prune = true

	existing := writeStoryFile(t, d, "existing", "page")
	d.StoreStories(context.Background(), StoriesFilter{})

	if _, err := os.Stat(existing); err != nil {
		t.Errorf("nothing should be pruned when fetching failed: %v", err)
	}
}

func TestStoreStoriesDoesNotPruneWithoutData(t *testing.T) {
	api := &fakeSpace{bodies: map[string]string{"stories": "null"}}
	d, logs := newTestDumper(t, api)
	d.prune = true

	existing := writeStoryFile(t, d, "existing", "page")
	if !d.StoreStories(context.Background(), StoriesFilter{}) {
		t.Fatalf("StoreStories failed: %s", logs.String())
	}

	if _, err := os.Stat(existing); err != nil {
		t.Errorf("nothing should be pruned when the API sent no stories: %v", err)
	}
	if !strings.Contains(logs.String(), "not pruning") {
		t.Errorf("unexpected log: %q", logs.String())
	}
}
