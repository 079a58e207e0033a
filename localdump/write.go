package localdump

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const (
	frontMatterStart = "---json\n"
	frontMatterEnd   = "\n---"
)

// StoreStories fetches the stories matching filter and writes each one to
// <stories path>/<uuid>.md as a JSON front matter block.  Files already
// written stay put if a later one fails.  With pruning enabled, story files
// that weren't part of a successful, non-empty fetch are deleted afterwards.
func (d *Dumper) StoreStories(ctx context.Context, filter StoriesFilter) bool {
	stories, fetchErr := d.fetchStories(ctx, filter)
	if fetchErr != nil {
		d.Logger.Printf("Couldn't get stories: %v\n", fetchErr)
		stories = []TransformedStory{}
	}

	if err := os.MkdirAll(d.storiesPath, 0755); err != nil {
		d.Logger.Printf("Couldn't create directory %s: %v\n", d.storiesPath, err)
		return false
	}

	p, bar := d.progressBar("stories", len(stories))
	for _, story := range stories {
		if err := d.writeStory(story); err != nil {
			d.Logger.Println(err)
			if bar != nil {
				bar.Abort(false)
				p.Wait()
			}
			return false
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if p != nil {
		p.Wait()
	}

	d.Logger.Printf("%d stories saved in %s\n", len(stories), d.storiesPath)

	if d.prune && fetchErr == nil {
		if len(stories) == 0 {
			// an empty answer looks the same as a broken one
			d.Logger.Printf("No stories fetched, not pruning %s\n", d.storiesPath)
			return true
		}
		pruned, err := d.pruneStories(stories, filter)
		if err != nil {
			d.Logger.Println(err)
			return false
		}
		if pruned > 0 {
			d.Logger.Printf("%d stale stories pruned from %s\n", pruned, d.storiesPath)
		}
	}
	return true
}

func (d *Dumper) writeStory(story TransformedStory) error {
	body, err := marshalIndent(story)
	if err != nil {
		return fmt.Errorf("localdump: couldn't marshal story %s: %w", story.UUID(), err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterStart)
	buf.Write(body)
	buf.WriteString(frontMatterEnd)

	filename := d.storiesPath + story.UUID() + ".md"
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("localdump: couldn't write to file %s: %w", filename, err)
	}
	return nil
}

// StoreDatasources writes one datasource, or all of them when slug is empty,
// to <datasources path>/<slug or "datasources">.json.  Nothing is written if
// there is no data.
func (d *Dumper) StoreDatasources(ctx context.Context, slug string) bool {
	data := d.GetDatasources(ctx, slug)
	if data.Empty() {
		return false
	}

	if err := os.MkdirAll(d.datasourcesPath, 0755); err != nil {
		d.Logger.Printf("Couldn't create directory %s: %v\n", d.datasourcesPath, err)
		return false
	}

	filename := slug
	if filename == "" {
		filename = "datasources"
	}

	body, err := marshalIndent(data)
	if err != nil {
		d.Logger.Printf("Couldn't marshal datasources: %v\n", err)
		return false
	}

	path := d.datasourcesPath + filename + ".json"
	if err := os.WriteFile(path, body, 0644); err != nil {
		d.Logger.Printf("Couldn't write to file %s: %v\n", path, err)
		return false
	}

	d.Logger.Printf("Datasources saved in %s\n", d.datasourcesPath)
	return true
}

// marshalIndent prints JSON the way JSON.stringify(v, null, 4) does: four
// space indent and no HTML escaping.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// progressBar returns nil for an empty job: a bar that never completes would
// block Wait forever.
func (d *Dumper) progressBar(name string, total int) (*mpb.Progress, *mpb.Bar) {
	if d.progress == nil || total == 0 {
		return nil, nil
	}

	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(d.progress))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			// display our name with one space on the right
			decor.Name(fmt.Sprintf("%s:", name),
				decor.WC{C: decor.DindentRight | decor.DextraSpace}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d/%d) "),
			decor.NewPercentage("%d"),
		),
	)
	return p, bar
}
