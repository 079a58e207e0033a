package localdump

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// readStoryFile parses a story file written by StoreStories.
func readStoryFile(path string) (TransformedStory, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return TransformedStory{}, fmt.Errorf("localdump: couldn't read file %s: %w", path, err)
	}

	body, ok := bytes.CutPrefix(source, []byte(frontMatterStart))
	if !ok {
		return TransformedStory{}, fmt.Errorf("localdump: %s doesn't start with a JSON front matter block", path)
	}
	body, ok = bytes.CutSuffix(body, []byte(frontMatterEnd))
	if !ok {
		return TransformedStory{}, fmt.Errorf("localdump: front matter of %s isn't terminated", path)
	}

	var story TransformedStory
	if err := json.Unmarshal(body, &story); err != nil {
		return TransformedStory{}, fmt.Errorf("localdump: couldn't parse front matter of %s: %w", path, err)
	}
	if story.UUID() == "" {
		return TransformedStory{}, fmt.Errorf("localdump: %s has no uuid", path)
	}
	return story, nil
}

// pruneStories deletes story files that weren't part of the latest dump.  Only
// files we wrote ourselves are considered, and with a component filter only
// stories of those components.
func (d *Dumper) pruneStories(fresh []TransformedStory, filter StoriesFilter) (int, error) {
	entries, err := os.ReadDir(d.storiesPath)
	if errors.Is(err, os.ErrNotExist) {
		// first run
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("localdump: couldn't list %s: %w", d.storiesPath, err)
	}

	keep := make(map[string]bool, len(fresh))
	for _, story := range fresh {
		keep[story.UUID()] = true
	}

	components := map[string]bool{}
	for _, c := range strings.Split(filter.Component, ",") {
		if c = strings.TrimSpace(c); c != "" {
			components[c] = true
		}
	}

	pruned := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		if keep[strings.TrimSuffix(entry.Name(), ".md")] {
			// file is fresh, skip!
			continue
		}

		file := d.storiesPath + entry.Name()
		story, err := readStoryFile(file)
		if err != nil {
			d.Logger.Printf("Not pruning %s: %v\n", entry.Name(), err)
			continue
		}
		if len(components) > 0 && !components[story.Tags()] {
			continue
		}

		// if we're here, it's a stale story.
		d.Logger.Printf("Pruning: %s\n", entry.Name())
		if err := os.Remove(file); err != nil {
			return pruned, fmt.Errorf("localdump: failed to delete %s: %w", file, err)
		}
		pruned++
	}

	return pruned, nil
}
