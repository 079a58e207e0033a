/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toothbrush/storyblok-dump/localdump"
)

var storiesUsage = strings.TrimSpace(`
Fetch every story of the space (optionally only those of some components) and save each one as
<stories-path>/<uuid>.md, a JSON front matter block with the story's layout, tags, data and
permalink.
`)

var (
	storiesFilter localdump.StoriesFilter
	Prune         bool
)

var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "Save stories as front matter files",
	Long:  storiesUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		dumper, stop, err := newDumper(Prune)
		if err != nil {
			return err
		}
		defer stop()

		debugLog("  Filter: %+v\n", storiesFilter)
		if !dumper.StoreStories(cmd.Context(), storiesFilter) {
			return fmt.Errorf("stories: couldn't save stories in %s", dumper.StoriesPath())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storiesCmd)

	storiesCmd.Flags().StringVar(&storiesFilter.Component, "component", "", "only stories of these components, comma separated")
	storiesCmd.Flags().StringVar(&storiesFilter.ResolveRelations, "resolve-relations", "", "relations to resolve, e.g. article.author")
	storiesCmd.Flags().StringVar(&storiesFilter.ResolveLinks, "resolve-links", "", "resolve links: story, url or link")
	storiesCmd.Flags().StringVar(&storiesFilter.Language, "language", "", "language of the content")
	storiesCmd.Flags().StringVar(&storiesFilter.FallbackLang, "fallback-lang", "", "language to use for untranslated fields")
	storiesCmd.Flags().BoolVar(&Prune, "prune", false, "delete saved stories that no longer exist in the space")
}
