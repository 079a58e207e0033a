/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
)

var listDatasourcesUsage = strings.TrimSpace(`
If you want to find out what datasources your space has, use this command.  Entries are counted
across all dimensions.
`)

var listDatasourcesCmd = &cobra.Command{
	Use:   "datasources",
	Short: "Print list of datasources",
	Long:  listDatasourcesUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		dumper, stop, err := newDumper(false)
		if err != nil {
			return err
		}
		defer stop()

		all := dumper.GetAllDatasources(ctx)

		slugs := maps.Keys(all)
		sort.Strings(slugs)

		fmt.Printf("datasources:\n")
		for _, slug := range slugs {
			if entries := all[slug]; entries == nil {
				fmt.Printf("  - %s: not found\n", slug)
			} else {
				fmt.Printf("  - %s: %d entries\n", slug, len(entries))
			}
		}

		return nil
	},
}

func init() {
	listCmd.AddCommand(listDatasourcesCmd)
}
