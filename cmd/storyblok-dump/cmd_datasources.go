/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var datasourcesUsage = strings.TrimSpace(`
Fetch a datasource, across all of its dimensions, and save it as <datasources-path>/<slug>.json.
Without a slug every datasource of the space is saved to <datasources-path>/datasources.json,
keyed by slug.  Nothing is written if there's no data.
`)

var datasourcesCmd = &cobra.Command{
	Use:   "datasources [slug]",
	Short: "Save datasources as JSON data files",
	Long:  datasourcesUsage,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := ""
		if len(args) > 0 {
			slug = args[0]
		}

		dumper, stop, err := newDumper(false)
		if err != nil {
			return err
		}
		defer stop()

		if !dumper.StoreDatasources(cmd.Context(), slug) {
			return fmt.Errorf("datasources: nothing saved in %s", dumper.DatasourcesPath())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasourcesCmd)
}
