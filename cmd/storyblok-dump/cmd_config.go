/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var configUsage = strings.TrimSpace(`
Every persistent flag can also be set in a YAML file, using the flag name as key, e.g.

    content-version: published
    auth-token-cmd: [pass, show, storyblok]
    components-layouts-map:
      article: post

The file is read from ` + defaultConfig + ` unless --config or STORYBLOK_DUMP_CONFIG
point elsewhere.  Flags given on the command line win over the file.
`)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the YAML config file and the settings in effect",
	Long:  configUsage,
	Args:  cobra.NoArgs,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
