/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Output current config",
	Long: `
Is something not working for you?  Have a look whether your config is as you expect.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Note, you can only talk about persistent flags here.  Command-specific ones won't be
		// visible.
		fmt.Printf("Dump current config state:\n\n")

		fmt.Printf("  Config file: %s (loaded: %v)\n", Config, ConfigLoaded)
		fmt.Println()
		fmt.Printf("  Parsed YAML:\n")
		if err := printYAML(redacted(ParsedConfig), "    "); err != nil {
			return err
		}
		fmt.Println()
		fmt.Printf("  Effective settings:\n")
		return printYAML(effectiveConfig(), "    ")
	},
}

func init() {
	configCmd.AddCommand(showCmd)
}

// effectiveConfig collects the persistent flags, after the config file has been applied.
func effectiveConfig() YamlConfig {
	debug, withVCR, progress := Debug, WithVCR, Progress
	maxRetries, concurrency := MaxRetries, Concurrency
	return redacted(YamlConfig{
		Debug:                &debug,
		WithVCR:              &withVCR,
		Progress:             &progress,
		MaxRetries:           &maxRetries,
		Concurrency:          &concurrency,
		Token:                Token,
		AuthTokenCmd:         AuthTokenCmd,
		ContentVersion:       ContentVersion,
		Region:               Region,
		CacheType:            CacheType,
		CacheClear:           CacheClear,
		LayoutsPath:          LayoutsPath,
		StoriesPath:          StoriesPath,
		DatasourcesPath:      DatasourcesPath,
		ComponentsLayoutsMap: ComponentsLayoutsMap,
	})
}

func redacted(c YamlConfig) YamlConfig {
	if c.Token != "" {
		c.Token = "<redacted>"
	}
	return c
}

func printYAML(v any, indent string) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("config: couldn't marshal config: %w", err)
	}
	if string(out) == "{}\n" {
		fmt.Printf("%s(empty)\n", indent)
		return nil
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(out), "\n"), "\n") {
		fmt.Printf("%s%s\n", indent, line)
	}
	return nil
}
