/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v2"
)

const defaultConfig = "~/.config/storyblok-dump.yaml"

var (
	// Store the result of binding cobra flags
	Config       string
	ConfigLoaded bool
	Debug        bool
	WithVCR      bool
	Progress     bool

	// API token of the space, or a command printing it.  Falls back to STORYBLOK_TOKEN.
	Token        string
	AuthTokenCmd []string

	ContentVersion string
	Region         string
	CacheType      string
	CacheClear     string
	MaxRetries     int
	Concurrency    int

	LayoutsPath          string
	StoriesPath          string
	DatasourcesPath      string
	ComponentsLayoutsMap map[string]string

	ParsedConfig YamlConfig
)

// Build the cobra command that handles our command line tool.
var rootCmd = &cobra.Command{
	Use:   "storyblok-dump",
	Short: "Dump a Storyblok space for a static site generator",
	Long: `
Fetch the stories and datasources of a Storyblok space and save them as data files a static site
generator can pick up: one front matter file per story, one JSON file per datasource.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("storyblok-dump: failed to initialise config: %w", err)
		}
		return nil
	},
}

func init() {
	// Define cobra flags, the default value has the lowest (least significant) precedence
	rootCmd.PersistentFlags().StringVar(&Config, "config", "", "config file location (default: "+defaultConfig+", respects STORYBLOK_DUMP_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to record and replay responses")
	rootCmd.PersistentFlags().BoolVar(&Progress, "progress", false, "show progress bars while writing files")

	rootCmd.PersistentFlags().StringVar(&Token, "token", "", "Storyblok API token (default: $STORYBLOK_TOKEN, also read from .env)")
	rootCmd.PersistentFlags().StringSliceVar(&AuthTokenCmd, "auth-token-cmd", []string{}, "shell command to retrieve the Storyblok API token")

	rootCmd.PersistentFlags().StringVar(&ContentVersion, "content-version", "draft", "version of the content to fetch: draft or published")
	rootCmd.PersistentFlags().StringVar(&Region, "region", "", "region of the space: eu, us, ap, ca or cn (default: eu)")
	rootCmd.PersistentFlags().StringVar(&CacheType, "cache-type", "memory", "response cache: memory or none")
	rootCmd.PersistentFlags().StringVar(&CacheClear, "cache-clear", "auto", "flush the response cache when the space changes (auto) or never (manual)")
	rootCmd.PersistentFlags().IntVar(&MaxRetries, "max-retries", 3, "how often to retry rate limited requests")
	rootCmd.PersistentFlags().IntVar(&Concurrency, "concurrency", 0, "maximum number of requests in flight per fan-out, 0 for no limit")

	rootCmd.PersistentFlags().StringVar(&LayoutsPath, "layouts-path", "", "folder of the site's layouts, prefixed to every story's layout")
	rootCmd.PersistentFlags().StringVar(&StoriesPath, "stories-path", "storyblok", "where to save stories, relative to the working directory")
	rootCmd.PersistentFlags().StringVar(&DatasourcesPath, "datasources-path", "_data", "where to save datasources, relative to the working directory")
	rootCmd.PersistentFlags().StringToStringVar(&ComponentsLayoutsMap, "components-layouts-map", map[string]string{}, "layout to use for a component, e.g. article=post")
}

func initializeConfig(cmd *cobra.Command) error {
	explicit := Config != ""
	if !explicit {
		// Did the user provide an ENV?
		if envConfig := os.Getenv("STORYBLOK_DUMP_CONFIG"); envConfig != "" {
			Config = envConfig
			explicit = true
		} else {
			// As fallback, search for config in home XDG-ish directory
			Config = defaultConfig
		}
	}
	config, err := homedir.Expand(Config)
	if err != nil {
		return fmt.Errorf("storyblok-dump: unable to expand homedir: %w", err)
	}
	Config = config

	if _, err := os.Stat(Config); errors.Is(err, os.ErrNotExist) {
		if !explicit {
			// flags and the environment are enough to get going
			debugLog("No config file at %s, skipping.\n", Config)
			return nil
		}
		fmt.Printf("Couldn't read config file %s, does it exist?  Override with --config.\n", Config)
		return fmt.Errorf("storyblok-dump: specified config file does not exist: %w", err)
	}

	yamlFile, err := os.ReadFile(Config)
	if err != nil {
		return fmt.Errorf("storyblok-dump: error reading config file: %w", err)
	}

	// I'd like to bark if a user sets a flag we don't recognise:
	if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
		return fmt.Errorf("storyblok-dump: issue parsing config file: %w", err)
	}
	ConfigLoaded = true

	if err := bindFlags(cmd, ParsedConfig); err != nil {
		return fmt.Errorf("storyblok-dump: failed to bind flags: %w", err)
	}

	return nil
}

type YamlConfig struct {
	Debug       *bool `yaml:"debug,omitempty"`
	WithVCR     *bool `yaml:"with-vcr,omitempty"`
	Progress    *bool `yaml:"progress,omitempty"`
	Prune       *bool `yaml:"prune,omitempty"`
	MaxRetries  *int  `yaml:"max-retries,omitempty"`
	Concurrency *int  `yaml:"concurrency,omitempty"`

	Token          string   `yaml:"token,omitempty"`
	AuthTokenCmd   []string `yaml:"auth-token-cmd,omitempty"`
	ContentVersion string   `yaml:"content-version,omitempty"`
	Region         string   `yaml:"region,omitempty"`
	CacheType      string   `yaml:"cache-type,omitempty"`
	CacheClear     string   `yaml:"cache-clear,omitempty"`

	LayoutsPath          string            `yaml:"layouts-path,omitempty"`
	StoriesPath          string            `yaml:"stories-path,omitempty"`
	DatasourcesPath      string            `yaml:"datasources-path,omitempty"`
	ComponentsLayoutsMap map[string]string `yaml:"components-layouts-map,omitempty"`

	// stories filters
	Component        string `yaml:"component,omitempty"`
	ResolveRelations string `yaml:"resolve-relations,omitempty"`
	ResolveLinks     string `yaml:"resolve-links,omitempty"`
	Language         string `yaml:"language,omitempty"`
	FallbackLang     string `yaml:"fallback-lang,omitempty"`
}

// Set each cobra flag the user didn't pass from the config file.
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := yamlKey(field.Tag("yaml"))
		if key == "" {
			return fmt.Errorf("storyblok-dump: could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// e.g. `datasources` has no `component` flag, but your YAML file may well define it.
			continue
		}
		if cmd.Flags().Changed(key) {
			continue
		}

		switch field.Kind() {
		case reflect.Ptr:
			switch p := field.Value().(type) {
			case *bool:
				if p != nil {
					cmd.Flags().Set(key, fmt.Sprintf("%v", *p))
				}
			case *int:
				if p != nil {
					cmd.Flags().Set(key, fmt.Sprintf("%d", *p))
				}
			default:
				return fmt.Errorf("storyblok-dump: found unrecognised field: %+v", field.Name())
			}

		case reflect.String:
			s, ok := field.Value().(string)
			if !ok {
				return fmt.Errorf("storyblok-dump: found unrecognised field: %+v", field.Name())
			}
			if s != "" {
				cmd.Flags().Set(key, s)
			}

		case reflect.Slice:
			ss, ok := field.Value().([]string)
			if !ok {
				return fmt.Errorf("storyblok-dump: found unrecognised field: %+v", field.Name())
			}
			for _, s := range ss {
				// yes, repeatedly calling Set() appends to the slice...
				cmd.Flags().Set(key, s)
			}

		case reflect.Map:
			m, ok := field.Value().(map[string]string)
			if !ok {
				return fmt.Errorf("storyblok-dump: found unrecognised field: %+v", field.Name())
			}
			// ... and merges into the map.
			keys := maps.Keys(m)
			sort.Strings(keys)
			for _, k := range keys {
				cmd.Flags().Set(key, k+"="+m[k])
			}

		default:
			return fmt.Errorf("storyblok-dump: found unrecognised field: %+v", field.Name())
		}
	}

	return nil
}

// yamlKey drops options like ",omitempty" from a yaml struct tag.
func yamlKey(tag string) string {
	key, _, _ := strings.Cut(tag, ",")
	return key
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("storyblok-dump: execution error: %w", err)
	}

	return nil
}
