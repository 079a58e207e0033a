package localdump

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/toothbrush/storyblok-dump/storyblok"
)

const (
	VersionDraft     = "draft"
	VersionPublished = "published"

	// Page size used for every paginated request.
	perPage = 100

	defaultMaxRetries = 3
)

// Config is set once, when building a Dumper.
type Config struct {
	// API token of the Storyblok space.  ClientConfig.AccessToken wins if both are set.
	Token string

	// draft (default) or published.
	Version string

	// Where the site's layouts live, e.g. "layouts".
	LayoutsPath string

	// Output folders, relative to the working directory.  Default to
	// "storyblok" and "_data".
	StoriesPath     string
	DatasourcesPath string

	// Component name -> layout name, for components that don't have a layout of their own name.
	ComponentsLayoutsMap map[string]string

	ClientConfig storyblok.ClientConfig

	// Maximum number of requests in flight per fan-out; zero means no limit.
	Concurrency int

	Logger *log.Logger

	// If set, progress bars are drawn here while writing files.
	Progress io.Writer

	// Delete story files of stories that no longer exist.
	Prune bool
}

// Dumper fetches stories and datasources and stores them where a static site
// generator can pick them up.
type Dumper struct {
	API    storyblok.Getter
	Logger *log.Logger

	version              string
	layoutsPath          string
	storiesPath          string
	datasourcesPath      string
	componentsLayoutsMap map[string]string
	concurrency          int
	progress             io.Writer
	prune                bool
}

func New(cfg Config) (*Dumper, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("localdump: couldn't determine working directory: %w", err)
	}

	version := cfg.Version
	if version == "" {
		version = VersionDraft
	}
	if version != VersionDraft && version != VersionPublished {
		return nil, fmt.Errorf("localdump: version must be %q or %q, got %q", VersionDraft, VersionPublished, version)
	}

	storiesPath := cfg.StoriesPath
	if storiesPath == "" {
		storiesPath = "storyblok"
	}
	datasourcesPath := cfg.DatasourcesPath
	if datasourcesPath == "" {
		datasourcesPath = "_data"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[storyblok-dump] ", log.LstdFlags)
	}

	clientConfig := cfg.ClientConfig
	if clientConfig.AccessToken == "" {
		clientConfig.AccessToken = cfg.Token
	}
	if clientConfig.Cache == nil {
		clientConfig.Cache = &storyblok.CacheConfig{
			Clear: storyblok.CacheClearAuto,
			Type:  storyblok.CacheTypeMemory,
		}
	}
	if clientConfig.MaxRetries == 0 {
		clientConfig.MaxRetries = defaultMaxRetries
	}
	if clientConfig.Logger == nil {
		clientConfig.Logger = logger
	}

	api, err := storyblok.NewAPI(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("localdump: couldn't instantiate Storyblok API: %w", err)
	}

	layouts := make(map[string]string, len(cfg.ComponentsLayoutsMap))
	for component, layout := range cfg.ComponentsLayoutsMap {
		layouts[component] = layout
	}

	return &Dumper{
		API:                  api,
		Logger:               logger,
		version:              version,
		layoutsPath:          cfg.LayoutsPath,
		storiesPath:          cleanPath(wd, storiesPath),
		datasourcesPath:      cleanPath(wd, datasourcesPath),
		componentsLayoutsMap: layouts,
		concurrency:          cfg.Concurrency,
		progress:             cfg.Progress,
		prune:                cfg.Prune,
	}, nil
}

func (d *Dumper) StoriesPath() string     { return d.storiesPath }
func (d *Dumper) DatasourcesPath() string { return d.datasourcesPath }

// cleanPath strips leading and trailing slashes from a user supplied path and
// anchors it in the working directory.  The result always ends in one slash.
func cleanPath(wd, p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return wd + "/"
	}
	return wd + "/" + trimmed + "/"
}
