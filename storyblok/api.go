package storyblok

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	CacheClearAuto   = "auto"
	CacheClearManual = "manual"

	CacheTypeMemory = "memory"
	CacheTypeNone   = "none"
)

// CacheConfig mirrors the cache policy of the official JS client.
type CacheConfig struct {
	Clear string `yaml:"clear" json:"clear"` // auto, manual
	Type  string `yaml:"type" json:"type"`   // memory, none
}

// ClientConfig is everything needed to talk to the content delivery API.
type ClientConfig struct {
	AccessToken string

	// Region of the space: eu (default), us, ap, ca or cn.
	Region string

	// BaseURL overrides the regional host, mostly useful for tests.
	BaseURL string

	// An HTTP client - you can substitute VCR or whatnot.
	HTTPClient *http.Client

	// nil disables caching altogether.
	Cache *CacheConfig

	// How many times a rate-limited (429) request is retried.
	MaxRetries int

	Logger *log.Logger

	// Print error diagnostics in colour.
	Color bool
}

var regionHosts = map[string]string{
	"":   "https://api.storyblok.com/v2/",
	"eu": "https://api.storyblok.com/v2/",
	"us": "https://api-us.storyblok.com/v2/",
	"ap": "https://api-ap.storyblok.com/v2/",
	"ca": "https://api-ca.storyblok.com/v2/",
	"cn": "https://app.storyblokchina.cn/v2/",
}

func NewAPI(cfg ClientConfig) (*API, error) {
	base := cfg.BaseURL
	if base == "" {
		host, ok := regionHosts[cfg.Region]
		if !ok {
			return nil, fmt.Errorf("storyblok: unknown region %q", cfg.Region)
		}
		base = host
	}

	u, err := url.ParseRequestURI(base)
	if err != nil {
		return nil, fmt.Errorf("storyblok: couldn't parse API base URL: %w", err)
	}

	a := &API{
		BaseURI:    u,
		Client:     cfg.HTTPClient,
		Logger:     cfg.Logger,
		token:      cfg.AccessToken,
		maxRetries: cfg.MaxRetries,
		color:      cfg.Color,
		retryDelay: 500 * time.Millisecond,
	}
	if a.Client == nil {
		a.Client = &http.Client{}
	}
	if a.Logger == nil {
		a.Logger = log.New(os.Stderr, "[storyblok] ", log.LstdFlags)
	}
	if cfg.Cache != nil && cfg.Cache.Type == CacheTypeMemory {
		a.cache = newResponseCache(cfg.Cache.Clear == CacheClearAuto)
	}

	return a, nil
}

type API struct {
	// Regional content delivery API root, e.g. https://api.storyblok.com/v2/
	BaseURI *url.URL

	Client *http.Client
	Logger *log.Logger

	token      string
	maxRetries int
	color      bool
	retryDelay time.Duration
	cache      *responseCache
}

// HasToken reports whether requests can be made at all.
func (a *API) HasToken() bool {
	return a.token != ""
}

// FlushCache drops every cached response.
func (a *API) FlushCache() {
	if a.cache != nil {
		a.cache.flush()
	}
}
