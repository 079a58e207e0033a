/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/toothbrush/storyblok-dump/localdump"
	"github.com/toothbrush/storyblok-dump/storyblok"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
)

const tokenEnv = "STORYBLOK_TOKEN"

// resolveToken picks the API token: --token, then --auth-token-cmd, then
// STORYBLOK_TOKEN from the environment or a .env file in the working directory.
func resolveToken() (string, error) {
	if Token != "" {
		debugLog("Using token from --token\n")
		return Token, nil
	}

	if len(AuthTokenCmd) > 0 {
		tokenCmdOutput, err := exec.Command(AuthTokenCmd[0], AuthTokenCmd[1:]...).Output()
		if err != nil {
			return "", fmt.Errorf("cmd: couldn't execute auth-token-cmd '%v': %w", AuthTokenCmd, err)
		}
		debugLog("Using token from auth-token-cmd\n")
		return strings.Split(string(tokenCmdOutput), "\n")[0], nil
	}

	// a missing .env is fine, the variable may be set already
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("cmd: couldn't load .env: %w", err)
	}
	if token := os.Getenv(tokenEnv); token != "" {
		debugLog("Using token from %s\n", tokenEnv)
		return token, nil
	}

	return "", fmt.Errorf("cmd: no API token: use --token, --auth-token-cmd or set %s", tokenEnv)
}

// newDumper builds a Dumper from the flags.  The returned stop func must be
// called once done, to save recorded responses when running --with-vcr.
func newDumper(prune bool) (*localdump.Dumper, func(), error) {
	stop := func() {}

	token, err := resolveToken()
	if err != nil {
		return nil, stop, err
	}

	clientConfig := storyblok.ClientConfig{
		AccessToken: token,
		Region:      Region,
		MaxRetries:  MaxRetries,
		Color:       colorOutput(os.Stderr.Fd()),
		Cache: &storyblok.CacheConfig{
			Type:  CacheType,
			Clear: CacheClear,
		},
	}

	if WithVCR {
		// set up VCR recordings.
		opts := &recorder.Options{
			CassetteName:       "fixtures/storyblok",
			Mode:               recorder.ModeReplayWithNewEpisodes,
			SkipRequestLatency: true,
			RealTransport:      http.DefaultTransport,
		}
		r, err := recorder.NewWithOptions(opts)
		if err != nil {
			return nil, stop, fmt.Errorf("cmd: couldn't set up go-vcr recording: %w", err)
		}

		// The token travels in the query string; keep it out of the cassette.
		hook := func(i *cassette.Interaction) error {
			i.Request.URL = redactToken(i.Request.URL)
			delete(i.Request.Form, "token")
			return nil
		}
		r.AddHook(hook, recorder.AfterCaptureHook)
		r.SetReplayableInteractions(true)
		r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
			return req.Method == i.Method && redactToken(req.URL.String()) == i.URL
		})

		clientConfig.HTTPClient = r.GetDefaultClient()
		stop = func() {
			if err := r.Stop(); err != nil {
				log.Printf("Couldn't save go-vcr cassette: %v\n", err)
			}
		}
	}

	var progress io.Writer
	if Progress {
		progress = os.Stderr
	}

	dumper, err := localdump.New(localdump.Config{
		Version:              ContentVersion,
		LayoutsPath:          LayoutsPath,
		StoriesPath:          StoriesPath,
		DatasourcesPath:      DatasourcesPath,
		ComponentsLayoutsMap: ComponentsLayoutsMap,
		ClientConfig:         clientConfig,
		Concurrency:          Concurrency,
		Progress:             progress,
		Prune:                prune,
	})
	if err != nil {
		stop()
		return nil, func() {}, fmt.Errorf("cmd: couldn't set up dumper: %w", err)
	}

	debugLog("Saving stories to %s and datasources to %s\n", dumper.StoriesPath(), dumper.DatasourcesPath())
	return dumper, stop, nil
}

// colorOutput is true when diagnostics go to a terminal and NO_COLOR isn't set.
func colorOutput(fd uintptr) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func redactToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if !q.Has("token") {
		return rawURL
	}
	q.Set("token", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
