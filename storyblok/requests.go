package storyblok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/toothbrush/storyblok-dump/internal/termfmt"
)

// ErrMissingToken is returned before any network attempt when no access
// token has been configured.
var ErrMissingToken = errors.New("storyblok: client not initialised, no access token configured")

// FetchError is what every failed request turns into.  StatusCode is zero
// when the request never got a response.
type FetchError struct {
	StatusCode int
	Status     string
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("storyblok: request failed: %v", e.Err)
	}
	return fmt.Sprintf("storyblok: unexpected HTTP response status: %s", e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Unauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *FetchError) NotFound() bool     { return e.StatusCode == http.StatusNotFound }

// Response is one decoded page of the content delivery API.
type Response struct {
	// Body keyed by entity name, e.g. "stories" or "datasource_entries".  nil
	// when the API answered without any data.
	Records map[string]json.RawMessage

	// Value of the Total header; only paginated endpoints send it.
	Total int
}

// Getter is the one thing the collectors need from an API.
type Getter interface {
	Get(ctx context.Context, endpoint string, params url.Values) (*Response, error)
}

var _ Getter = (*API)(nil)

// Get requests one endpoint (relative to cdn/) with the given parameters.
func (api *API) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	if !api.HasToken() {
		return nil, ErrMissingToken
	}

	ep, err := api.resolveEndpoint(endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("storyblok: couldn't get %s endpoint: %w", endpoint, err)
	}

	cacheable := api.cache != nil && params.Get("version") == "published"
	if cacheable {
		if res, ok := api.cache.get(ep.String()); ok {
			return res, nil
		}
	}

	body, header, err := api.request(ctx, ep)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			api.logFetchError(fe)
		}
		return nil, err
	}

	res := &Response{}
	if t := header.Get("Total"); t != "" {
		if res.Total, err = strconv.Atoi(t); err != nil {
			return nil, fmt.Errorf("storyblok: couldn't parse Total header %q: %w", t, err)
		}
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &res.Records); err != nil {
			return nil, fmt.Errorf("storyblok: couldn't parse json response: %w", err)
		}
	}

	if cacheable {
		api.cache.put(ep.String(), res, cacheVersion(res.Records))
	}

	return res, nil
}

// request performs a GET, retrying while the API rate limits us.
func (api *API) request(ctx context.Context, u *url.URL) ([]byte, http.Header, error) {
	for attempt := 0; ; attempt++ {
		body, header, err := api.requestOnce(ctx, u)

		var fe *FetchError
		if err == nil || !errors.As(err, &fe) || fe.StatusCode != http.StatusTooManyRequests || attempt >= api.maxRetries {
			return body, header, err
		}

		wait := time.Duration(attempt+1) * api.retryDelay
		api.Logger.Printf("Rate limited on %s, retrying in %v...\n", u.Path, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, nil, &FetchError{URL: u.Path, Err: context.Cause(ctx)}
		}
	}
}

func (api *API) requestOnce(ctx context.Context, u *url.URL) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("storyblok: couldn't instantiate http request: %w", err)
	}

	req.Header.Add("Accept", "application/json, */*")

	response, err := api.Client.Do(req)
	if err != nil {
		return nil, nil, &FetchError{URL: u.Path, Err: err}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		response.Body.Close()
		return nil, nil, &FetchError{URL: u.Path, Err: fmt.Errorf("couldn't read http response body: %w", err)}
	}

	if err := response.Body.Close(); err != nil {
		return nil, nil, fmt.Errorf("storyblok: couldn't close response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, nil, &FetchError{
			StatusCode: response.StatusCode,
			Status:     response.Status,
			URL:        u.Path,
		}
	}

	return body, response.Header, nil
}

func (api *API) logFetchError(fe *FetchError) {
	var msg string
	switch {
	case fe.StatusCode == 0:
		return
	case fe.Unauthorized():
		msg = "Error 401: Unauthorized. Probably the API token is wrong."
	case fe.NotFound():
		msg = "Error 404: The item you are trying to get doesn't exist."
	default:
		msg = fmt.Sprintf("Error %d: %s", fe.StatusCode, http.StatusText(fe.StatusCode))
	}
	if api.color {
		api.Logger.Printf("%s\n", termfmt.Fg(termfmt.Red).V(msg))
		return
	}
	api.Logger.Printf("%s\n", msg)
}
