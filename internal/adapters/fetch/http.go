package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 8 << 20
)

// HTTPFetcher GETs a URL template and returns the response body.
type HTTPFetcher struct {
	template string
	client   *http.Client
}

// NewHTTPFetcher builds a fetcher for template, which may contain
// {competition} (path-escaped) and {limit}.
func NewHTTPFetcher(template string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPFetcher{template: template, client: client}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, competition string, rowLimit int) (string, error) {
	target := expand(f.template, url.PathEscape(competition), rowLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &FetchError{Competition: competition, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Competition: competition, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	// One byte past the cap tells a full body from a cut-off one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", &FetchError{Competition: competition, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return "", &FetchError{
			Competition: competition,
			Err:         fmt.Errorf("%w: response exceeds %d MiB", ErrBodyTooLarge, maxBodyBytes>>20),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{
			Competition: competition,
			Stderr:      tail(string(body)),
			Err:         fmt.Errorf("source responded %d", resp.StatusCode),
		}
	}
	return string(body), nil
}
