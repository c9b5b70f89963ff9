package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/source"
)

// maxBodySize bounds a single feed download.
const maxBodySize = 16 << 20

// Fetcher downloads ICS feeds. Every call goes to the network; nothing is
// cached between polls.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 15s timeout client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch returns the body of the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("ics: feed URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Debug("ics fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics: fetch: %w", source.Transport(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch: %w", &source.StatusError{Code: resp.StatusCode, Status: resp.Status})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("ics: read body: %w", source.Transport(err))
	}

	appLog.Debug("ics fetch success", "url", redactURL(url), "bytes", len(body))
	return body, nil
}

// redactURL hides path and query of a feed URL for logging; private ICS links
// carry their secret there.
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
