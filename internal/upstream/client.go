// Package upstream is the narrow HTTP collaborator that speaks the
// Chat-Completions wire protocol to the configured upstream (§4.F).
package upstream

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/NeapolitanIcecream/openbridge/internal/config"
)

// Client performs the single upstream call the rest of the package retries
// and degrades around. It knows nothing about Responses-shaped data.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient builds a Client bound to one process's upstream configuration.
func NewClient(settings *config.Settings) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: settings.RequestTimeout},
		baseURL:    strings.TrimRight(settings.UpstreamBaseURL, "/"),
		apiKey:     settings.UpstreamAPIKey,
	}
}

// ChatCompletions posts a Chat-Completions request body upstream. The caller
// is responsible for closing the returned response's body.
func (c *Client) ChatCompletions(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.httpClient.Do(req)
}

// DecompressBody wraps resp.Body to transparently undo gzip/brotli
// content-encoding, the way the teacher's proxy handler does for the
// responses it relays.
func DecompressBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return &doubleCloser{Reader: gz, inner: gz, outer: resp.Body}, nil
	case "br":
		return &doubleCloser{Reader: brotli.NewReader(resp.Body), outer: resp.Body}, nil
	default:
		return resp.Body, nil
	}
}

// doubleCloser closes both a decompressing reader's own state (if it has
// any) and the underlying network body it wraps.
type doubleCloser struct {
	io.Reader
	inner io.Closer
	outer io.Closer
}

func (d *doubleCloser) Close() error {
	var err error
	if d.inner != nil {
		err = d.inner.Close()
	}
	if cerr := d.outer.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ContentType returns a response's content-type with any parameters stripped.
func ContentType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(ct)
}
