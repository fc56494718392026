package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Remote is the §4.G "external collaborator" StateStore backend: a narrow
// HTTP client against a key/value service addressed by REMOTE_STATE_URL. Key
// namespacing and the unprefixed-key read/delete fallback mirror the
// original's RedisStateStore, generalized away from a specific wire protocol
// since no such client exists anywhere in the reference corpus.
type Remote struct {
	httpClient *http.Client
	baseURL    string
	prefix     string
}

// NewRemote builds a Remote store against baseURL, namespacing every key
// under prefix (trailing colons stripped, matching the original's rstrip).
func NewRemote(baseURL, prefix string) *Remote {
	return &Remote{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     strings.TrimRight(prefix, ":"),
	}
}

func (r *Remote) key(responseID string) string {
	if r.prefix == "" {
		return responseID
	}
	return r.prefix + ":" + responseID
}

func (r *Remote) url(key string) string {
	return r.baseURL + "/" + key
}

func (r *Remote) Get(ctx context.Context, responseID string) (*StoredResponse, error) {
	record, err := r.getKey(ctx, r.key(responseID))
	if err != nil {
		return nil, err
	}
	if record == nil && r.prefix != "" {
		record, err = r.getKey(ctx, responseID)
		if err != nil {
			return nil, err
		}
	}
	return record, nil
}

func (r *Remote) getKey(ctx context.Context, key string) (*StoredResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote state get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote state get: unexpected status %d", resp.StatusCode)
	}

	var record StoredResponse
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("remote state get: decode: %w", err)
	}
	return &record, nil
}

func (r *Remote) Set(ctx context.Context, responseID string, record StoredResponse, ttl time.Duration) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("remote state set: encode: %w", err)
	}

	url := r.url(r.key(responseID))
	if ttl > 0 {
		url += "?ttl_seconds=" + strconv.Itoa(int(ttl.Seconds()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote state set: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("remote state set: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Delete(ctx context.Context, responseID string) error {
	keys := []string{r.key(responseID)}
	if r.prefix != "" {
		keys = append(keys, responseID)
	}
	for _, key := range keys {
		if err := r.deleteKey(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *Remote) deleteKey(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.url(key), nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote state delete: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("remote state delete: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Close(ctx context.Context) error {
	r.httpClient.CloseIdleConnections()
	return nil
}
