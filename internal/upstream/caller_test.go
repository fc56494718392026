package upstream_test

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/upstream"
)

func testSettings() *config.Settings {
	return &config.Settings{
		UpstreamAPIKey:   "key",
		RetryMaxAttempts: 3,
		RetryBackoff:     0.001,
		RetryMaxSeconds:  0.01,
	}
}

func TestCallWithRetryRetriesRetryableStatus(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	s := testSettings()
	s.UpstreamBaseURL = server.URL
	client := upstream.NewClient(s)

	resp, err := upstream.CallWithRetry(context.Background(), client, []byte(`{}`), s)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestCallWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := testSettings()
	s.RetryMaxAttempts = 2
	s.UpstreamBaseURL = server.URL
	client := upstream.NewClient(s)

	_, err := upstream.CallWithRetry(context.Background(), client, []byte(`{}`), s)
	require.Error(t, err)
}

func TestExtractErrorMessagePrefersErrorObjectMessage(t *testing.T) {
	body := []byte(`{"error":{"message":"bad verbosity"}}`)
	assert.Equal(t, "bad verbosity", upstream.ExtractErrorMessage(body))
}

func TestExtractErrorMessageFallsBackToTopLevelMessage(t *testing.T) {
	body := []byte(`{"message":"top level"}`)
	assert.Equal(t, "top level", upstream.ExtractErrorMessage(body))
}

func TestExtractErrorMessageFallsBackToRawText(t *testing.T) {
	assert.Equal(t, "not json", upstream.ExtractErrorMessage([]byte("not json")))
}

func TestApplyDegradeFieldsStripsFirstMatchingField(t *testing.T) {
	payload := []byte(`{"verbosity":"high","temperature":0.5}`)
	out, ok := upstream.ApplyDegradeFields(payload, []string{"verbosity", "temperature"}, "unknown field verbosity")
	require.True(t, ok)
	assert.NotContains(t, string(out), "verbosity")
	assert.Contains(t, string(out), "temperature")
}

func TestApplyDegradeFieldsNoMatchReturnsFalse(t *testing.T) {
	payload := []byte(`{"verbosity":"high"}`)
	_, ok := upstream.ApplyDegradeFields(payload, []string{"verbosity"}, "some unrelated error")
	assert.False(t, ok)
}

func TestDecompressBodyGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(`{"hello":"world"}`))
		gz.Close()
	}))
	defer server.Close()

	// Asking for gzip explicitly keeps the transport from decoding the body
	// itself, so DecompressBody's gzip branch is the one under test.
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader, err := upstream.DecompressBody(resp)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(data))
}
