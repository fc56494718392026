package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeapolitanIcecream/openbridge/internal/config"
)

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	fn()
}

func TestLoadRequiresUpstreamAPIKey(t *testing.T) {
	t.Setenv("UPSTREAM_API_KEY", "")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{"UPSTREAM_API_KEY": "k"}, func() {
		s, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, config.DefaultHost, s.Host)
		assert.Equal(t, config.DefaultPort, s.Port)
		assert.Equal(t, config.StateBackendMemory, s.StateBackend)
		assert.Equal(t, []string{"verbosity"}, s.DegradeFields)
	})
}

func TestLoadDegradeFieldsParsesCommaSeparated(t *testing.T) {
	withEnv(t, map[string]string{
		"UPSTREAM_API_KEY": "k",
		"DEGRADE_FIELDS":   " verbosity , temperature ,verbosity",
	}, func() {
		s, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"verbosity", "temperature"}, s.DegradeFields)
	})
}

func TestLoadRemoteBackendRequiresURL(t *testing.T) {
	withEnv(t, map[string]string{
		"UPSTREAM_API_KEY": "k",
		"STATE_BACKEND":    "remote",
	}, func() {
		_, err := config.Load()
		require.Error(t, err)
	})
}

func TestLoadTLSMustBeBothOrNone(t *testing.T) {
	withEnv(t, map[string]string{
		"UPSTREAM_API_KEY": "k",
		"TLS_CERTFILE":     "/tmp/does-not-exist.crt",
	}, func() {
		_, err := config.Load()
		require.Error(t, err)
	})
}

func TestManagerGetBeforeLoadIsNil(t *testing.T) {
	m := config.NewManager()
	assert.Nil(t, m.Get())
}

func TestManagerLoadAndGet(t *testing.T) {
	withEnv(t, map[string]string{"UPSTREAM_API_KEY": "k"}, func() {
		m := config.NewManager()
		require.NoError(t, m.Load())
		require.NotNil(t, m.Get())
		assert.Equal(t, "k", m.Get().UpstreamAPIKey)
	})
}
