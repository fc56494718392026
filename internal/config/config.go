// Package config loads OpenBridge's settings from environment variables and
// caches the parsed result for the lifetime of the process, the way the
// teacher's config.Manager caches its parsed provider file in an atomic.Value.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 8000
	DefaultLogLevel           = "INFO"
	DefaultRequestTimeoutS    = 120.0
	DefaultRetryMaxAttempts   = 2
	DefaultRetryMaxSeconds    = 15.0
	DefaultRetryBackoff       = 0.5
	DefaultMemoryTTLSeconds   = 3600
	DefaultStateKeyPrefix     = "openbridge:state"
)

// StateBackend enumerates the supported §4.G backend choices.
type StateBackend string

const (
	StateBackendMemory   StateBackend = "memory"
	StateBackendRemote   StateBackend = "remote"
	StateBackendDisabled StateBackend = "disabled"
)

// Settings is the fully-resolved, validated configuration for one process.
// Every field here corresponds to one row of spec.md §6's configuration table.
type Settings struct {
	UpstreamAPIKey  string
	UpstreamBaseURL string

	Host string
	Port int

	LogLevel string

	TLSCertFile         string
	TLSKeyFile          string
	TLSKeyFilePassword  string

	StateBackend     StateBackend
	RemoteStateURL   string
	StateKeyPrefix   string

	ClientAPIKey string

	RequestTimeout    time.Duration
	RetryMaxAttempts  int
	RetryMaxSeconds   float64
	RetryBackoff      float64

	DegradeFields []string

	MaxTokensBuffer int

	MemoryTTLSeconds int

	ModelMapPath string
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float for %s: %w", key, err)
	}
	return v, nil
}

// splitDegradeFields parses an ordered, duplicate-free comma-separated set.
func splitDegradeFields(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

// Load reads and validates Settings from the process environment.
func Load() (*Settings, error) {
	s := &Settings{}

	s.UpstreamAPIKey = os.Getenv("UPSTREAM_API_KEY")
	if s.UpstreamAPIKey == "" {
		return nil, fmt.Errorf("UPSTREAM_API_KEY is required")
	}
	s.UpstreamBaseURL = getenv("UPSTREAM_BASE_URL", "https://openrouter.ai/api/v1")

	s.Host = getenv("HOST", DefaultHost)
	port, err := getenvInt("PORT", DefaultPort)
	if err != nil {
		return nil, err
	}
	s.Port = port

	s.LogLevel = strings.ToUpper(getenv("LOG_LEVEL", DefaultLogLevel))
	switch s.LogLevel {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "CRITICAL":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", s.LogLevel)
	}

	s.TLSCertFile = os.Getenv("TLS_CERTFILE")
	s.TLSKeyFile = os.Getenv("TLS_KEYFILE")
	s.TLSKeyFilePassword = os.Getenv("TLS_KEYFILE_PASSWORD")
	if err := s.validateTLS(); err != nil {
		return nil, err
	}

	backend := StateBackend(strings.ToLower(getenv("STATE_BACKEND", string(StateBackendMemory))))
	switch backend {
	case StateBackendMemory, StateBackendRemote, StateBackendDisabled:
		s.StateBackend = backend
	default:
		return nil, fmt.Errorf("invalid STATE_BACKEND %q", backend)
	}
	s.RemoteStateURL = os.Getenv("REMOTE_STATE_URL")
	s.StateKeyPrefix = getenv("STATE_KEY_PREFIX", DefaultStateKeyPrefix)
	if s.StateBackend == StateBackendRemote && s.RemoteStateURL == "" {
		return nil, fmt.Errorf("REMOTE_STATE_URL is required when STATE_BACKEND=remote")
	}

	s.ClientAPIKey = os.Getenv("CLIENT_API_KEY")

	timeoutS, err := getenvFloat("REQUEST_TIMEOUT_S", DefaultRequestTimeoutS)
	if err != nil {
		return nil, err
	}
	s.RequestTimeout = time.Duration(timeoutS * float64(time.Second))

	if s.RetryMaxAttempts, err = getenvInt("RETRY_MAX_ATTEMPTS", DefaultRetryMaxAttempts); err != nil {
		return nil, err
	}
	if s.RetryMaxSeconds, err = getenvFloat("RETRY_MAX_SECONDS", DefaultRetryMaxSeconds); err != nil {
		return nil, err
	}
	if s.RetryBackoff, err = getenvFloat("RETRY_BACKOFF", DefaultRetryBackoff); err != nil {
		return nil, err
	}

	if raw, ok := os.LookupEnv("DEGRADE_FIELDS"); ok {
		s.DegradeFields = splitDegradeFields(raw)
	} else {
		s.DegradeFields = []string{"verbosity"}
	}

	if s.MaxTokensBuffer, err = getenvInt("MAX_TOKENS_BUFFER", 0); err != nil {
		return nil, err
	}
	if s.MemoryTTLSeconds, err = getenvInt("MEMORY_TTL_SECONDS", DefaultMemoryTTLSeconds); err != nil {
		return nil, err
	}

	s.ModelMapPath = os.Getenv("MODEL_MAP_PATH")

	return s, nil
}

func (s *Settings) validateTLS() error {
	hasCert := s.TLSCertFile != ""
	hasKey := s.TLSKeyFile != ""
	if hasCert != hasKey {
		return fmt.Errorf("TLS_CERTFILE and TLS_KEYFILE must be set together")
	}
	if hasCert {
		if _, err := os.Stat(s.TLSCertFile); err != nil {
			return fmt.Errorf("TLS_CERTFILE not found: %s", s.TLSCertFile)
		}
		if _, err := os.Stat(s.TLSKeyFile); err != nil {
			return fmt.Errorf("TLS_KEYFILE not found: %s", s.TLSKeyFile)
		}
	}
	return nil
}

// Manager caches a loaded Settings behind an atomic.Value, matching the
// teacher's config.Manager shape: Load once, Get cheaply and concurrently.
type Manager struct {
	value atomic.Value
}

// NewManager constructs an empty manager; call Load before Get.
func NewManager() *Manager {
	return &Manager{}
}

// Load reads Settings from the environment and stores them.
func (m *Manager) Load() error {
	s, err := Load()
	if err != nil {
		return err
	}
	m.value.Store(s)
	return nil
}

// Get returns the cached Settings, or nil if Load has not succeeded yet.
func (m *Manager) Get() *Settings {
	v := m.value.Load()
	if v == nil {
		return nil
	}
	return v.(*Settings)
}
