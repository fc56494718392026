package translate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// modelMapCache is a process-wide, path-keyed cache of parsed model maps.
// Per spec.md §5/§9, it is immutable once filled: a parse failure for a given
// path is a permanent error, never silently retried as an empty map.
var (
	modelMapCacheMu sync.Mutex
	modelMapCache   = map[string]map[string]string{}
)

// loadModelMap returns the parsed JSON object at path, loading and caching it
// on first use. An empty path yields an empty map. A missing file also yields
// an empty map (and is cached as such, matching the original's treatment of
// "file not present" as "no mapping configured").
func loadModelMap(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	modelMapCacheMu.Lock()
	defer modelMapCacheMu.Unlock()

	if cached, ok := modelMapCache[path]; ok {
		return cached, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			modelMapCache[path] = map[string]string{}
			return modelMapCache[path], nil
		}
		return nil, fmt.Errorf("read model map %s: %w", path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("model map %s must be a JSON object of string to string: %w", path, err)
	}

	modelMapCache[path] = raw
	return raw, nil
}

// resolveModel maps a client-declared model name to the upstream model name:
// an explicit mapping wins; otherwise a name already carrying a vendor
// delimiter passes through unchanged; otherwise it is prefixed with the
// default vendor token.
func resolveModel(model string, modelMap map[string]string) string {
	if mapped, ok := modelMap[model]; ok {
		return mapped
	}
	if strings.Contains(model, "/") {
		return model
	}
	return "openai/" + model
}
