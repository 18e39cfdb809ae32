package verify

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MapPreferenceStore is an in-memory PreferenceStore, used in tests and as a
// fallback when no preferences file is configured.
type MapPreferenceStore map[string]string

// Get returns the stored value for key.
func (m MapPreferenceStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the stored keys in a stable order.
func (m MapPreferenceStore) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadPreferences reads a flat YAML mapping of preference keys to values.
// A missing file yields an empty store, not an error: verifiers treat the
// absence of preferences as "nothing to conflict with".
func LoadPreferences(path string) (MapPreferenceStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MapPreferenceStore{}, nil
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	store := MapPreferenceStore{}
	if err := yaml.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parse preferences: %w", err)
	}
	return store, nil
}
