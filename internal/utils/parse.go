package utils

import (
	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// LoadTOMLFile decodes path into v. Keys that match no field are logged
// and skipped.
func LoadTOMLFile(path string, v any) error {
	md, err := toml.DecodeFile(path, v)
	if err != nil {
		log.Warnf("TOML parsing error in config file %s: %v. Attempting partial recovery...", path, err)
		return err
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		log.Debugf("Ignoring unknown keys in %s: %v", path, keys)
	}
	return nil
}

// ParseTOMLWithRecovery decodes path into a generic map so that valid
// sections can be picked out one at a time.
func ParseTOMLWithRecovery(path string) (map[string]any, error) {
	raw := make(map[string]any)
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v", path, err)
		return nil, err
	}
	return raw, nil
}

// Extract returns data[key] if it holds a T.
func Extract[T any](data map[string]any, key string) (T, bool) {
	v, ok := data[key].(T)
	return v, ok
}

// ExtractSection returns the table named name.
func ExtractSection(data map[string]any, name string) (map[string]any, bool) {
	return Extract[map[string]any](data, name)
}

// ExtractInt returns an integer key. TOML integers decode as int64.
func ExtractInt(data map[string]any, key string) (int, bool) {
	n, ok := Extract[int64](data, key)
	return int(n), ok
}
