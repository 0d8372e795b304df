package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseOverride splits a dotted key=value override. The value is read as a
// YAML scalar or flow collection, so "3" is an int and "[1, 2]" a list.
func ParseOverride(raw string) (string, any, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return "", nil, fmt.Errorf("override %q is not in key=value format", raw)
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return "", nil, fmt.Errorf("override %q has an invalid key", raw)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return key, "", nil
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return "", nil, fmt.Errorf("override %q: parse value: %w", raw, err)
	}
	if parsed == nil {
		return key, nil, nil
	}
	return key, parsed, nil
}
