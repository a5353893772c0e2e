// Package secrets resolves credentials given either inline or as a file path.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when a source yields no secret at all.
var ErrNotConfigured = errors.New("not configured")

// Source names a secret and the places it may come from.
// File wins over Value when both are set.
type Source struct {
	Name  string
	Value string
	File  string
}

func (s Source) label() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return "secret"
}

// Load returns the trimmed secret. An unreadable or blank file is an error
// even when Value is set.
func Load(src Source) (string, error) {
	if path := strings.TrimSpace(src.File); path != "" {
		return readFile(src.label(), path)
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("%s: %w", src.label(), ErrNotConfigured)
}

func readFile(label, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s from %q: %w", label, path, err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s file %q is empty", label, path)
	}
	return secret, nil
}
