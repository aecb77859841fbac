package store

import (
	"fmt"
	"strings"
	"time"
)

// Open selects a backend from the scheme of storeURL:
//
//	http://, https://  hosted PostgREST table API, authenticated with key
//	sqlite:<path>      embedded SQLite database file
//	memory:            in-process store, lost on exit
func Open(storeURL, key string, timeout time.Duration) (Client, error) {
	switch {
	case strings.HasPrefix(storeURL, "http://"), strings.HasPrefix(storeURL, "https://"):
		c, err := NewREST(storeURL, key, WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		return c, nil
	case strings.HasPrefix(storeURL, "sqlite:"):
		path := strings.TrimPrefix(strings.TrimPrefix(storeURL, "sqlite:"), "//")
		if path == "" {
			return nil, fmt.Errorf("sqlite store url needs a path: %q", storeURL)
		}
		s, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(storeURL, "memory:"):
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store url %q", storeURL)
	}
}
