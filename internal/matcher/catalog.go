package matcher

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"atsmatch/internal/errors"

	"gopkg.in/yaml.v3"
)

// LoadCatalogFile reads a flat YAML mapping of keyword to suggestion and
// merges it over the built-in catalog. Keys are lowercased and trimmed. An
// empty suggestion removes the keyword.
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "suggestions file not found", err).
				WithContext("path", path)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read suggestions file", err).
			WithContext("path", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML catalog overrides and merges them over the
// built-in catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	overrides := map[string]string{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("invalid suggestions catalog: %v", err), err)
		}
	}

	catalog := DefaultCatalog()
	for keyword, text := range overrides {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			delete(catalog, keyword)
			continue
		}
		catalog[keyword] = text
	}
	return catalog, nil
}

// CatalogStore holds the active catalog and lets it be swapped while
// requests are reading it.
type CatalogStore struct {
	path    string
	current atomic.Pointer[Catalog]
}

// NewCatalogStore returns a store seeded from path, or from the built-in
// catalog when path is empty.
func NewCatalogStore(path string) (*CatalogStore, error) {
	s := &CatalogStore{path: path}
	if path == "" {
		c := DefaultCatalog()
		s.current.Store(&c)
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the catalog file backing the store, if any
func (s *CatalogStore) Path() string {
	return s.path
}

// Catalog returns the active catalog. Callers must not modify it.
func (s *CatalogStore) Catalog() Catalog {
	if s == nil {
		return builtinCatalog
	}
	return *s.current.Load()
}

// Reload re-reads the catalog file. On error the previous catalog stays active.
func (s *CatalogStore) Reload() error {
	if s.path == "" {
		return nil
	}
	c, err := LoadCatalogFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(&c)
	return nil
}
