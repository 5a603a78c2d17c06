// internal/catalog/catalog.go
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"finance-tracker/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// Catalog is the fixed set of expense categories. It is built once at startup
// and never mutated, so it is safe for concurrent use.
type Catalog struct {
	entries []domain.CategoryInfo
	byKey   map[string]domain.CategoryInfo
}

type file struct {
	Categories []domain.CategoryInfo `yaml:"categories"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Categories)
}

func New(entries []domain.CategoryInfo) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog must have at least one category")
	}

	c := &Catalog{
		entries: make([]domain.CategoryInfo, 0, len(entries)),
		byKey:   make(map[string]domain.CategoryInfo, len(entries)),
	}
	for _, e := range entries {
		e.Key = strings.ToLower(strings.TrimSpace(e.Key))
		if !keyPattern.MatchString(e.Key) {
			return nil, fmt.Errorf("invalid category key %q", e.Key)
		}
		if _, dup := c.byKey[e.Key]; dup {
			return nil, fmt.Errorf("duplicate category key %q", e.Key)
		}
		if strings.TrimSpace(e.Label) == "" {
			e.Label = e.Key
		}
		c.entries = append(c.entries, e)
		c.byKey[e.Key] = e
	}
	return c, nil
}

// Keys returns category keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Key
	}
	return keys
}

// All returns a copy of the entries in catalog order.
func (c *Catalog) All() []domain.CategoryInfo {
	out := make([]domain.CategoryInfo, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Lookup(key string) (domain.CategoryInfo, bool) {
	info, ok := c.byKey[Normalize(key)]
	return info, ok
}

func (c *Catalog) Contains(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// Normalize maps user input to the form keys are stored in.
func Normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
