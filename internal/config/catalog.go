package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogEntry is one tracked title.
type CatalogEntry struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Slug  string `yaml:"slug"`
}

// Catalog keeps tracked titles in processing order.
type Catalog struct {
	Games []CatalogEntry `yaml:"games"`

	index map[string]int
}

// LoadCatalog reads the catalog at path, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c.index = make(map[string]int, len(c.Games))
	for i, g := range c.Games {
		key := strings.TrimSpace(g.Key)
		if key == "" {
			return nil, fmt.Errorf("catalog entry %d has no key", i)
		}
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("catalog key %q listed twice", key)
		}
		c.Games[i].Key = key
		c.index[key] = i
	}
	return &c, nil
}

func (c *Catalog) Lookup(key string) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	i, ok := c.index[key]
	if !ok {
		return CatalogEntry{}, false
	}
	return c.Games[i], true
}

func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, len(c.Games))
	for i, g := range c.Games {
		keys[i] = g.Key
	}
	return keys
}
