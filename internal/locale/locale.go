// Package locale resolves status names and notification keys to display
// text. Tables are YAML: locale code to key to text.
package locale

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Fallback is consulted when a locale lacks a key.
const Fallback = "en"

//go:embed locales.yaml
var builtin []byte

// Catalog is a set of locale tables. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]map[string]string
}

// Default returns a catalog holding the embedded tables.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("locale: embedded tables: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	tables := make(map[string]map[string]string)
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse locale tables: %w", err)
	}
	c := &Catalog{tables: make(map[string]map[string]string, len(tables))}
	for loc, t := range tables {
		c.tables[normalize(loc)] = t
	}
	return c, nil
}

// Load returns the embedded tables with the file at path merged over them.
// An empty path yields the embedded tables alone.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locale file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.Merge(override)
	return c, nil
}

// Merge copies every entry of other into c, replacing existing keys.
func (c *Catalog) Merge(other *Catalog) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for loc, t := range other.tables {
		dst, ok := c.tables[loc]
		if !ok {
			dst = make(map[string]string, len(t))
			c.tables[loc] = dst
		}
		for k, v := range t {
			dst[k] = v
		}
	}
}

// Lookup returns the text for key in locale, then in Fallback, then the key
// itself.
func (c *Catalog) Lookup(locale, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.tables[normalize(locale)][key]; ok {
		return v
	}
	if v, ok := c.tables[Fallback][key]; ok {
		return v
	}
	return key
}

// Labels returns the full table for locale with fallback entries filled in.
func (c *Catalog) Labels(locale string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.tables[Fallback]))
	for k, v := range c.tables[Fallback] {
		out[k] = v
	}
	for k, v := range c.tables[normalize(locale)] {
		out[k] = v
	}
	return out
}

// Locales lists the known locale codes, sorted.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tables))
	for loc := range c.tables {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// normalize maps "de-DE" and "de_DE" to "de".
func normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return locale
}
