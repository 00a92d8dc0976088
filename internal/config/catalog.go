package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActCatalog lists the acts in the corpus and the aliases a classifier may
// answer with.
type ActCatalog struct {
	Acts []ActEntry `yaml:"acts"`

	lookup map[string]string
}

type ActEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// LoadActCatalog reads a YAML catalog. An empty path yields an empty catalog
// so labels pass through unchanged.
func LoadActCatalog(path string) (*ActCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return NewActCatalog(nil), nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open act catalog %s: %w", path, err)
	}
	defer f.Close()
	return ParseActCatalog(f)
}

func ParseActCatalog(r io.Reader) (*ActCatalog, error) {
	var cat ActCatalog
	if err := yaml.NewDecoder(r).Decode(&cat); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse act catalog: %w", err)
	}
	for i, entry := range cat.Acts {
		if strings.TrimSpace(entry.Name) == "" {
			return nil, fmt.Errorf("act catalog entry %d: name is required", i)
		}
	}
	return NewActCatalog(cat.Acts), nil
}

func NewActCatalog(entries []ActEntry) *ActCatalog {
	cat := &ActCatalog{Acts: entries, lookup: map[string]string{}}
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		cat.lookup[catalogKey(name)] = name
		for _, alias := range entry.Aliases {
			if key := catalogKey(alias); key != "" {
				cat.lookup[key] = name
			}
		}
	}
	return cat
}

// Canonical resolves a name or alias, ignoring case and surrounding space.
func (c *ActCatalog) Canonical(label string) (string, bool) {
	name, ok := c.lookup[catalogKey(label)]
	return name, ok
}

// Names returns the canonical act names in sorted order.
func (c *ActCatalog) Names() []string {
	out := make([]string, 0, len(c.Acts))
	for _, entry := range c.Acts {
		out = append(out, strings.TrimSpace(entry.Name))
	}
	sort.Strings(out)
	return out
}

// Merge adds acts discovered at runtime (e.g. from the act store) that the
// file does not list.
func (c *ActCatalog) Merge(names []string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := c.lookup[catalogKey(name)]; ok {
			continue
		}
		c.Acts = append(c.Acts, ActEntry{Name: name})
		c.lookup[catalogKey(name)] = name
	}
}

func catalogKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
