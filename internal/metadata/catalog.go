// Package metadata holds the code -> descriptive metadata dictionary used to
// rename incoming files.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTitle is used when an entry has no usable title.
const DefaultTitle = "sin_título"

// Title field names accepted when loading a catalog, in priority order.
var titleFields = []string{"title", "titulo_largo"}

// ErrInvalidCatalog is returned when the metadata dictionary cannot be used.
var ErrInvalidCatalog = errors.New("invalid metadata catalog")

// Entry describes one code.
type Entry struct {
	Extra map[string]string
	Code  string
	Title string
}

// FileTitle returns the title as it should appear in a file name: slashes
// become hyphens and surrounding whitespace is trimmed.
func (e Entry) FileTitle() string {
	title := strings.TrimSpace(strings.ReplaceAll(e.Title, "/", "-"))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// Catalog is an immutable dictionary keyed by lowercase code.
type Catalog struct {
	entries map[string]Entry
}

// NewCatalog builds a catalog. Keys are the lowercased codes while each
// Entry keeps its code as written. Empty codes and codes that collide after
// folding are rejected.
func NewCatalog(entries []Entry) (*Catalog, error) {
	m := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Code) == "" {
			return nil, fmt.Errorf("%w: entry with empty code", ErrInvalidCatalog)
		}
		key := strings.ToLower(entry.Code)
		if existing, exists := m[key]; exists {
			return nil, fmt.Errorf("%w: duplicate code %q (already defined as %q)", ErrInvalidCatalog, entry.Code, existing.Code)
		}
		m[key] = entry
	}
	return &Catalog{entries: m}, nil
}

// Lookup returns the entry for a lowercase code. No pattern matching or
// folding is applied to code.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	entry, ok := c.entries[code]
	return entry, ok
}

// Len returns the number of codes.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Codes returns all lookup keys sorted.
func (c *Catalog) Codes() []string {
	codes := make([]string, 0, len(c.entries))
	for code := range c.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Load reads a catalog from a YAML or JSON file shaped as
// code -> {title: ..., other fields...}.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidCatalog, path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML or JSON bytes.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no entries defined", ErrInvalidCatalog)
	}

	entries := make([]Entry, 0, len(raw))
	for code, fields := range raw {
		entry := Entry{
			Code:  code,
			Extra: make(map[string]string),
		}
		for key, value := range fields {
			if value == nil {
				continue
			}
			entry.Extra[key] = fmt.Sprint(value)
		}
		for _, field := range titleFields {
			if title, ok := entry.Extra[field]; ok {
				entry.Title = title
				delete(entry.Extra, field)
				break
			}
		}
		entries = append(entries, entry)
	}

	return NewCatalog(entries)
}
