// Package catalog holds the static category → product → (type →) size price table.
//
// A Catalog is built once at startup and only read afterwards; it is safe to share.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Predefined errors for catalog loading.
var (
	ErrInvalidEntry = errors.New("catalog: entry must define exactly one of sizes or types")
	ErrUnknownAlias = errors.New("catalog: alias targets an unknown product")
	ErrEmptyCatalog = errors.New("catalog: no categories defined")
)

// Entry is the size table of one product. Exactly one of Sizes or Types is set.
type Entry struct {
	Sizes       map[string]float64            `yaml:"sizes,omitempty" json:"sizes,omitempty"`
	Types       map[string]map[string]float64 `yaml:"types,omitempty" json:"types,omitempty"`
	AllowCustom string                        `yaml:"allowCustom,omitempty" json:"allowCustom,omitempty"`
}

// HasTypes reports whether sizes hang off named types rather than the product.
func (e Entry) HasTypes() bool {
	return len(e.Types) > 0
}

// SizeTable returns the size → price map for typ. An empty typ selects the product's
// own sizes.
func (e Entry) SizeTable(typ string) (map[string]float64, bool) {
	if typ == "" {
		return e.Sizes, len(e.Sizes) > 0
	}
	sizes, ok := e.Types[typ]
	return sizes, ok
}

// Category groups products under a display name.
type Category struct {
	ID       string           `yaml:"-" json:"id"`
	Name     string           `yaml:"name" json:"name"`
	Products map[string]Entry `yaml:"products" json:"products,omitempty"`
}

// Alias maps historical product names to a catalog product. Names equal to Pattern or
// starting with it as a whole word match, case-insensitively.
type Alias struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Product string `yaml:"product" json:"product"`
	Type    string `yaml:"type,omitempty" json:"type,omitempty"`
}

// Catalog is the read-only product reference table.
type Catalog struct {
	Categories map[string]Category `yaml:"categories" json:"categories"`
	Aliases    []Alias             `yaml:"aliases" json:"aliases,omitempty"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	for id, cat := range c.Categories {
		cat.ID = id
		if cat.Name == "" {
			cat.Name = id
		}
		c.Categories[id] = cat
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the sizes/types invariant and that every alias resolves.
func (c *Catalog) Validate() error {
	if c == nil || len(c.Categories) == 0 {
		return ErrEmptyCatalog
	}
	for _, id := range c.CategoryIDs() {
		for _, name := range c.ProductNames(id) {
			e := c.Categories[id].Products[name]
			if (len(e.Sizes) > 0) == e.HasTypes() {
				return fmt.Errorf("%w: %s/%s", ErrInvalidEntry, id, name)
			}
		}
	}
	for _, a := range c.Aliases {
		_, product, e, ok := c.FindProduct(a.Product)
		if !ok || strings.TrimSpace(a.Pattern) == "" {
			return fmt.Errorf("%w: %q → %q", ErrUnknownAlias, a.Pattern, a.Product)
		}
		if a.Type != "" {
			if _, ok := e.Types[a.Type]; !ok {
				return fmt.Errorf("%w: %q → %s/%s", ErrUnknownAlias, a.Pattern, product, a.Type)
			}
		}
	}
	return nil
}

// Empty reports whether the catalog has no categories.
func (c *Catalog) Empty() bool {
	return c == nil || len(c.Categories) == 0
}

// CategoryIDs returns category ids in sorted order.
func (c *Catalog) CategoryIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Categories))
	for id := range c.Categories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Category looks up a category by id.
func (c *Catalog) Category(id string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	cat, ok := c.Categories[id]
	return cat, ok
}

// ProductNames returns the product names of a category in sorted order.
func (c *Catalog) ProductNames(categoryID string) []string {
	cat, ok := c.Category(categoryID)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(cat.Products))
	for name := range cat.Products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Product looks up a product by exact name within a category.
func (c *Catalog) Product(categoryID, name string) (Entry, bool) {
	cat, ok := c.Category(categoryID)
	if !ok {
		return Entry{}, false
	}
	e, ok := cat.Products[name]
	return e, ok
}

// FindProduct searches every category for name. An exact match wins over a
// case-insensitive one; categories are searched in sorted order.
func (c *Catalog) FindProduct(name string) (categoryID, product string, entry Entry, ok bool) {
	ids := c.CategoryIDs()
	for _, id := range ids {
		if e, found := c.Categories[id].Products[name]; found {
			return id, name, e, true
		}
	}
	for _, id := range ids {
		for _, p := range c.ProductNames(id) {
			if strings.EqualFold(p, name) {
				return id, p, c.Categories[id].Products[p], true
			}
		}
	}
	return "", "", Entry{}, false
}
