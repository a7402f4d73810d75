// Package legacy maps free-form product names from historical records onto the catalog.
package legacy

import (
	"sort"
	"strings"
	"unicode"

	"pos-inventory-service/internal/catalog"
)

// LegacyCategory collects items whose product could not be placed in the catalog.
const LegacyCategory = "Legacy"

// missingType stands in for an absent type in display names. Names stored by earlier
// releases contain it, so it is kept to let them compare equal.
const missingType = "undefined"

// Mapping is where a historical product name lands in the catalog.
type Mapping struct {
	Category    string `json:"category"`
	ProductType string `json:"productType"`
	Type        string `json:"type,omitempty"`
}

// Mapper resolves names against an injected catalog.
type Mapper struct {
	catalog *catalog.Catalog
	aliases []catalog.Alias
}

// NewMapper builds a Mapper. Aliases are tried longest pattern first.
func NewMapper(c *catalog.Catalog) *Mapper {
	var aliases []catalog.Alias
	if c != nil {
		aliases = append(aliases, c.Aliases...)
	}
	sort.SliceStable(aliases, func(i, j int) bool {
		return len(aliases[i].Pattern) > len(aliases[j].Pattern)
	})
	return &Mapper{catalog: c, aliases: aliases}
}

// Catalog returns the catalog the mapper reads.
func (m *Mapper) Catalog() *catalog.Catalog {
	return m.catalog
}

// MapLegacyProduct places name in the catalog. It never fails: a name that matches no
// product, alias or leading word maps to the Legacy category with itself as product type.
func (m *Mapper) MapLegacyProduct(name string) Mapping {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Mapping{Category: LegacyCategory}
	}
	if m.catalog.Empty() {
		return Mapping{Category: LegacyCategory, ProductType: name}
	}

	if cat, product, _, ok := m.catalog.FindProduct(trimmed); ok {
		return Mapping{Category: cat, ProductType: product}
	}

	lower := strings.ToLower(trimmed)
	for _, a := range m.aliases {
		if !hasWordPrefix(lower, strings.ToLower(strings.TrimSpace(a.Pattern))) {
			continue
		}
		if cat, product, _, ok := m.catalog.FindProduct(a.Product); ok {
			return Mapping{Category: cat, ProductType: product, Type: a.Type}
		}
	}

	if words := strings.Fields(trimmed); len(words) > 1 {
		if cat, product, _, ok := m.catalog.FindProduct(words[0]); ok {
			return Mapping{Category: cat, ProductType: product}
		}
	}

	return Mapping{Category: LegacyCategory, ProductType: name}
}

func hasWordPrefix(s, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(s, prefix) {
		return false
	}
	if len(s) == len(prefix) {
		return true
	}
	next := rune(s[len(prefix)])
	return !unicode.IsLetter(next) && !unicode.IsDigit(next)
}

// IsProductInNewStructure reports whether name is a catalog product and, when typ is
// given, whether the product defines that type.
func (m *Mapper) IsProductInNewStructure(name, typ string) bool {
	_, _, e, ok := m.catalog.FindProduct(name)
	if !ok {
		return false
	}
	if typ == "" {
		return true
	}
	_, ok = e.Types[typ]
	return ok
}

// AvailableSizes lists the size labels of name (or of its type typ), cheapest first.
// Unknown products and types, and typed products asked without a type, give an empty list.
func (m *Mapper) AvailableSizes(name, typ string) []string {
	sizes := []string{}
	_, _, e, ok := m.catalog.FindProduct(name)
	if !ok {
		return sizes
	}
	table, ok := e.SizeTable(typ)
	if !ok {
		return sizes
	}
	for label := range table {
		sizes = append(sizes, label)
	}
	sort.Slice(sizes, func(i, j int) bool {
		pi, pj := table[sizes[i]], table[sizes[j]]
		if pi != pj {
			return pi < pj
		}
		return sizes[i] < sizes[j]
	})
	return sizes
}

// Price returns the catalog price of size for name (and typ). The boolean is false when
// any part is unknown.
func (m *Mapper) Price(name, size, typ string) (float64, bool) {
	_, _, e, ok := m.catalog.FindProduct(name)
	if !ok {
		return 0, false
	}
	table, ok := e.SizeTable(typ)
	if !ok {
		return 0, false
	}
	price, ok := table[size]
	return price, ok
}

// CreateDisplayName joins name, type and size with " > ". An empty typ is written as
// "undefined"; an empty size is left out.
func CreateDisplayName(name, typ, size string) string {
	if typ == "" {
		typ = missingType
	}
	parts := []string{name, typ}
	if size != "" {
		parts = append(parts, size)
	}
	return strings.Join(parts, " > ")
}
