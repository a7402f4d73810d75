// Package repair validates items against the catalog and repairs malformed records.
//
// Nothing here returns an error for bad input: validators report results, and repairs
// always produce a usable item, falling back to the Legacy category.
package repair

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"pos-inventory-service/internal/catalog"
	"pos-inventory-service/internal/domain"
)

// Result is the outcome of a single catalog check.
type Result struct {
	IsValid bool   `json:"isValid"`
	Error   string `json:"error,omitempty"`
}

func valid() Result { return Result{IsValid: true} }

func invalid(format string, args ...interface{}) Result {
	return Result{IsValid: false, Error: fmt.Sprintf(format, args...)}
}

// ItemResult collects every structural problem of a cart item.
type ItemResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Migrator upgrades a legacy item. migration.Service satisfies it.
type Migrator interface {
	MigrateCartItem(item domain.CartItem) domain.CartItem
}

// Repairer validates and repairs items against an injected catalog.
type Repairer struct {
	catalog  *catalog.Catalog
	migrator Migrator
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewRepairer creates a Repairer. A nil or empty catalog is tolerated; see
// IsCategoryConfigAvailable.
func NewRepairer(c *catalog.Catalog, migrator Migrator, logger zerolog.Logger) *Repairer {
	return &Repairer{
		catalog:  c,
		migrator: migrator,
		validate: validator.New(),
		logger:   logger.With().Str("component", "repair").Logger(),
	}
}

// findCategory matches a category id first, then a display name ignoring case.
func (r *Repairer) findCategory(name string) (catalog.Category, bool) {
	if cat, ok := r.catalog.Category(name); ok {
		return cat, true
	}
	for _, id := range r.catalog.CategoryIDs() {
		if cat := r.catalog.Categories[id]; strings.EqualFold(cat.Name, name) {
			return cat, true
		}
	}
	return catalog.Category{}, false
}

// ValidateCategory checks that name is a known category.
func (r *Repairer) ValidateCategory(name string) Result {
	if name == "" {
		return invalid("Category name is required")
	}
	if _, ok := r.findCategory(name); !ok {
		return invalid(`Category "%s" not found`, name)
	}
	return valid()
}

// ValidateProduct checks the category, then that product belongs to it.
func (r *Repairer) ValidateProduct(category, product string) Result {
	if res := r.ValidateCategory(category); !res.IsValid {
		return res
	}
	cat, _ := r.findCategory(category)
	if _, ok := cat.Products[product]; !ok {
		return invalid(`Product "%s" not found in category "%s"`, product, category)
	}
	return valid()
}

// ValidateSize checks that size can be sold for product (and typ, for products defined by
// types). Products with AllowCustom also accept any positive amount of that unit.
func (r *Repairer) ValidateSize(category, product, size, typ string) Result {
	if res := r.ValidateProduct(category, product); !res.IsValid {
		return res
	}
	cat, _ := r.findCategory(category)
	entry := cat.Products[product]

	table := entry.Sizes
	if entry.HasTypes() {
		if typ == "" {
			return invalid("Type name is required for this product")
		}
		sizes, ok := entry.Types[typ]
		if !ok {
			return invalid(`Type "%s" not found for product "%s"`, typ, product)
		}
		table = sizes
	}

	if _, ok := table[size]; ok {
		return valid()
	}
	if isCustomSize(size, entry.AllowCustom) {
		return valid()
	}
	return invalid(`Size "%s" not available for product "%s"`, size, product)
}

func isCustomSize(size, unit string) bool {
	if unit == "" || !strings.HasSuffix(size, unit) {
		return false
	}
	q, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(size, unit)), 64)
	return err == nil && q > 0 && !math.IsInf(q, 0)
}

var cartItemMessages = map[string]string{
	"ProductName": "Product name is missing",
	"Size":        "Size is missing",
	"Quantity":    "Quantity must be greater than 0",
	"Price":       "Price cannot be negative",
}

// ValidateCartItem checks the structure of item without consulting the catalog and
// reports every failing field.
func (r *Repairer) ValidateCartItem(item domain.CartItem) ItemResult {
	errs := []string{}
	err := r.validate.Struct(item)

	var fieldErrs validator.ValidationErrors
	switch {
	case err == nil:
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			if msg, ok := cartItemMessages[fe.Field()]; ok {
				errs = append(errs, msg)
			} else {
				errs = append(errs, fe.Error())
			}
		}
	default:
		errs = append(errs, ErrorMessage(err))
	}
	return ItemResult{IsValid: len(errs) == 0, Errors: errs}
}

// IsCategoryConfigAvailable reports whether a usable catalog was loaded.
func (r *Repairer) IsCategoryConfigAvailable() bool {
	return !r.catalog.Empty()
}

// FallbackCategories is the single synthetic category used when no catalog is available.
func FallbackCategories() []catalog.Category {
	return []catalog.Category{{ID: "products", Name: "Products", Products: map[string]catalog.Entry{}}}
}

// Categories returns the catalog's categories in id order, or FallbackCategories when
// the catalog is unavailable.
func (r *Repairer) Categories() []catalog.Category {
	if !r.IsCategoryConfigAvailable() {
		r.logger.Warn().Msg("category configuration unavailable, serving fallback categories")
		return FallbackCategories()
	}
	ids := r.catalog.CategoryIDs()
	cats := make([]catalog.Category, 0, len(ids))
	for _, id := range ids {
		cats = append(cats, r.catalog.Categories[id])
	}
	return cats
}
