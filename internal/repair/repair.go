package repair

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pos-inventory-service/internal/domain"
	"pos-inventory-service/internal/legacy"
)

const unexpectedErrorMessage = "An unexpected error occurred. Please try again."

var errNoMigrator = errors.New("repair: no migrator configured")

// ErrorMessage turns any failure value into text for the user.
func ErrorMessage(v interface{}) string {
	switch e := v.(type) {
	case error:
		return e.Error()
	case string:
		return e
	}
	return unexpectedErrorMessage
}

// WithErrorBoundary runs op and returns fallback if op fails or panics. Failures are
// logged with where.
func WithErrorBoundary[T any](logger zerolog.Logger, op func() (T, error), fallback T, where string) (result T) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Str("context", where).
				Str("panic", fmt.Sprint(rec)).
				Msg("recovered from panic, using fallback")
			result = fallback
		}
	}()

	v, err := op()
	if err != nil {
		logger.Error().Err(err).Str("context", where).Msg("operation failed, using fallback")
		return fallback
	}
	return v
}

// RepairCartItem returns item unchanged when it already has both hierarchy fields and a
// migrated copy otherwise. If migration fails the item is filed under Legacy.
func (r *Repairer) RepairCartItem(item domain.CartItem) domain.CartItem {
	if item.CategoryName != "" && item.ProductTypeName != "" {
		return item
	}
	if strings.TrimSpace(item.ProductName) == "" {
		return fallbackItem(item)
	}
	return WithErrorBoundary(r.logger, func() (domain.CartItem, error) {
		if r.migrator == nil {
			return domain.CartItem{}, errNoMigrator
		}
		return r.migrator.MigrateCartItem(item), nil
	}, fallbackItem(item), "repair cart item")
}

func fallbackItem(item domain.CartItem) domain.CartItem {
	out := item
	out.CategoryName = legacy.LegacyCategory
	out.ProductTypeName = strings.TrimSpace(item.ProductName)
	out.DisplayName = CreateFallbackDisplayName(out)
	return out
}

// RepairOrder repairs every line of order. An order without lines is returned as is.
func (r *Repairer) RepairOrder(order domain.Order) domain.Order {
	if len(order.Items) == 0 {
		return order
	}
	out := order
	out.Items = make([]domain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		out.Items[i] = r.RepairCartItem(item)
	}
	return out
}

// CreateFallbackDisplayName builds "category > product > type - {size}{unit}" from
// whatever parts item has. The product part falls back to ProductName, and an item
// with no parts at all is called "Unknown item".
func CreateFallbackDisplayName(item domain.CartItem) string {
	var parts []string
	if item.CategoryName != "" {
		parts = append(parts, item.CategoryName)
	}
	switch {
	case item.ProductTypeName != "":
		parts = append(parts, item.ProductTypeName)
	case strings.TrimSpace(item.ProductName) != "":
		parts = append(parts, strings.TrimSpace(item.ProductName))
	}
	if item.Type != "" {
		parts = append(parts, item.Type)
	}

	name := strings.Join(parts, " > ")
	if name == "" {
		name = "Unknown item"
	}
	if item.Size != "" {
		name += " - " + item.Size.String() + item.Unit
	}
	return name
}
