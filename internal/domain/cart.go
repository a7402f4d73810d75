package domain

import (
	"encoding/json"
	"fmt"
)

// CartItem is one transaction line. The JSON layout matches the records the terminal has
// always persisted, so field names are camelCase. Keys this type does not model are kept
// in Extra and written back untouched.
//
// Items read from old data lack CategoryName and ProductTypeName; migration fills them in
// without touching ProductID or Price.
type CartItem struct {
	ProductID       Ref     `json:"productId"`
	ProductName     string  `json:"productName" validate:"required"`
	Size            Size    `json:"size" validate:"required"`
	Unit            string  `json:"unit,omitempty"`
	Type            string  `json:"type,omitempty"`
	Quantity        float64 `json:"quantity" validate:"gt=0"`
	Price           float64 `json:"price" validate:"gte=0"`
	CategoryName    string  `json:"categoryName,omitempty"`
	ProductTypeName string  `json:"productTypeName,omitempty"`
	DisplayName     string  `json:"displayName,omitempty"`

	Extra  map[string]json.RawMessage `json:"-"`
	tokens rawTokens
}

// OrderItem lines share the cart item layout.
type OrderItem = CartItem

type cartItemFields CartItem

var cartItemKeys = []string{
	"productId", "productName", "size", "unit", "type", "quantity", "price",
	"categoryName", "productTypeName", "displayName",
}

func (c *CartItem) UnmarshalJSON(b []byte) error {
	var fields cartItemFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("domain: decode cart item: %w", err)
	}
	extra, tokens, err := splitRecord(b, cartItemKeys, []string{"productId", "size"})
	if err != nil {
		return fmt.Errorf("domain: decode cart item: %w", err)
	}
	*c = CartItem(fields)
	c.Extra = extra
	c.tokens = tokens
	return nil
}

func (c CartItem) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(cartItemFields(c))
	if err != nil {
		return nil, err
	}
	return joinRecord(known, c.Extra, c.tokens, map[string]string{
		"productId": c.ProductID.String(),
		"size":      c.Size.String(),
	})
}

// IsMigrated reports whether both hierarchy fields are present.
func (c CartItem) IsMigrated() bool {
	return c.CategoryName != "" && c.ProductTypeName != ""
}

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderUnpaid    OrderStatus = "Unpaid"
	OrderCompleted OrderStatus = "Completed"
)

// Order groups the lines sold to one client. Keys the terminal stored that this type does
// not model are kept in Extra and written back untouched.
type Order struct {
	ID         Ref         `json:"id"`
	ClientID   Ref         `json:"clientId"`
	ClientName string      `json:"clientName"`
	Items      []OrderItem `json:"items"`
	Total      float64     `json:"total"`
	Status     OrderStatus `json:"status"`
	Date       string      `json:"date"`

	Extra  map[string]json.RawMessage `json:"-"`
	tokens rawTokens
}

type orderFields Order

var orderKeys = []string{"id", "clientId", "clientName", "items", "total", "status", "date"}

func (o *Order) UnmarshalJSON(b []byte) error {
	var fields orderFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("domain: decode order: %w", err)
	}
	extra, tokens, err := splitRecord(b, orderKeys, []string{"id", "clientId"})
	if err != nil {
		return fmt.Errorf("domain: decode order: %w", err)
	}
	*o = Order(fields)
	o.Extra = extra
	o.tokens = tokens
	return nil
}

func (o Order) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(orderFields(o))
	if err != nil {
		return nil, err
	}
	return joinRecord(known, o.Extra, o.tokens, map[string]string{
		"id":       o.ID.String(),
		"clientId": o.ClientID.String(),
	})
}
