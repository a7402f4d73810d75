package domain

import (
	"time"
)

// UnitKind tells how a product is measured when it is sold.
type UnitKind string

const (
	UnitGram       UnitKind = "g"
	UnitMilliliter UnitKind = "ml"
	UnitPiece      UnitKind = "unit"
)

// Valid reports whether k is one of the known unit kinds.
func (k UnitKind) Valid() bool {
	switch k {
	case UnitGram, UnitMilliliter, UnitPiece:
		return true
	}
	return false
}

// Product represents a stocked item in the terminal's inventory.
//
// SuggestedPrice, Cost and ReferenceQuantity are tiered strings: values joined by "/"
// and aligned by position, so the i-th reference quantity sells for the i-th suggested
// price and costs the i-th cost. A nil pointer means the column is NULL.
type Product struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	UnitKind          UnitKind  `json:"unit_kind"`
	Stock             int32     `json:"stock"`
	Price             float64   `json:"price"`
	SuggestedPrice    *string   `json:"suggested_price,omitempty"`
	Cost              *string   `json:"cost,omitempty"`
	ReferenceQuantity *string   `json:"reference_quantity,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Tiers returns the three tiered strings, with NULL columns read as "".
func (p Product) Tiers() (quantities, prices, costs string) {
	return deref(p.ReferenceQuantity), deref(p.SuggestedPrice), deref(p.Cost)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
