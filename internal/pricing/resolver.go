// Package pricing derives prices and costs from a product's tiered reference tables.
//
// A tiered string is a "/"-separated list such as "1/2/3.5"; the quantities, suggested
// prices and costs of a product are aligned by position. Lengths are only compared, never
// repaired, so a mismatched table falls back to the scalar rule or to zero.
package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pos-inventory-service/internal/domain"
)

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.\-]`)
	numericPrefix = regexp.MustCompile(`^-?(\d+(\.\d+)?|\.\d+)`)
	halfCent      = decimal.New(5, -3)
)

// Split breaks a tiered string into trimmed tokens. An empty string yields no tokens.
func Split(tiered string) []string {
	if strings.TrimSpace(tiered) == "" {
		return nil
	}
	parts := strings.Split(tiered, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParseNumber drops everything that is not a digit, "." or "-" and reads the longest
// number at the start of what is left, so "3.5g" reads as 3.5, "$30" as 30, "3.5g-pack"
// as 3.5 and "1.2.3" as 1.2.
func ParseNumber(token string) (float64, bool) {
	cleaned := numericPrefix.FindString(nonNumeric.ReplaceAllString(token, ""))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseQuantity reads the numeric part of a size label ("1g" → 1). Labels without a
// number, such as "unit", report false.
func ParseQuantity(size string) (float64, bool) {
	return ParseNumber(size)
}

type tier struct {
	quantity float64
	amount   float64
	ok       bool
}

func parseTiers(quantities, amounts []string) []tier {
	tiers := make([]tier, len(quantities))
	for i := range quantities {
		q, qOK := ParseNumber(quantities[i])
		a, aOK := ParseNumber(amounts[i])
		tiers[i] = tier{quantity: q, amount: a, ok: qOK && aOK}
	}
	return tiers
}

// ResolveAmount computes the amount (price or cost) for requested units of a product
// whose reference table is quantities × amounts.
//
//  1. A tier whose quantity equals requested returns its amount as entered.
//  2. For weighed or measured goods the smallest positive tier sets a per-unit rate and
//     the result is requested × rate, rounded to cents.
//  3. A single amount is a flat per-unit price: requested × amount.
//  4. Anything else resolves to 0.
func ResolveAmount(quantities, amounts []string, requested float64, kind domain.UnitKind) float64 {
	if len(amounts) == 0 || math.IsNaN(requested) || math.IsInf(requested, 0) || requested < 0 {
		return 0
	}

	if len(quantities) == len(amounts) {
		tiers := parseTiers(quantities, amounts)
		if i, ok := matchTier(tiers, requested); ok {
			return tiers[i].amount
		}
		if kind != domain.UnitPiece {
			if rate, ok := smallestTierRate(tiers); ok {
				return Round(requested * rate)
			}
		}
	}

	if len(amounts) == 1 {
		if a, ok := ParseNumber(amounts[0]); ok {
			return requested * a
		}
	}
	return 0
}

func matchTier(tiers []tier, requested float64) (int, bool) {
	for i, t := range tiers {
		if t.ok && t.quantity == requested {
			return i, true
		}
	}
	return -1, false
}

// smallestTierRate uses the smallest package as the rate anchor; it carries the least
// bulk discount.
func smallestTierRate(tiers []tier) (float64, bool) {
	best := -1
	for i, t := range tiers {
		if !t.ok || t.quantity <= 0 {
			continue
		}
		if best < 0 || t.quantity < tiers[best].quantity {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	rate := tiers[best].amount / tiers[best].quantity
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// Round rounds v to two decimal places, half away from zero.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Differs reports whether two money amounts differ by more than half a cent.
func Differs(a, b float64) bool {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().GreaterThan(halfCent)
}

// IsTiered reports whether the product's three tiered strings line up with more than one
// tier each.
func IsTiered(p domain.Product) bool {
	q, pr, c := p.Tiers()
	qs := Split(q)
	return len(qs) > 1 && len(qs) == len(Split(pr)) && len(qs) == len(Split(c))
}

// Quote is the priced result for a requested quantity of one product.
type Quote struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"`
	Margin    float64 `json:"margin"`
	ExactTier bool    `json:"exact_tier"`
	Tiered    bool    `json:"tiered"`
}

// Resolver applies ResolveAmount to a product's price and cost tables.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Price resolves the selling price of qty units of p.
func (r *Resolver) Price(p domain.Product, qty float64) float64 {
	q, prices, _ := p.Tiers()
	return ResolveAmount(Split(q), Split(prices), qty, p.UnitKind)
}

// Cost resolves the purchase cost of qty units of p.
func (r *Resolver) Cost(p domain.Product, qty float64) float64 {
	q, _, costs := p.Tiers()
	return ResolveAmount(Split(q), Split(costs), qty, p.UnitKind)
}

// Quote prices qty units of p.
func (r *Resolver) Quote(p domain.Product, qty float64) Quote {
	price := r.Price(p, qty)
	cost := r.Cost(p, qty)

	q, prices, _ := p.Tiers()
	quantities := Split(q)
	exact := false
	if amounts := Split(prices); len(quantities) > 0 && len(quantities) == len(amounts) {
		_, exact = matchTier(parseTiers(quantities, amounts), qty)
	}

	return Quote{
		ProductID: p.ID,
		Quantity:  qty,
		Price:     price,
		Cost:      cost,
		Margin:    decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(cost)).Round(2).InexactFloat64(),
		ExactTier: exact,
		Tiered:    IsTiered(p),
	}
}
