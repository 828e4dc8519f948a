// Package cart resolves line prices, bundle assignments and discount totals.
//
// Resolve is a full recompute: every pass starts from the variation's stored
// prices, so running it twice on an unchanged cart gives the same output.
package cart

import (
	"cmp"
	"slices"
	"time"

	"github.com/dukerupert/cartwright/internal/bundle"
	"github.com/dukerupert/cartwright/internal/discount"
	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/pricing"
	"github.com/google/uuid"
)

// Rules is the promotion snapshot used for one resolve pass.
type Rules struct {
	// Discount is the rule behind the cart's code, nil when no code is set or
	// the code no longer exists.
	Discount *domain.DiscountRule

	// Bundles holds the active bundles by id.
	Bundles map[uuid.UUID]domain.BundleRule
}

// Engine runs resolve passes. The zero value uses time.Now.
type Engine struct {
	Now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// unit is one bundle-eligible unit of a line.
type unit struct {
	line  int
	price domain.Money
}

// Resolve prices every line of c against variations (keyed by SKU) and rules.
// A cart line whose SKU has no variation is a data-integrity failure and
// returns an internal error.
func (e *Engine) Resolve(c *domain.Cart, variations map[string]domain.Variation, rules Rules) (*domain.ResolvedCart, error) {
	const op = "cart.resolve"
	now := e.now()
	currency := c.Currency

	lines := slices.Clone(c.Lines)
	resolved := &domain.ResolvedCart{
		CartID:       c.ID,
		Currency:     currency,
		DiscountCode: c.DiscountCode,
	}

	// Refresh unit prices and collect the snapshot discount validation needs.
	var gross domain.Money
	snapshot := discount.CartSnapshot{Currency: currency}
	for i := range lines {
		v, ok := variations[lines[i].SKU]
		if !ok {
			return nil, domain.Internal(nil, op, "cart references missing variation "+lines[i].SKU)
		}
		price := pricing.EffectivePrice(&v, currency, now)
		lines[i].UnitPrice = price
		lines[i].DiscountUnitPrice = price
		lines[i].BundleUnitPrice = 0
		lines[i].BundleQuantity = 0
		lines[i].BundleTitle = ""
		gross += price * domain.Money(lines[i].Quantity)
		snapshot.Variations = append(snapshot.Variations, v)
	}
	snapshot.Subtotal = gross

	var rule *domain.DiscountRule
	kind := domain.AmountNone
	if c.DiscountCode != "" {
		result := discount.Validate(rules.Discount, snapshot, now)
		if result.Valid() {
			k, err := result.Rule.Kind()
			if err != nil {
				return nil, err
			}
			rule, kind = result.Rule, k
		}
		resolved.DiscountReason = string(result.Reason)
	}

	// Per-unit discounts and bundle candidate collection.
	groups := make(map[uuid.UUID][]unit)
	for i := range lines {
		v := variations[lines[i].SKU]
		promotable := pricing.Promotable(&v, currency, now)

		if rule != nil && discountEligible(rule, kind, &v, promotable) && (kind == domain.AmountPercent || kind == domain.AmountDeduct) {
			amount, err := discount.Amount(rule, lines[i].UnitPrice, currency)
			if err != nil {
				return nil, err
			}
			lines[i].DiscountUnitPrice = lines[i].UnitPrice - amount
			resolved.Savings += amount * domain.Money(lines[i].Quantity)
		}

		if !promotable || v.BundleID == nil {
			continue
		}
		b, ok := rules.Bundles[*v.BundleID]
		if !ok || !bundle.ActiveFor(&b, currency, now) {
			continue
		}
		for range lines[i].Quantity {
			groups[b.ID] = append(groups[b.ID], unit{line: i, price: lines[i].DiscountUnitPrice})
		}
	}

	resolved.Bundles = assignBundles(lines, groups, rules.Bundles, currency)

	for i := range lines {
		lines[i].TotalPrice = lines[i].Total()
		resolved.Subtotal += lines[i].TotalPrice
	}
	resolved.Lines = lines

	if rule != nil {
		resolved.DiscountApplied = true
		resolved.FreeShipping = rule.FreeShipping
		if kind == domain.AmountExact {
			resolved.DiscountTotal = min(rule.Exact[currency], exactBase(rule, lines, variations, resolved.Subtotal))
		}
	}
	resolved.Total = resolved.Subtotal - resolved.DiscountTotal

	return resolved, nil
}

// discountEligible: exact rules cover every line; percent and deduct rules
// skip lines on sale or marked down and respect the rule's scope.
func discountEligible(rule *domain.DiscountRule, kind domain.AmountKind, v *domain.Variation, promotable bool) bool {
	if kind == domain.AmountExact {
		return true
	}
	return promotable && discount.AppliesTo(rule, v)
}

// exactBase is what an exact amount may take off: the whole subtotal, or only
// the lines inside the rule's scope when it has one.
func exactBase(rule *domain.DiscountRule, lines []domain.LineItem, variations map[string]domain.Variation, subtotal domain.Money) domain.Money {
	if rule.Scope.Empty() {
		return subtotal
	}
	var base domain.Money
	for _, l := range lines {
		v := variations[l.SKU]
		if discount.AppliesTo(rule, &v) {
			base += l.TotalPrice
		}
	}
	return base
}

// assignBundles commits bundle chunks per group. Units are taken most
// expensive first in chunks of the required quantity; a chunk is committed
// only while its discounted sum is strictly above what the chunk is charged
// (the rounded bundle unit price times the required quantity), and the first
// chunk that fails stops the group.
func assignBundles(lines []domain.LineItem, groups map[uuid.UUID][]unit, bundles map[uuid.UUID]domain.BundleRule, currency string) []domain.BundleAssignment {
	ids := make([]uuid.UUID, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(x, y uuid.UUID) int { return cmp.Compare(x.String(), y.String()) })

	var assignments []domain.BundleAssignment
	for _, id := range ids {
		b := bundles[id]
		units := groups[id]
		if len(units) == 0 || b.RequiredQuantity < 1 {
			continue
		}
		slices.SortStableFunc(units, func(x, y unit) int { return cmp.Compare(y.price, x.price) })

		unitPrice := bundle.UnitPrice(&b, currency)
		charged := unitPrice * domain.Money(b.RequiredQuantity)
		title := b.Titles[currency]
		assignment := domain.BundleAssignment{BundleID: id, Title: title, UnitPrice: unitPrice}

		for start := 0; start < len(units); start += b.RequiredQuantity {
			end := start + b.RequiredQuantity
			if end > len(units) {
				break
			}
			var sum domain.Money
			for _, u := range units[start:end] {
				sum += u.price
			}
			if sum <= charged {
				break
			}
			for _, u := range units[start:end] {
				lines[u.line].BundleQuantity++
				lines[u.line].BundleUnitPrice = unitPrice
				lines[u.line].BundleTitle = title
			}
			assignment.Chunks++
			assignment.Units += b.RequiredQuantity
			assignment.Savings += sum - charged
		}

		if assignment.Chunks > 0 {
			assignments = append(assignments, assignment)
		}
	}
	return assignments
}
