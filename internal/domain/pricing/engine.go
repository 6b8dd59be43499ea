package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Engine prices courses against the catalog. It holds no state beyond the
// catalog handle and is safe for concurrent use.
type Engine struct {
	catalog Catalog
}

// NewEngine creates an Engine over the given catalog.
func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Quote computes the effective price of a course for a user at the given
// instant. Every quote inside one caller operation should share a single
// asOf so a cart is never priced against different instants.
//
// Unknown course ids propagate the catalog's not-found error unchanged.
func (e *Engine) Quote(ctx context.Context, courseID int, userID string, asOf time.Time) (*Quote, error) {
	pc, err := e.catalog.GetPriceable(ctx, courseID)
	if err != nil {
		return nil, errors.Wrapf(err, "priceable course %d", courseID)
	}

	q := &Quote{
		CourseID:  courseID,
		BasePrice: pc.BasePrice,
	}

	price := pc.BasePrice
	if best := bestDiscount(pc.BasePrice, pc.Discounts, asOf); best != nil {
		price = floorAtZero(price.Sub(best.Kind.Reduction(pc.BasePrice, best.Value)))
		q.Discount = best
	}

	// Coupons gate on the discounted price, so discount selection always
	// runs first. A coupon never raises the price.
	if best := bestCoupon(price, pc.Coupons, userID, asOf); best != nil {
		price = floorAtZero(price.Sub(best.Kind.Reduction(price, best.Value)))
		q.Coupon = best
	}

	q.FinalPrice = price.Round(2)
	return q, nil
}

// bestDiscount selects the active rule with the maximum reduction against
// the base price. Ties break toward the lowest rule id so selection stays
// deterministic regardless of catalog ordering.
func bestDiscount(base decimal.Decimal, rules []DiscountRule, asOf time.Time) *DiscountRule {
	var (
		best          *DiscountRule
		bestReduction decimal.Decimal
	)
	for i := range rules {
		r := &rules[i]
		if !r.ActiveAt(asOf) {
			continue
		}
		reduction := r.Kind.Reduction(base, r.Value)
		switch {
		case best == nil,
			reduction.GreaterThan(bestReduction),
			reduction.Equal(bestReduction) && r.ID < best.ID:
			best = r
			bestReduction = reduction
		}
	}
	return best
}

// bestCoupon selects the qualifying coupon with the maximum reduction
// against the discounted price, with the same lowest-id tie-break as
// bestDiscount.
func bestCoupon(price decimal.Decimal, coupons []CouponRule, userID string, asOf time.Time) *CouponRule {
	var (
		best          *CouponRule
		bestReduction decimal.Decimal
	)
	for i := range coupons {
		c := &coupons[i]
		if !c.AppliesTo(userID, price, asOf) {
			continue
		}
		reduction := c.Kind.Reduction(price, c.Value)
		switch {
		case best == nil,
			reduction.GreaterThan(bestReduction),
			reduction.Equal(bestReduction) && c.ID < best.ID:
			best = c
			bestReduction = reduction
		}
	}
	return best
}

// floorAtZero clamps negative prices to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
