// Package pricing computes the effective price of a catalog course at a
// point in time by stacking promotional rules in a fixed order: the best
// active discount first, then the best qualifying coupon, floored at zero.
package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownKind is returned when a rule carries a kind outside the closed
// Percentage/FlatValue set, which indicates corrupt rule data.
var ErrUnknownKind = errors.New("unknown rule kind")

// RuleKind is the closed set of reduction formulas a rule can carry.
type RuleKind uint8

const (
	// Percentage reduces the price by value percent of the base.
	Percentage RuleKind = iota + 1
	// FlatValue reduces the price by a fixed amount.
	FlatValue
)

var hundred = decimal.NewFromInt(100)

// Reduction computes how much a rule of this kind takes off the given base
// price. Unknown kinds reduce nothing.
func (k RuleKind) Reduction(base, value decimal.Decimal) decimal.Decimal {
	switch k {
	case Percentage:
		return base.Mul(value).Div(hundred)
	case FlatValue:
		return value
	default:
		return decimal.Zero
	}
}

func (k RuleKind) String() string {
	switch k {
	case Percentage:
		return "percentage"
	case FlatValue:
		return "flat_value"
	default:
		return "unknown"
	}
}

// ParseRuleKind maps a stored kind name to its RuleKind.
func ParseRuleKind(s string) (RuleKind, error) {
	switch s {
	case "percentage":
		return Percentage, nil
	case "flat_value":
		return FlatValue, nil
	default:
		return 0, errors.Wrapf(ErrUnknownKind, "%q", s)
	}
}

// DiscountRule is a time-windowed promotional reduction attached to one or
// more courses. Rules reference courses by id only; courses never enumerate
// their rules back.
type DiscountRule struct {
	ID       int
	Kind     RuleKind
	Value    decimal.Decimal
	StartsAt time.Time
	EndsAt   time.Time
	Active   bool
}

// ActiveAt reports whether the rule applies at the given instant.
func (r DiscountRule) ActiveAt(t time.Time) bool {
	return r.Active && !t.Before(r.StartsAt) && !t.After(r.EndsAt)
}

// CouponRule is a discount-shaped rule gated by a minimum order value and
// scoped to a course and optionally to a single user.
type CouponRule struct {
	ID       int
	Code     string
	Kind     RuleKind
	Value    decimal.Decimal
	StartsAt time.Time
	EndsAt   time.Time
	Active   bool

	// MinOrderValue gates application: the coupon only applies when the
	// already-discounted price is at least this amount. Zero means no gate.
	MinOrderValue decimal.Decimal
	// UserID scopes the coupon to a single user when non-empty.
	UserID string
}

// ActiveAt reports whether the coupon is inside its validity window.
func (c CouponRule) ActiveAt(t time.Time) bool {
	return c.Active && !t.Before(c.StartsAt) && !t.After(c.EndsAt)
}

// AppliesTo reports whether the coupon may be used by the given user against
// the given already-discounted price at the given instant.
func (c CouponRule) AppliesTo(userID string, price decimal.Decimal, asOf time.Time) bool {
	if !c.ActiveAt(asOf) {
		return false
	}
	if c.UserID != "" && c.UserID != userID {
		return false
	}
	if c.MinOrderValue.IsPositive() && price.LessThan(c.MinOrderValue) {
		return false
	}
	return true
}

// PriceableCourse is the catalog's answer for a single course: its base
// price plus every discount and coupon rule currently attached to it.
// Temporal and scope filtering happens in the engine, not the catalog.
type PriceableCourse struct {
	CourseID  int
	BasePrice decimal.Decimal
	Discounts []DiscountRule
	Coupons   []CouponRule
}

// Catalog looks up priceable courses. Implementations are synchronous,
// side-effect-free reads; unknown ids fail with the catalog's not-found
// error (see the course package).
type Catalog interface {
	GetPriceable(ctx context.Context, courseID int) (*PriceableCourse, error)
}

// Quote is the result of pricing one course at one instant.
// FinalPrice is never negative; at most one discount and one coupon
// contribute, applied discount-then-coupon.
type Quote struct {
	CourseID  int
	BasePrice decimal.Decimal
	// Discount is the applied discount rule, nil when none reduced the price.
	Discount *DiscountRule
	// Coupon is the applied coupon rule, nil when none qualified.
	Coupon     *CouponRule
	FinalPrice decimal.Decimal
}
