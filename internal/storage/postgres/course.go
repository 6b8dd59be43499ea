package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/skillmarket/cart-service/internal/domain/course"
	"github.com/skillmarket/cart-service/internal/domain/pricing"
)

const (
	getCourseSQL = `SELECT id, title, image_url, price FROM courses WHERE id = $1`

	getInstructorsSQL = `SELECT i.id, i.name, i.headline
		FROM instructors i
		JOIN course_instructors ci ON ci.instructor_id = i.id
		WHERE ci.course_id = $1
		ORDER BY i.id`

	getCourseDiscountsSQL = `SELECT d.id, d.kind, d.value, d.starts_at, d.ends_at, d.active
		FROM discounts d
		JOIN course_discounts cd ON cd.discount_id = d.id
		WHERE cd.course_id = $1
		ORDER BY d.id`

	getCourseCouponsSQL = `SELECT id, code, kind, value, min_order_value,
		starts_at, ends_at, active, user_id
		FROM coupons WHERE course_id = $1
		ORDER BY id`
)

var (
	_ course.Repository = (*CourseRepository)(nil)
	_ pricing.Catalog   = (*CourseRepository)(nil)
)

// CourseRepository implements both the course summary lookups and the
// pricing catalog backed by PostgreSQL. Discount and coupon rows are
// returned unfiltered; temporal and scope filtering is the price engine's
// job.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository returns a CourseRepository that uses the given pool.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetSummary returns a single course summary.
// Returns course.ErrNotFound when the id is unknown.
func (r *CourseRepository) GetSummary(ctx context.Context, courseID int) (*course.Course, error) {
	var c course.Course
	err := r.pool.QueryRow(ctx, getCourseSQL, courseID).
		Scan(&c.ID, &c.Title, &c.ImageURL, &c.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(course.ErrNotFound, "course %d", courseID)
		}
		return nil, fmt.Errorf("getting course %d: %w", courseID, err)
	}
	return &c, nil
}

// Instructors lists the instructors of a course.
func (r *CourseRepository) Instructors(ctx context.Context, courseID int) ([]course.InstructorSummary, error) {
	rows, err := r.pool.Query(ctx, getInstructorsSQL, courseID)
	if err != nil {
		return nil, fmt.Errorf("listing instructors for course %d: %w", courseID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (course.InstructorSummary, error) {
		var ins course.InstructorSummary
		err := row.Scan(&ins.ID, &ins.Name, &ins.Headline)
		return ins, err
	})
}

// GetPriceable returns the base price and every promotion rule attached to
// the course. Returns course.ErrNotFound for unknown ids.
func (r *CourseRepository) GetPriceable(ctx context.Context, courseID int) (*pricing.PriceableCourse, error) {
	summary, err := r.GetSummary(ctx, courseID)
	if err != nil {
		return nil, err
	}

	pc := &pricing.PriceableCourse{
		CourseID:  courseID,
		BasePrice: summary.Price,
	}

	rows, err := r.pool.Query(ctx, getCourseDiscountsSQL, courseID)
	if err != nil {
		return nil, fmt.Errorf("listing discounts for course %d: %w", courseID, err)
	}
	pc.Discounts, err = pgx.CollectRows(rows, scanDiscountRule)
	if err != nil {
		return nil, fmt.Errorf("listing discounts for course %d: %w", courseID, err)
	}

	rows, err = r.pool.Query(ctx, getCourseCouponsSQL, courseID)
	if err != nil {
		return nil, fmt.Errorf("listing coupons for course %d: %w", courseID, err)
	}
	pc.Coupons, err = pgx.CollectRows(rows, scanCouponRule)
	if err != nil {
		return nil, fmt.Errorf("listing coupons for course %d: %w", courseID, err)
	}

	return pc, nil
}

func scanDiscountRule(row pgx.CollectableRow) (pricing.DiscountRule, error) {
	var (
		rule pricing.DiscountRule
		kind string
	)
	err := row.Scan(&rule.ID, &kind, &rule.Value, &rule.StartsAt, &rule.EndsAt, &rule.Active)
	if err != nil {
		return rule, err
	}
	rule.Kind, err = pricing.ParseRuleKind(kind)
	return rule, err
}

func scanCouponRule(row pgx.CollectableRow) (pricing.CouponRule, error) {
	var (
		rule     pricing.CouponRule
		kind     string
		minOrder decimal.Decimal
		starts   time.Time
		ends     time.Time
		userID   *string
	)
	err := row.Scan(&rule.ID, &rule.Code, &kind, &rule.Value, &minOrder,
		&starts, &ends, &rule.Active, &userID)
	if err != nil {
		return rule, err
	}
	rule.Kind, err = pricing.ParseRuleKind(kind)
	rule.MinOrderValue = minOrder
	rule.StartsAt = starts
	rule.EndsAt = ends
	if userID != nil {
		rule.UserID = *userID
	}
	return rule, err
}
