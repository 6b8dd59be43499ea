package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillmarket/cart-service/internal/domain/review"
)

const getRatingAggregateSQL = `SELECT COALESCE(AVG(rating), 0), COUNT(*)
	FROM reviews WHERE course_id = $1`

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Get returns the rating aggregate for a course. Courses without reviews
// aggregate to zero, not an error.
func (r *ReviewRepository) Get(ctx context.Context, courseID int) (review.Aggregate, error) {
	var agg review.Aggregate
	err := r.pool.QueryRow(ctx, getRatingAggregateSQL, courseID).
		Scan(&agg.Average, &agg.Count)
	if err != nil {
		return review.Aggregate{}, fmt.Errorf("aggregating reviews for course %d: %w", courseID, err)
	}
	return agg, nil
}
