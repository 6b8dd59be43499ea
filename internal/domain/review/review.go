// Package review defines the rating collaborator consumed by the cart view.
package review

import "context"

// Aggregate is the rating summary for one course. A course with no reviews
// aggregates to a zero Average and Count.
type Aggregate struct {
	Average float64
	Count   int
}

// Repository reads rating aggregates.
type Repository interface {
	Get(ctx context.Context, courseID int) (Aggregate, error)
}
