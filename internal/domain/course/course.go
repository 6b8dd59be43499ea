// Package course defines the catalog collaborator consumed by the cart
// view: course summaries and instructor listings. Catalog lifecycle
// (creation, search, media) is owned elsewhere; this package only reads.
package course

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested course does not exist.
var ErrNotFound = errors.New("course not found")

// Course is the summary shown for a cart line.
type Course struct {
	ID       int
	Title    string
	ImageURL string
	Price    decimal.Decimal
}

// InstructorSummary identifies one instructor of a course.
type InstructorSummary struct {
	ID       int
	Name     string
	Headline string
}

// Repository defines the read operations the cart view needs from the
// catalog. Implementations are synchronous, side-effect-free reads.
type Repository interface {
	GetSummary(ctx context.Context, courseID int) (*Course, error)
	Instructors(ctx context.Context, courseID int) ([]InstructorSummary, error)
}
