package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/skillmarket/cart-service/internal/domain/course"
	"github.com/skillmarket/cart-service/internal/domain/pricing"
	"github.com/skillmarket/cart-service/internal/domain/review"
)

// collaboratorConcurrency bounds the fan-out of per-line collaborator reads.
const collaboratorConcurrency = 8

// PriceQuoter is the slice of the price engine the view builder consumes.
type PriceQuoter interface {
	Quote(ctx context.Context, courseID int, userID string, asOf time.Time) (*pricing.Quote, error)
}

// ItemView is one checkout-ready cart line with its collaborator metadata.
type ItemView struct {
	Course      course.Course
	Instructors []course.InstructorSummary
	Review      review.Aggregate
	Quote       pricing.Quote
}

// View is the full checkout-ready cart.
type View struct {
	Items      []ItemView
	TotalPrice decimal.Decimal
}

// ViewBuilder composes merged cart lines with course, instructor, rating and
// price data into a View.
type ViewBuilder struct {
	merger  *Merger
	quoter  PriceQuoter
	courses course.Repository
	reviews review.Repository
	now     func() time.Time
}

// NewViewBuilder creates a ViewBuilder over the given collaborators.
func NewViewBuilder(merger *Merger, quoter PriceQuoter, courses course.Repository, reviews review.Repository) *ViewBuilder {
	return &ViewBuilder{
		merger:  merger,
		quoter:  quoter,
		courses: courses,
		reviews: reviews,
		now:     time.Now,
	}
}

// Build assembles the checkout view for the owner. It returns (nil, nil)
// when the merged cart is empty. The pricing instant is captured once at
// entry, so every quote in one view reflects the same asOf.
//
// As a side effect the merged line set is written back into the anonymous
// token, letting subsequent reads skip the persistent store. That write is
// a cache refresh, not a correctness requirement.
func (b *ViewBuilder) Build(ctx context.Context, owner Owner) (*View, error) {
	lines, err := b.merger.Lines(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	asOf := b.now()
	items := make([]ItemView, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collaboratorConcurrency)
	for i, line := range lines {
		g.Go(func() error {
			item, err := b.buildItem(gctx, line.CourseID, owner.UserID, asOf)
			if err != nil {
				return err
			}
			items[i] = *item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &View{Items: items}
	for i := range items {
		view.TotalPrice = view.TotalPrice.Add(items[i].Quote.FinalPrice)
	}

	if err := b.merger.Reconcile(ctx, owner, lines); err != nil {
		return nil, err
	}

	return view, nil
}

func (b *ViewBuilder) buildItem(ctx context.Context, courseID int, userID string, asOf time.Time) (*ItemView, error) {
	summary, err := b.courses.GetSummary(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrCollaboratorUnavailable, "course %d: %v", courseID, err)
	}

	instructors, err := b.courses.Instructors(ctx, courseID)
	if err != nil {
		return nil, errors.Wrapf(ErrCollaboratorUnavailable, "instructors %d: %v", courseID, err)
	}

	rating, err := b.reviews.Get(ctx, courseID)
	if err != nil {
		return nil, errors.Wrapf(ErrCollaboratorUnavailable, "reviews %d: %v", courseID, err)
	}

	quote, err := b.quoter.Quote(ctx, courseID, userID, asOf)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrCollaboratorUnavailable, "quote %d: %v", courseID, err)
	}

	return &ItemView{
		Course:      *summary,
		Instructors: instructors,
		Review:      rating,
		Quote:       *quote,
	}, nil
}
