package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// Service is the cart facade exposed to transport adapters.
//
// Writes touch the anonymous token first and the persistent store second.
// A persistent failure after a successful token write is surfaced, not
// rolled back; callers re-derive consistent state via ViewCart, which is
// always safe to re-call.
type Service struct {
	merger *Merger
	store  Store
	views  *ViewBuilder
}

// NewService creates the cart Service.
func NewService(merger *Merger, store Store, views *ViewBuilder) *Service {
	return &Service{merger: merger, store: store, views: views}
}

// ViewCart returns the checkout-ready view, or (nil, nil) for an empty cart.
func (s *Service) ViewCart(ctx context.Context, owner Owner) (*View, error) {
	return s.views.Build(ctx, owner)
}

// CountItems reports the cart size without building the full view.
func (s *Service) CountItems(ctx context.Context, owner Owner) (int, error) {
	return s.merger.CountItems(ctx, owner)
}

// AddToCart appends a course to both cart representations.
// Returns ErrLineExists when the course is already in the merged view.
func (s *Service) AddToCart(ctx context.Context, owner Owner, courseID int) error {
	lines, err := s.merger.Lines(ctx, owner)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if l.CourseID == courseID {
			return errors.Wrapf(ErrLineExists, "course %d", courseID)
		}
	}

	lines = append(lines, Line{CourseID: courseID})
	if err := s.merger.Reconcile(ctx, owner, lines); err != nil {
		return err
	}

	if owner.Authenticated() {
		if err := s.store.AddLine(ctx, owner.UserID, courseID); err != nil {
			// A concurrent add can still conflict at the store after our
			// merged-view check passed; surface it as the same error kind.
			return errors.Wrap(err, "add persistent line")
		}
	}

	return nil
}

// RemoveFromCart removes a course from both cart representations.
// Returns ErrLineNotFound when the course is not in the merged view; in
// that case neither representation is touched.
func (s *Service) RemoveFromCart(ctx context.Context, owner Owner, courseID int) error {
	lines, err := s.merger.Lines(ctx, owner)
	if err != nil {
		return err
	}

	kept := make([]Line, 0, len(lines))
	found := false
	for _, l := range lines {
		if l.CourseID == courseID {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return errors.Wrapf(ErrLineNotFound, "course %d", courseID)
	}

	if err := s.merger.Reconcile(ctx, owner, kept); err != nil {
		return err
	}

	if owner.Authenticated() {
		err := s.store.RemoveLine(ctx, owner.UserID, courseID)
		if err != nil && !errors.Is(err, ErrLineNotFound) {
			// Absence in the store alone is fine: the line may have lived
			// only in the anonymous token.
			return errors.Wrap(err, "remove persistent line")
		}
	}

	return nil
}

// ClearCart empties the cart: the token is deleted and the persistent cart
// is deactivated, never hard-deleted. Clearing an already-empty cart is a
// no-op.
func (s *Service) ClearCart(ctx context.Context, owner Owner) error {
	lines, err := s.merger.Lines(ctx, owner)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	if err := s.merger.tokens.Delete(ctx, owner.TokenKey()); err != nil {
		return errors.Wrap(err, "delete cart token")
	}

	if owner.Authenticated() {
		if err := s.store.Deactivate(ctx, owner.UserID); err != nil {
			return errors.Wrap(err, "deactivate cart")
		}
	}

	return nil
}
