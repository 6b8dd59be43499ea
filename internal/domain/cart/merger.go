package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// Merger reconciles the two cart representations into one logical view.
// Once a user is authenticated the anonymous token is treated as a display
// cache: merged results are written back through Reconcile, never read as
// the source of truth on their own.
type Merger struct {
	tokens TokenStore
	store  Store
}

// NewMerger creates a Merger over the given token store and cart store.
func NewMerger(tokens TokenStore, store Store) *Merger {
	return &Merger{tokens: tokens, store: store}
}

// Merge unions two line lists: anonymous lines first, preserving their
// order, then persistent lines not already present, in store order.
// The deduplication key is the course id.
func Merge(anonymous, persistent []Line) []Line {
	merged := make([]Line, 0, len(anonymous)+len(persistent))
	seen := make(map[int]struct{}, len(anonymous))

	for _, l := range anonymous {
		if _, ok := seen[l.CourseID]; ok {
			continue
		}
		seen[l.CourseID] = struct{}{}
		merged = append(merged, l)
	}
	for _, l := range persistent {
		if _, ok := seen[l.CourseID]; ok {
			continue
		}
		seen[l.CourseID] = struct{}{}
		merged = append(merged, l)
	}

	return merged
}

// AnonymousLines decodes the owner's current token. A missing token yields
// no lines; a corrupt one fails with ErrMalformedToken.
func (m *Merger) AnonymousLines(ctx context.Context, owner Owner) ([]Line, error) {
	token, err := m.tokens.Get(ctx, owner.TokenKey())
	if err != nil {
		return nil, errors.Wrap(err, "read cart token")
	}
	return Decode(token)
}

// Lines returns the unified cart view for the owner. Unauthenticated owners
// see only the anonymous side; otherwise the persistent cart is merged in
// behind the anonymous lines.
func (m *Merger) Lines(ctx context.Context, owner Owner) ([]Line, error) {
	anonymous, err := m.AnonymousLines(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !owner.Authenticated() {
		return Merge(anonymous, nil), nil
	}

	pc, err := m.store.GetActive(ctx, owner.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get active cart")
	}
	persistent := make([]Line, len(pc.CourseIDs))
	for i, id := range pc.CourseIDs {
		persistent[i] = Line{CourseID: id}
	}

	return Merge(anonymous, persistent), nil
}

// Reconcile re-encodes the merged line set and overwrites the owner's token.
// Idempotent: repeated calls with an unchanged input produce the same token.
func (m *Merger) Reconcile(ctx context.Context, owner Owner, lines []Line) error {
	if err := m.tokens.Save(ctx, owner.TokenKey(), Encode(lines)); err != nil {
		return errors.Wrap(err, "save cart token")
	}
	return nil
}

// CountItems reports the size of the cart. Unauthenticated owners count
// anonymous lines only; authenticated owners count the merged union, the
// same precedence Lines uses, so the badge a caller renders never disagrees
// with the view.
func (m *Merger) CountItems(ctx context.Context, owner Owner) (int, error) {
	lines, err := m.Lines(ctx, owner)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}
