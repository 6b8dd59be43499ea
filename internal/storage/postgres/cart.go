package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillmarket/cart-service/internal/domain/cart"
)

const (
	getActiveCartSQL = `SELECT id, user_id, is_active, updated_at FROM carts
		WHERE user_id = $1 AND is_active
		ORDER BY updated_at DESC LIMIT 1`

	createCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)`

	getCartCourseIDsSQL = `SELECT course_id FROM cart_items
		WHERE cart_id = $1 ORDER BY position`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, course_id, position)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM cart_items WHERE cart_id = $1`

	removeCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND course_id = $2`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`

	deactivateCartsSQL = `UPDATE carts SET is_active = FALSE, updated_at = now()
		WHERE user_id = $1 AND is_active`

	countCartItemsSQL = `SELECT COUNT(*) FROM cart_items WHERE cart_id = $1`
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

var _ cart.Store = (*CartRepository)(nil)

// CartRepository implements cart.Store backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetActive returns the user's most-recently-updated active cart, creating
// one lazily when the user has none. Stale duplicate active rows lose the
// updated_at ordering and are ignored.
func (r *CartRepository) GetActive(ctx context.Context, userID string) (*cart.PersistentCart, error) {
	pc, err := r.findActive(ctx, userID)
	if err == nil {
		return pc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting active cart for %q: %w", userID, err)
	}

	if _, err := r.pool.Exec(ctx, createCartSQL, uuid.New().String(), userID); err != nil {
		return nil, fmt.Errorf("creating cart for %q: %w", userID, err)
	}

	pc, err = r.findActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting created cart for %q: %w", userID, err)
	}
	return pc, nil
}

func (r *CartRepository) findActive(ctx context.Context, userID string) (*cart.PersistentCart, error) {
	var pc cart.PersistentCart
	err := r.pool.QueryRow(ctx, getActiveCartSQL, userID).
		Scan(&pc.ID, &pc.UserID, &pc.Active, &pc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, getCartCourseIDsSQL, pc.ID)
	if err != nil {
		return nil, err
	}
	pc.CourseIDs, err = pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// AddLine appends a course to the user's active cart.
// Returns cart.ErrLineExists when the course is already present.
func (r *CartRepository) AddLine(ctx context.Context, userID string, courseID int) error {
	pc, err := r.GetActive(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, addCartItemSQL, pc.ID, courseID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.Wrapf(cart.ErrLineExists, "course %d", courseID)
		}
		return fmt.Errorf("adding course %d to cart %s: %w", courseID, pc.ID, err)
	}

	if _, err := r.pool.Exec(ctx, touchCartSQL, pc.ID); err != nil {
		return fmt.Errorf("touching cart %s: %w", pc.ID, err)
	}
	return nil
}

// RemoveLine removes a course from the user's active cart.
// Returns cart.ErrLineNotFound when the course is absent.
func (r *CartRepository) RemoveLine(ctx context.Context, userID string, courseID int) error {
	pc, err := r.GetActive(ctx, userID)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, removeCartItemSQL, pc.ID, courseID)
	if err != nil {
		return fmt.Errorf("removing course %d from cart %s: %w", courseID, pc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(cart.ErrLineNotFound, "course %d", courseID)
	}

	if _, err := r.pool.Exec(ctx, touchCartSQL, pc.ID); err != nil {
		return fmt.Errorf("touching cart %s: %w", pc.ID, err)
	}
	return nil
}

// Deactivate retires every active cart the user has, including stale
// duplicates. A user with no active cart is a no-op, not an error.
func (r *CartRepository) Deactivate(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, deactivateCartsSQL, userID); err != nil {
		return fmt.Errorf("deactivating carts for %q: %w", userID, err)
	}
	return nil
}

// CountLines reports the number of lines in the user's active cart.
func (r *CartRepository) CountLines(ctx context.Context, userID string) (int, error) {
	pc, err := r.GetActive(ctx, userID)
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.pool.QueryRow(ctx, countCartItemsSQL, pc.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items in cart %s: %w", pc.ID, err)
	}
	return n, nil
}
