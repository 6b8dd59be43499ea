// Package cart implements the shopping-cart core: the anonymous token codec,
// the merge of anonymous and user-owned carts, and the checkout view.
//
// A cart exists in two independently writable representations. The anonymous
// cart lives only inside an opaque client-held token with a 120-minute
// lifetime. The persistent cart is a durable row owned by an authenticated
// user. Both sides race last-write-wins under concurrent requests from the
// same owner; there is no cross-request locking.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrLineExists is returned when a course is already present in the cart.
	ErrLineExists = errors.New("course already in cart")
	// ErrLineNotFound is returned when a course is not present in the cart.
	ErrLineNotFound = errors.New("course not in cart")
	// ErrMalformedToken is returned when an anonymous cart token cannot be
	// decoded. An absent or empty token is not malformed.
	ErrMalformedToken = errors.New("malformed cart token")
	// ErrCollaboratorUnavailable wraps failures of the catalog, instructor
	// and review collaborators while building a cart view.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// Line is a single cart entry. Carts hold at most one line per course, so
// there is no quantity. Title and UnitPrice are display hints carried by the
// anonymous token; lines read from the persistent store leave them zero.
type Line struct {
	CourseID  int
	Title     string
	UnitPrice decimal.Decimal
}

// PersistentCart is the durable, user-owned cart representation. At most one
// active cart per user is considered current; when duplicates exist the most
// recently updated one wins.
type PersistentCart struct {
	ID        string
	UserID    string
	Active    bool
	CourseIDs []int
	UpdatedAt time.Time
}

// Store owns the persistent cart rows.
type Store interface {
	// GetActive returns the most-recently-updated active cart for the user,
	// creating one if none exists. It never returns nil on success.
	GetActive(ctx context.Context, userID string) (*PersistentCart, error)
	// AddLine appends a course to the user's active cart.
	// Returns ErrLineExists when the course is already present.
	AddLine(ctx context.Context, userID string, courseID int) error
	// RemoveLine removes a course from the user's active cart.
	// Returns ErrLineNotFound when the course is absent.
	RemoveLine(ctx context.Context, userID string, courseID int) error
	// Deactivate retires the user's active cart. Idempotent: deactivating a
	// user with no active cart is a no-op.
	Deactivate(ctx context.Context, userID string) error
	// CountLines reports the number of lines in the user's active cart.
	CountLines(ctx context.Context, userID string) (int, error)
}

// TokenStore persists anonymous cart tokens keyed by owner. Implementations
// are cookie-equivalents: entries are HTTP-only from the client's point of
// view and expire after TokenTTL. Save is a whole-token replace, so
// concurrent writers on the same owner key race last-write-wins.
type TokenStore interface {
	// Get returns the stored token for the owner, or "" when none exists.
	Get(ctx context.Context, ownerKey string) (string, error)
	// Save stores the token under the owner key with a fresh TTL.
	Save(ctx context.Context, ownerKey, token string) error
	// Delete expires the owner's token immediately.
	Delete(ctx context.Context, ownerKey string) error
}

// TokenTTL is the lifetime of an anonymous cart token.
const TokenTTL = 120 * time.Minute

// Owner identifies whose cart an operation targets. Key names the token
// namespace: the user id for authenticated owners, or a client-issued
// anonymous id otherwise. UserID is set only when the owner is
// authenticated; only then is the persistent store consulted.
//
// Hidden transport state (cookie access buried in a request context) is
// deliberately absent: every operation receives the owner explicitly.
type Owner struct {
	Key    string
	UserID string
}

// Anonymous returns an Owner for an unauthenticated client key.
func Anonymous(key string) Owner {
	return Owner{Key: key}
}

// User returns an Owner for an authenticated user.
func User(id string) Owner {
	return Owner{Key: id, UserID: id}
}

// Authenticated reports whether the owner has a user identity.
func (o Owner) Authenticated() bool {
	return o.UserID != ""
}

// TokenKey derives the token-store key for the owner.
func (o Owner) TokenKey() string {
	return "cart_" + o.Key
}
