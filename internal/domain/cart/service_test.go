package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(tokens *mockTokenStore, store *mockStore) *Service {
	merger := NewMerger(tokens, store)
	return NewService(merger, store, nil)
}

func TestService_AddToCart_Anonymous(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)
	owner := Anonymous("visitor-1")

	require.NoError(t, svc.AddToCart(context.Background(), owner, 101))
	require.NoError(t, svc.AddToCart(context.Background(), owner, 102))

	n, err := svc.CountItems(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The persistent store is never touched for anonymous owners.
	assert.Empty(t, store.carts)
}

func TestService_AddToCart_AuthenticatedWritesBothSides(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)
	owner := User("user-1")

	require.NoError(t, svc.AddToCart(context.Background(), owner, 101))

	assert.Equal(t, []int{101}, store.carts["user-1"])

	lines, err := Decode(tokens.entries[owner.TokenKey()])
	require.NoError(t, err)
	assert.Equal(t, []int{101}, courseIDs(lines))
}

func TestService_AddToCart_Conflict(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)
	owner := Anonymous("visitor-1")

	require.NoError(t, svc.AddToCart(context.Background(), owner, 101))
	err := svc.AddToCart(context.Background(), owner, 101)
	require.ErrorIs(t, err, ErrLineExists)
}

func TestService_AddToCart_ConflictAgainstPersistentSide(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	store.carts["user-1"] = []int{101}
	svc := newTestService(tokens, store)

	// The line lives only in the store; the merged view still rejects it.
	err := svc.AddToCart(context.Background(), User("user-1"), 101)
	require.ErrorIs(t, err, ErrLineExists)
}

func TestService_RemoveFromCart(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)
	owner := User("user-1")

	require.NoError(t, svc.AddToCart(context.Background(), owner, 101))
	require.NoError(t, svc.AddToCart(context.Background(), owner, 102))
	require.NoError(t, svc.RemoveFromCart(context.Background(), owner, 101))

	assert.Equal(t, []int{102}, store.carts["user-1"])

	lines, err := Decode(tokens.entries[owner.TokenKey()])
	require.NoError(t, err)
	assert.Equal(t, []int{102}, courseIDs(lines))
}

func TestService_RemoveFromCart_NotFound(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)
	owner := Anonymous("visitor-1")

	require.NoError(t, svc.AddToCart(context.Background(), owner, 101))
	before := tokens.entries[owner.TokenKey()]

	err := svc.RemoveFromCart(context.Background(), owner, 999)
	require.ErrorIs(t, err, ErrLineNotFound)

	// A failed remove leaves the token untouched.
	assert.Equal(t, before, tokens.entries[owner.TokenKey()])
}

func TestService_RemoveFromCart_TokenOnlyLine(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)
	owner := User("user-1")

	// Line present in the token but absent from the store: the store's
	// not-found is tolerated because the merged view had the line.
	require.NoError(t, tokens.Save(context.Background(), owner.TokenKey(),
		Encode([]Line{{CourseID: 101}})))

	require.NoError(t, svc.RemoveFromCart(context.Background(), owner, 101))

	n, err := svc.CountItems(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestService_RemoveFromCart_StoreError(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	store.carts["user-1"] = []int{101}
	svc := newTestService(tokens, store)

	store.removeErr = errors.New("db down")
	err := svc.RemoveFromCart(context.Background(), User("user-1"), 101)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLineNotFound)
}

func TestService_ClearCart(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)
	owner := User("user-1")

	require.NoError(t, svc.AddToCart(context.Background(), owner, 101))
	require.NoError(t, svc.ClearCart(context.Background(), owner))

	assert.Equal(t, []string{owner.TokenKey()}, tokens.deleted)
	assert.Equal(t, []string{"user-1"}, store.deactivated)

	n, err := svc.CountItems(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestService_ClearCart_EmptyIsNoop(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	svc := newTestService(tokens, store)

	require.NoError(t, svc.ClearCart(context.Background(), User("user-1")))

	assert.Empty(t, tokens.deleted)
	assert.Empty(t, store.deactivated)
}
