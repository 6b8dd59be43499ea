package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_SaveGet(t *testing.T) {
	s := NewTokenStore(time.Hour)

	token, err := s.Get(context.Background(), "cart_visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "", token)

	require.NoError(t, s.Save(context.Background(), "cart_visitor-1", "abc"))

	token, err = s.Get(context.Background(), "cart_visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestTokenStore_SaveReplaces(t *testing.T) {
	s := NewTokenStore(time.Hour)

	require.NoError(t, s.Save(context.Background(), "cart_visitor-1", "first"))
	require.NoError(t, s.Save(context.Background(), "cart_visitor-1", "second"))

	token, err := s.Get(context.Background(), "cart_visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "second", token)
}

func TestTokenStore_Delete(t *testing.T) {
	s := NewTokenStore(time.Hour)

	require.NoError(t, s.Save(context.Background(), "cart_visitor-1", "abc"))
	require.NoError(t, s.Delete(context.Background(), "cart_visitor-1"))

	token, err := s.Get(context.Background(), "cart_visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "", token)
}

func TestTokenStore_Expiry(t *testing.T) {
	fixedNow := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	current := fixedNow

	s := NewTokenStore(120 * time.Minute)
	s.now = func() time.Time { return current }

	require.NoError(t, s.Save(context.Background(), "cart_visitor-1", "abc"))

	// Still alive just inside the TTL.
	current = fixedNow.Add(119 * time.Minute)
	token, err := s.Get(context.Background(), "cart_visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	// Gone once the TTL has elapsed.
	current = fixedNow.Add(121 * time.Minute)
	token, err = s.Get(context.Background(), "cart_visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "", token)

	s.mu.RLock()
	_, ok := s.entries["cart_visitor-1"]
	s.mu.RUnlock()
	assert.False(t, ok, "expired entry should be dropped on read")
}

func TestTokenStore_SaveRefreshesTTL(t *testing.T) {
	fixedNow := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	current := fixedNow

	s := NewTokenStore(time.Hour)
	s.now = func() time.Time { return current }

	require.NoError(t, s.Save(context.Background(), "cart_visitor-1", "abc"))

	current = fixedNow.Add(50 * time.Minute)
	require.NoError(t, s.Save(context.Background(), "cart_visitor-1", "abc"))

	// 70 minutes after the first save, but only 20 after the refresh.
	current = fixedNow.Add(70 * time.Minute)
	token, err := s.Get(context.Background(), "cart_visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestTokenStore_Sweep(t *testing.T) {
	fixedNow := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	current := fixedNow

	s := NewTokenStore(time.Hour)
	s.now = func() time.Time { return current }

	require.NoError(t, s.Save(context.Background(), "cart_a", "a"))
	require.NoError(t, s.Save(context.Background(), "cart_b", "b"))

	current = fixedNow.Add(30 * time.Minute)
	require.NoError(t, s.Save(context.Background(), "cart_b", "b2"))

	current = fixedNow.Add(90 * time.Minute)
	s.sweep()

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.NotContains(t, s.entries, "cart_a")
	assert.Contains(t, s.entries, "cart_b")
}
