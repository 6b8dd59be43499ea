package cart

import (
	"context"
	"slices"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTokenStore struct {
	entries map[string]string

	getErr  error
	saveErr error
	deleted []string
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{entries: make(map[string]string)}
}

func (m *mockTokenStore) Get(_ context.Context, ownerKey string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.entries[ownerKey], nil
}

func (m *mockTokenStore) Save(_ context.Context, ownerKey, token string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[ownerKey] = token
	return nil
}

func (m *mockTokenStore) Delete(_ context.Context, ownerKey string) error {
	delete(m.entries, ownerKey)
	m.deleted = append(m.deleted, ownerKey)
	return nil
}

type mockStore struct {
	carts map[string][]int

	getErr    error
	addErr    error
	removeErr error

	deactivated []string
}

func newMockStore() *mockStore {
	return &mockStore{carts: make(map[string][]int)}
}

func (m *mockStore) GetActive(_ context.Context, userID string) (*PersistentCart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &PersistentCart{
		ID:        "cart-" + userID,
		UserID:    userID,
		Active:    true,
		CourseIDs: slices.Clone(m.carts[userID]),
	}, nil
}

func (m *mockStore) AddLine(_ context.Context, userID string, courseID int) error {
	if m.addErr != nil {
		return m.addErr
	}
	if slices.Contains(m.carts[userID], courseID) {
		return ErrLineExists
	}
	m.carts[userID] = append(m.carts[userID], courseID)
	return nil
}

func (m *mockStore) RemoveLine(_ context.Context, userID string, courseID int) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	idx := slices.Index(m.carts[userID], courseID)
	if idx < 0 {
		return ErrLineNotFound
	}
	m.carts[userID] = slices.Delete(m.carts[userID], idx, idx+1)
	return nil
}

func (m *mockStore) Deactivate(_ context.Context, userID string) error {
	delete(m.carts, userID)
	m.deactivated = append(m.deactivated, userID)
	return nil
}

func (m *mockStore) CountLines(_ context.Context, userID string) (int, error) {
	return len(m.carts[userID]), nil
}

func courseIDs(lines []Line) []int {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]int, len(lines))
	for i, l := range lines {
		ids[i] = l.CourseID
	}
	return ids
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name       string
		anonymous  []int
		persistent []int
		want       []int
	}{
		{
			name: "both empty",
		},
		{
			name:      "anonymous only",
			anonymous: []int{3, 1},
			want:      []int{3, 1},
		},
		{
			name:       "persistent only",
			persistent: []int{1, 2},
			want:       []int{1, 2},
		},
		{
			name:       "anonymous first then unseen persistent",
			anonymous:  []int{3, 1},
			persistent: []int{1, 2},
			want:       []int{3, 1, 2},
		},
		{
			name:       "full overlap",
			anonymous:  []int{1, 2},
			persistent: []int{2, 1},
			want:       []int{1, 2},
		},
		{
			name:      "duplicates within anonymous collapse",
			anonymous: []int{1, 1, 2},
			want:      []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anonymous := make([]Line, len(tt.anonymous))
			for i, id := range tt.anonymous {
				anonymous[i] = Line{CourseID: id}
			}
			persistent := make([]Line, len(tt.persistent))
			for i, id := range tt.persistent {
				persistent[i] = Line{CourseID: id}
			}

			got := Merge(anonymous, persistent)
			assert.Equal(t, tt.want, courseIDs(got))

			// Merging a merged result with the same persistent side is stable.
			again := Merge(got, persistent)
			assert.Equal(t, tt.want, courseIDs(again))
		})
	}
}

func TestMerge_AnonymousLineDataWins(t *testing.T) {
	anonymous := []Line{
		{CourseID: 1, Title: "From Token", UnitPrice: decimal.NewFromInt(10)},
	}
	persistent := []Line{{CourseID: 1}}

	got := Merge(anonymous, persistent)
	require.Len(t, got, 1)
	assert.Equal(t, "From Token", got[0].Title)
}

func TestMerger_Lines_AnonymousOwner(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	store.carts["someone-else"] = []int{99}

	owner := Anonymous("visitor-1")
	require.NoError(t, tokens.Save(context.Background(), owner.TokenKey(),
		Encode([]Line{{CourseID: 5, Title: "A", UnitPrice: decimal.NewFromInt(10)}})))

	m := NewMerger(tokens, store)
	got, err := m.Lines(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, courseIDs(got))
}

func TestMerger_Lines_AuthenticatedMergesStore(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	store.carts["user-1"] = []int{1, 2}

	owner := User("user-1")
	require.NoError(t, tokens.Save(context.Background(), owner.TokenKey(),
		Encode([]Line{{CourseID: 3}, {CourseID: 1}})))

	m := NewMerger(tokens, store)
	got, err := m.Lines(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, courseIDs(got))
}

func TestMerger_Lines_MalformedToken(t *testing.T) {
	tokens := newMockTokenStore()
	owner := Anonymous("visitor-1")
	tokens.entries[owner.TokenKey()] = "%%%not-base64%%%"

	m := NewMerger(tokens, newMockStore())
	got, err := m.Lines(context.Background(), owner)
	require.ErrorIs(t, err, ErrMalformedToken)
	assert.Nil(t, got)
}

func TestMerger_Reconcile_Idempotent(t *testing.T) {
	tokens := newMockTokenStore()
	owner := Anonymous("visitor-1")
	lines := []Line{
		{CourseID: 1, Title: "A", UnitPrice: decimal.NewFromInt(10)},
		{CourseID: 2, Title: "B", UnitPrice: decimal.NewFromInt(20)},
	}

	m := NewMerger(tokens, newMockStore())
	require.NoError(t, m.Reconcile(context.Background(), owner, lines))
	first := tokens.entries[owner.TokenKey()]

	require.NoError(t, m.Reconcile(context.Background(), owner, lines))
	assert.Equal(t, first, tokens.entries[owner.TokenKey()])
}

func TestMerger_CountItems(t *testing.T) {
	tokens := newMockTokenStore()
	store := newMockStore()
	store.carts["user-1"] = []int{1, 2}

	m := NewMerger(tokens, store)

	// Anonymous owner counts only the token side.
	anon := Anonymous("visitor-1")
	require.NoError(t, m.Reconcile(context.Background(), anon, []Line{{CourseID: 9}}))
	n, err := m.CountItems(context.Background(), anon)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Authenticated owner counts the merged union, matching Lines.
	user := User("user-1")
	require.NoError(t, m.Reconcile(context.Background(), user, []Line{{CourseID: 3}, {CourseID: 1}}))
	n, err = m.CountItems(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines, err := m.Lines(context.Background(), user)
	require.NoError(t, err)
	assert.Len(t, lines, n)
}

func TestMerger_Lines_StoreError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("db down")

	m := NewMerger(newMockTokenStore(), store)
	_, err := m.Lines(context.Background(), User("user-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get active cart")
}
