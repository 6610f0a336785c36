package members

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/score-bot/internal/common"
)

type fakeStore struct {
	mu      sync.Mutex
	byID    map[int64]*Member
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[int64]*Member{}}
}

func (f *fakeStore) Upsert(_ context.Context, m *Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	cp := *m
	f.byID[m.UserID] = &cp
	return nil
}

func (f *fakeStore) GetByUserID(_ context.Context, userID int64) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[userID]; ok {
		return m, nil
	}
	return nil, common.ErrUserNotFound
}

func (f *fakeStore) GetByUsername(_ context.Context, username string) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if strings.EqualFold(m.Username, username) {
			return m, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (f *fakeStore) GetByUserIDs(_ context.Context, ids []int64) (map[int64]*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]*Member{}
	for _, id := range ids {
		if m, ok := f.byID[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeStore) Exists(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[userID]
	return ok, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewService(store, 16)
	require.NoError(t, err)
	return svc, store
}

func TestObserveSkipsUnchanged(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Observe(ctx, 1, "vasya", "Вася", ""))
	require.NoError(t, svc.Observe(ctx, 1, "vasya", "Вася", ""))
	assert.Equal(t, 1, store.upserts)

	require.NoError(t, svc.Observe(ctx, 1, "vasya_new", "Вася", ""))
	assert.Equal(t, 2, store.upserts)
	assert.Equal(t, "vasya_new", store.byID[1].Username)
}

func TestResolve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Observe(ctx, 10, "Petya", "Пётр", "Иванов"))

	m, err := svc.Resolve(ctx, "@petya", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), m.UserID)

	m, err = svc.Resolve(ctx, "10", 0)
	require.NoError(t, err)
	assert.Equal(t, "@Petya", m.DisplayName())

	m, err = svc.Resolve(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), m.UserID)

	_, err = svc.Resolve(ctx, "", 0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = svc.Resolve(ctx, "nobody", 0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = svc.Resolve(ctx, "@nobody", 0)
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestDisplayNames(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Observe(ctx, 1, "", "Анна", "Петрова"))

	names, err := svc.DisplayNames(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "Анна Петрова", names[1])
	assert.Equal(t, "2", names[2])
}
