package channels

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/score-bot/internal/bot/commands"
	"serotonyl.ru/score-bot/internal/common"
)

type memStore struct {
	mu      sync.Mutex
	rows    []*Binding
	nextID  int64
	lookups int
}

func (m *memStore) Lock(context.Context, int64) error { return nil }

func (m *memStore) GetByChannel(_ context.Context, guild, channel int64) (*Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	for _, b := range m.rows {
		if b.GuildID == guild && b.ChannelID == channel {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetByType(_ context.Context, guild int64, t ChannelType) (*Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.GuildID == guild && b.Type == t {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(_ context.Context, b *Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	cp := *b
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memStore) MoveChannel(_ context.Context, id, channel int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.ID == id {
			b.ChannelID = channel
		}
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, guild, channel int64, t ChannelType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.rows {
		if b.GuildID == guild && b.ChannelID == channel && b.Type == t {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

const guild = int64(-100500)

func TestBindRejectsBoundChannel(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, passTx{})
	ctx := context.Background()

	require.NoError(t, svc.Bind(ctx, guild, 1, TypePost))
	assert.ErrorIs(t, svc.Bind(ctx, guild, 1, TypeChat), common.ErrChannelAlreadyBound)
	assert.ErrorIs(t, svc.Bind(ctx, guild, 1, TypePost), common.ErrChannelAlreadyBound)

	// Постов и чатов в гильдии может быть несколько
	require.NoError(t, svc.Bind(ctx, guild, 2, TypePost))
	require.NoError(t, svc.Bind(ctx, guild, 3, TypeChat))
	require.NoError(t, svc.Bind(ctx, guild, 4, TypeChat))
	assert.Len(t, store.rows, 4)
}

func TestBindQuestionMovesExisting(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, passTx{})
	ctx := context.Background()

	require.NoError(t, svc.Bind(ctx, guild, 10, TypeQuestion))
	ok, err := svc.HasRole(ctx, guild, 10, TypeQuestion)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Bind(ctx, guild, 11, TypeQuestion))
	require.Len(t, store.rows, 1, "тема вопросов в гильдии одна")
	assert.Equal(t, int64(11), store.rows[0].ChannelID)

	ok, err = svc.HasRole(ctx, guild, 10, TypeQuestion)
	require.NoError(t, err)
	assert.False(t, ok, "кэш старой темы обновлён")
	ok, err = svc.HasRole(ctx, guild, 11, TypeQuestion)
	require.NoError(t, err)
	assert.True(t, ok)

	// В другой гильдии своя тема вопросов
	require.NoError(t, svc.Bind(ctx, guild+1, 10, TypeQuestion))
	assert.Len(t, store.rows, 2)
}

func TestBindQuestionIntoBoundChannel(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, passTx{})
	ctx := context.Background()

	require.NoError(t, svc.Bind(ctx, guild, 10, TypeQuestion))
	require.NoError(t, svc.Bind(ctx, guild, 11, TypeChat))
	assert.ErrorIs(t, svc.Bind(ctx, guild, 11, TypeQuestion), common.ErrChannelAlreadyBound)
	assert.Equal(t, int64(10), store.rows[0].ChannelID)
}

func TestUnbind(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, passTx{})
	ctx := context.Background()

	require.NoError(t, svc.Bind(ctx, guild, 1, TypeChat))
	assert.ErrorIs(t, svc.Unbind(ctx, guild, 1, TypePost), common.ErrChannelTypeNotFound)
	require.NoError(t, svc.Unbind(ctx, guild, 1, TypeChat))
	assert.ErrorIs(t, svc.Unbind(ctx, guild, 1, TypeChat), common.ErrChannelTypeNotFound)

	_, ok, err := svc.Query(ctx, guild, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// Тему можно переназначить после снятия роли
	require.NoError(t, svc.Bind(ctx, guild, 1, TypePost))
}

func TestQueryCachesMisses(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, passTx{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok, err := svc.Query(ctx, guild, 99)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, store.lookups)
}

func TestHandlersUseInvokingThread(t *testing.T) {
	store := &memStore{}
	h := NewHandler(NewService(store, passTx{}))
	ctx := context.Background()
	table, err := commands.NewTable(h.Commands()...)
	require.NoError(t, err)

	set, _ := table.Lookup("channel_set")
	_, err = set.Handler(ctx, commands.Request{ChatID: guild, ThreadID: 5, Args: []string{"post"}})
	require.NoError(t, err)
	_, err = set.Handler(ctx, commands.Request{ChatID: guild, ThreadID: 5, Args: []string{"chat", "6"}})
	require.NoError(t, err)

	get, _ := table.Lookup("channel_get")
	reply, err := get.Handler(ctx, commands.Request{ChatID: guild, ThreadID: 6})
	require.NoError(t, err)
	assert.Contains(t, reply, "chat")

	_, err = set.Handler(ctx, commands.Request{ChatID: guild, Args: []string{"news"}})
	assert.ErrorIs(t, err, common.ErrUnknownChannelType)
}
