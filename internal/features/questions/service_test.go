package questions

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/score-bot/internal/bot/commands"
	"serotonyl.ru/score-bot/internal/common"
	"serotonyl.ru/score-bot/internal/features/scoring"
)

type memStore struct {
	mu        sync.Mutex
	questions []*Question
	answers   []*Answer
}

func (m *memStore) Lock(context.Context, int64, int64) error { return nil }

func (m *memStore) Latest(_ context.Context, guild, channel int64) (*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.questions) - 1; i >= 0; i-- {
		q := m.questions[i]
		if q.GuildID == guild && q.ChannelID == channel {
			cp := *q
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(_ context.Context, q *Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = int64(len(m.questions) + 1)
	q.Opened = true
	cp := *q
	m.questions = append(m.questions, &cp)
	return nil
}

func (m *memStore) CreateAnswer(_ context.Context, a *Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.answers) + 1)
	cp := *a
	m.answers = append(m.answers, &cp)
	return nil
}

func (m *memStore) AddReaction(_ context.Context, guild, messageID int64, kind Reaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.answers {
		if a.GuildID == guild && a.MessageID == messageID {
			if kind == ReactionLike {
				a.Like++
			} else {
				a.Dislike++
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Answers(_ context.Context, questionID int64) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Answer
	for _, a := range m.answers {
		if a.QuestionID == questionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) Close(_ context.Context, questionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.questions {
		if q.ID == questionID {
			q.Opened = false
		}
	}
	return nil
}

type answerCall struct {
	member        int64
	like, dislike int
}

type fakeScorer struct {
	mu        sync.Mutex
	questions []int64
	answers   []answerCall
	failOn    int64
}

func (f *fakeScorer) Question(_ context.Context, _, _, member int64) (scoring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, member)
	return scoring.Result{Source: scoring.SourceQuestion, Amount: 1, Admitted: true}, nil
}

func (f *fakeScorer) Answer(_ context.Context, _, _, member int64, like, dislike int) ([]scoring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if member == f.failOn {
		return nil, errors.New("db down")
	}
	f.answers = append(f.answers, answerCall{member, like, dislike})
	return nil, nil
}

type idNames struct{}

func (idNames) DisplayNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		out[id] = "u" + strconv.FormatInt(id, 10)
	}
	return out, nil
}

// rollbackTx откатывает изменения хранилища при ошибке, как настоящая транзакция.
type rollbackTx struct{ store *memStore }

func (r rollbackTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.store.mu.Lock()
	qs := make([]*Question, len(r.store.questions))
	for i, q := range r.store.questions {
		cp := *q
		qs[i] = &cp
	}
	r.store.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		r.store.mu.Lock()
		r.store.questions = qs
		r.store.mu.Unlock()
	}
	return err
}

const (
	guild   = int64(-1001)
	channel = int64(42)
	asker   = int64(1)
)

func newTestService() (*Service, *memStore, *fakeScorer) {
	store := &memStore{}
	scorer := &fakeScorer{}
	return NewService(store, rollbackTx{store}, scorer, idNames{}), store, scorer
}

func TestLifecycleErrors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Answer(ctx, guild, channel, 2, 100)
	assert.ErrorIs(t, err, common.ErrNoQuestion)
	_, err = svc.Close(ctx, guild, channel)
	assert.ErrorIs(t, err, common.ErrNoQuestion)

	_, err = svc.Ask(ctx, guild, channel, asker)
	require.NoError(t, err)
	_, err = svc.Ask(ctx, guild, channel, asker)
	assert.ErrorIs(t, err, common.ErrQuestionStillOpen)

	// В другой теме своё состояние
	_, err = svc.Ask(ctx, guild, channel+1, asker)
	require.NoError(t, err)

	_, err = svc.Close(ctx, guild, channel)
	require.NoError(t, err)

	_, err = svc.Answer(ctx, guild, channel, 2, 101)
	assert.ErrorIs(t, err, common.ErrQuestionAlreadyClosed)
	_, err = svc.Close(ctx, guild, channel)
	assert.ErrorIs(t, err, common.ErrQuestionAlreadyClosed)

	// После закрытия можно задать новый вопрос
	q, err := svc.Ask(ctx, guild, channel, asker)
	require.NoError(t, err)
	assert.True(t, q.Opened)
}

func TestCloseRanksStableAndAwardsEveryone(t *testing.T) {
	svc, _, scorer := newTestService()
	ctx := context.Background()

	_, err := svc.Ask(ctx, guild, channel, asker)
	require.NoError(t, err)

	// A=3, B=1, C=3, D=0 лайков -> A, C, B, D
	likes := []struct {
		member, message int64
		like, dislike   int
	}{
		{10, 1000, 3, 0},
		{11, 1001, 1, 2},
		{12, 1002, 3, 1},
		{13, 1003, 0, 0},
	}
	for _, l := range likes {
		_, err := svc.Answer(ctx, guild, channel, l.member, l.message)
		require.NoError(t, err)
		for i := 0; i < l.like; i++ {
			found, err := svc.React(ctx, guild, l.message, ReactionLike)
			require.NoError(t, err)
			require.True(t, found)
		}
		for i := 0; i < l.dislike; i++ {
			_, err := svc.React(ctx, guild, l.message, ReactionDislike)
			require.NoError(t, err)
		}
	}

	summary, err := svc.Close(ctx, guild, channel)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.AnswerCount)

	var order []int64
	for _, r := range summary.Ranking {
		order = append(order, r.MemberID)
	}
	assert.Equal(t, []int64{10, 12, 11, 13}, order)
	assert.Equal(t, RankedAnswer{MemberID: 12, Name: "u12", Like: 3, Dislike: 1}, summary.Ranking[1])

	assert.Equal(t, []int64{asker}, scorer.questions)
	assert.ElementsMatch(t, []answerCall{{10, 3, 0}, {11, 1, 2}, {12, 3, 1}, {13, 0, 0}}, scorer.answers)

	assert.Contains(t, FormatSummary(summary), "4 ответа")
}

func TestCloseFailureKeepsQuestionOpen(t *testing.T) {
	svc, store, scorer := newTestService()
	ctx := context.Background()
	scorer.failOn = 11

	_, err := svc.Ask(ctx, guild, channel, asker)
	require.NoError(t, err)
	_, err = svc.Answer(ctx, guild, channel, 10, 1)
	require.NoError(t, err)
	_, err = svc.Answer(ctx, guild, channel, 11, 2)
	require.NoError(t, err)

	_, err = svc.Close(ctx, guild, channel)
	require.Error(t, err)

	q, err := store.Latest(ctx, guild, channel)
	require.NoError(t, err)
	assert.True(t, q.Opened)
}

func TestReactIgnoresUnknownMessages(t *testing.T) {
	svc, _, _ := newTestService()
	found, err := svc.React(context.Background(), guild, 999, ReactionLike)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = svc.React(context.Background(), guild, 999, Reaction(0))
	require.NoError(t, err)
	assert.False(t, found)
}

type channelStub bool

func (c channelStub) IsQuestionChannel(context.Context, int64, int64) (bool, error) {
	return bool(c), nil
}

func TestCommandsOnlyInQuestionChannel(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	table, err := commands.NewTable(NewHandler(svc, channelStub(false)).Commands()...)
	require.NoError(t, err)
	ask, _ := table.Lookup("question")
	_, err = ask.Handler(ctx, commands.Request{ChatID: guild, ThreadID: channel, UserID: asker})
	assert.ErrorIs(t, err, common.ErrNotQuestionChannel)

	table, err = commands.NewTable(NewHandler(svc, channelStub(true)).Commands()...)
	require.NoError(t, err)
	ask, _ = table.Lookup("question")
	_, err = ask.Handler(ctx, commands.Request{ChatID: guild, ThreadID: channel, UserID: asker})
	require.NoError(t, err)

	answer, _ := table.Lookup("answer")
	_, err = answer.Handler(ctx, commands.Request{ChatID: guild, ThreadID: channel, UserID: 5, MessageID: 77, Args: []string{"42"}})
	require.NoError(t, err)
	found, err := svc.React(ctx, guild, 77, ReactionLike)
	require.NoError(t, err)
	assert.True(t, found, "ответом считается сообщение с командой")
}
