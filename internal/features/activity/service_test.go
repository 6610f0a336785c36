package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/score-bot/internal/features/channels"
	"serotonyl.ru/score-bot/internal/features/questions"
	"serotonyl.ru/score-bot/internal/features/scoring"
)

type call struct {
	src     scoring.ActionSource
	channel int64
	member  int64
}

type recordingScorer struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingScorer) record(src scoring.ActionSource, channel, member int64) (scoring.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{src, channel, member})
	return scoring.Result{Source: src, Amount: 1, Admitted: true}, nil
}

func (r *recordingScorer) Post(_ context.Context, _, c, m int64) (scoring.Result, error) {
	return r.record(scoring.SourcePost, c, m)
}

func (r *recordingScorer) PostReaction(_ context.Context, _, c, m int64) (scoring.Result, error) {
	return r.record(scoring.SourcePostReaction, c, m)
}

func (r *recordingScorer) Chat(_ context.Context, _, c, m int64) (scoring.Result, error) {
	return r.record(scoring.SourceChat, c, m)
}

func (r *recordingScorer) ChatReaction(_ context.Context, _, c, m int64) (scoring.Result, error) {
	return r.record(scoring.SourceChatReaction, c, m)
}

type roleMap map[int64]channels.ChannelType

func (m roleMap) Query(_ context.Context, _, channel int64) (channels.ChannelType, bool, error) {
	t, ok := m[channel]
	return t, ok, nil
}

type answerSet struct {
	messages map[int64]bool
	reacted  []questions.Reaction
}

func (a *answerSet) React(_ context.Context, _, messageID int64, kind questions.Reaction) (bool, error) {
	if !a.messages[messageID] {
		return false, nil
	}
	a.reacted = append(a.reacted, kind)
	return true, nil
}

const (
	chat          = int64(-100777)
	postThread    = int64(2)
	chatThread    = int64(3)
	questionTopic = int64(4)
)

func newTestService(t *testing.T) (*Service, *recordingScorer, *answerSet) {
	t.Helper()
	classifier, err := NewClassifier(
		[]string{"thumbs_up", "hundred_points", "red_heart", "rolling_on_the_floor_laughing"},
		[]string{"thumbs_down", "neutral_face"},
	)
	require.NoError(t, err)
	scorer := &recordingScorer{}
	answers := &answerSet{messages: map[int64]bool{500: true}}
	roles := roleMap{postThread: channels.TypePost, chatThread: channels.TypeChat, questionTopic: channels.TypeQuestion}
	return NewService(scorer, roles, answers, classifier, 100, 24*time.Hour), scorer, answers
}

func TestMessagesScoredByChannelRole(t *testing.T) {
	svc, scorer, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	for _, thread := range []int64{postThread, chatThread, questionTopic, 99} {
		require.NoError(t, svc.HandleMessage(ctx, Message{ChatID: chat, ThreadID: thread, MessageID: thread * 10, UserID: 1, SentAt: now}))
	}
	assert.Equal(t, []call{
		{scoring.SourcePost, postThread, 1},
		{scoring.SourceChat, chatThread, 1},
	}, scorer.calls)
}

func TestReactionsCreditReactor(t *testing.T) {
	svc, scorer, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.HandleMessage(ctx, Message{ChatID: chat, ThreadID: chatThread, MessageID: 30, UserID: 1, SentAt: now}))
	scorer.calls = nil

	require.NoError(t, svc.HandleReaction(ctx, Reaction{ChatID: chat, MessageID: 30, UserID: 2, Emoji: []string{"👍", "🔥"}, At: now}))
	assert.Equal(t, []call{{scoring.SourceChatReaction, chatThread, 2}}, scorer.calls, "🔥 не лайк и не дизлайк")
}

func TestPostReactionWindow(t *testing.T) {
	svc, scorer, _ := newTestService(t)
	ctx := context.Background()
	sent := time.Now()

	require.NoError(t, svc.HandleMessage(ctx, Message{ChatID: chat, ThreadID: postThread, MessageID: 20, UserID: 1, SentAt: sent}))
	scorer.calls = nil

	require.NoError(t, svc.HandleReaction(ctx, Reaction{ChatID: chat, MessageID: 20, UserID: 2, Emoji: []string{"❤️"}, At: sent.Add(23 * time.Hour)}))
	require.NoError(t, svc.HandleReaction(ctx, Reaction{ChatID: chat, MessageID: 20, UserID: 3, Emoji: []string{"👍"}, At: sent.Add(24 * time.Hour)}))
	assert.Equal(t, []call{{scoring.SourcePostReaction, postThread, 2}}, scorer.calls)
}

func TestReactionOnAnswerGoesToQuestions(t *testing.T) {
	svc, scorer, answers := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleReaction(ctx, Reaction{ChatID: chat, MessageID: 500, UserID: 2, Emoji: []string{"👍", "😐", "🤣"}, At: time.Now()}))
	assert.Equal(t, []questions.Reaction{questions.ReactionLike, questions.ReactionDislike, questions.ReactionLike}, answers.reacted)
	assert.Empty(t, scorer.calls)
}

func TestReactionOnUnknownMessageIgnored(t *testing.T) {
	svc, scorer, _ := newTestService(t)
	require.NoError(t, svc.HandleReaction(context.Background(), Reaction{ChatID: chat, MessageID: 12345, UserID: 2, Emoji: []string{"👍"}, At: time.Now()}))
	assert.Empty(t, scorer.calls)
}

func TestClassifier(t *testing.T) {
	c, err := NewClassifier([]string{"thumbs_up", "red_heart"}, []string{"thumbs_down"})
	require.NoError(t, err)
	assert.Equal(t, questions.ReactionLike, c.Classify("👍"))
	assert.Equal(t, questions.ReactionLike, c.Classify("❤"))
	assert.Equal(t, questions.ReactionLike, c.Classify("❤️"))
	assert.Equal(t, questions.ReactionDislike, c.Classify("👎"))
	assert.Equal(t, questions.Reaction(0), c.Classify("🔥"))

	_, err = NewClassifier([]string{"unicorn_face"}, nil)
	assert.Error(t, err)
	_, err = NewClassifier([]string{"thumbs_up"}, []string{"thumbs_up"})
	assert.Error(t, err)
}
