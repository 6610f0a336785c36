package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/score-bot/internal/bot/commands"
	"serotonyl.ru/score-bot/internal/common"
	"serotonyl.ru/score-bot/internal/features/activity"
)

const testChat = int64(-100500)

type fakeAPI struct {
	updates     chan telego.Update
	mu          sync.Mutex
	sent        []*telego.SendMessageParams
	status      string
	memberCalls int
}

func (f *fakeAPI) UpdatesViaLongPolling(context.Context, *telego.GetUpdatesParams, ...telego.LongPollingOption) (<-chan telego.Update, error) {
	if f.updates != nil {
		return f.updates, nil
	}
	ch := make(chan telego.Update)
	close(ch)
	return ch, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	return &telego.Message{}, nil
}

func (f *fakeAPI) GetChatMember(_ context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	if f.status == "" {
		return nil, errors.New("telegram недоступен")
	}
	user := telego.User{ID: params.UserID}
	if f.status == "administrator" {
		return &telego.ChatMemberAdministrator{Status: "administrator", User: user}, nil
	}
	return &telego.ChatMemberMember{Status: "member", User: user}, nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1].Text
}

type fakeMembers struct{ seen []int64 }

func (f *fakeMembers) HandleUser(_ context.Context, u *telego.User) { f.seen = append(f.seen, u.ID) }

func (f *fakeMembers) HandleNewChatMembers(_ context.Context, users []telego.User) {
	for _, u := range users {
		f.seen = append(f.seen, u.ID)
	}
}

type fakeNames struct {
	chats  map[int64]string
	topics map[int64]string
}

func (f *fakeNames) RememberChat(_ context.Context, chatID int64, title string) error {
	f.chats[chatID] = title
	return nil
}

func (f *fakeNames) RememberTopic(_ context.Context, _, threadID int64, name string) error {
	f.topics[threadID] = name
	return nil
}

type fakeActivity struct {
	messages  []activity.Message
	reactions []activity.Reaction
}

func (f *fakeActivity) HandleMessage(_ context.Context, m activity.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeActivity) HandleReaction(_ context.Context, r activity.Reaction) error {
	f.reactions = append(f.reactions, r)
	return nil
}

type harness struct {
	bot      *Bot
	api      *fakeAPI
	names    *fakeNames
	activity *fakeActivity
	calls    *[]commands.Request
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &fakeAPI{status: "member"}
	names := &fakeNames{chats: map[int64]string{}, topics: map[int64]string{}}
	act := &fakeActivity{}
	var calls []commands.Request
	record := func(_ context.Context, req commands.Request) (string, error) {
		calls = append(calls, req)
		return "ok " + req.RawArgs, nil
	}
	specs := []commands.Spec{
		{Name: "echo", MinArgs: 1, Usage: "<text>", Handler: record},
		{Name: "secret", Admin: true, Handler: record},
		{Name: "fail", Handler: func(context.Context, commands.Request) (string, error) {
			return "", common.ErrNoQuestion
		}},
	}
	b, err := New(api, Settings{
		IsAdminID:      func(id int64) bool { return id == 99 },
		IsChatAllowed:  func(id int64) bool { return id == testChat },
		RateLimitCount: 100,
		RateLimitEvery: time.Minute,
	}, &fakeMembers{}, names, act, specs)
	require.NoError(t, err)
	return &harness{bot: b, api: api, names: names, activity: act, calls: &calls}
}

func message(userID int64, thread int, text string) *telego.Message {
	return &telego.Message{
		MessageID:       77,
		MessageThreadID: thread,
		IsTopicMessage:  thread != 0,
		From:            &telego.User{ID: userID, FirstName: "Вася"},
		Chat:            telego.Chat{ID: testChat, Type: "supergroup", Title: "Клуб"},
		Date:            1700000000,
		Text:            text,
	}
}

func TestPlainMessageGoesToActivity(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), telego.Update{Message: message(1, 5, "привет")})

	require.Len(t, h.activity.messages, 1)
	assert.Equal(t, activity.Message{ChatID: testChat, ThreadID: 5, MessageID: 77, UserID: 1, SentAt: time.Unix(1700000000, 0)}, h.activity.messages[0])
	assert.Equal(t, "Клуб", h.names.chats[testChat])
	assert.Empty(t, h.api.sent)
}

func TestCommandRouting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, telego.Update{Message: message(1, 5, "/echo@score_bot раз два")})
	require.Len(t, *h.calls, 1)
	req := (*h.calls)[0]
	assert.Equal(t, int64(5), req.ThreadID)
	assert.Equal(t, []string{"раз", "два"}, req.Args)
	assert.Equal(t, "ok раз два", h.api.lastText(t))
	assert.Equal(t, 5, h.api.sent[0].MessageThreadID)
	assert.Empty(t, h.activity.messages, "команды не приносят очков")

	h.bot.HandleUpdate(ctx, telego.Update{Message: message(1, 5, "!echo")})
	assert.Contains(t, h.api.lastText(t), "/echo <text>")

	h.bot.HandleUpdate(ctx, telego.Update{Message: message(1, 0, ".fail")})
	assert.Equal(t, common.UserMessage(common.ErrNoQuestion), h.api.lastText(t))

	h.bot.HandleUpdate(ctx, telego.Update{Message: message(1, 0, "/unknown")})
	assert.Len(t, h.activity.messages, 1, "неизвестная команда — обычное сообщение")
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, telego.Update{Message: message(1, 0, "/secret")})
	assert.Equal(t, common.UserMessage(common.ErrNotAdmin), h.api.lastText(t))
	assert.Empty(t, *h.calls)

	h.bot.HandleUpdate(ctx, telego.Update{Message: message(99, 0, "/secret")})
	assert.Len(t, *h.calls, 1, "ADMIN_IDS без запроса к Telegram")
	assert.Equal(t, 1, h.api.memberCalls)

	h.api.status = "administrator"
	h.bot.HandleUpdate(ctx, telego.Update{Message: message(2, 0, "/secret")})
	h.bot.HandleUpdate(ctx, telego.Update{Message: message(2, 0, "/secret")})
	assert.Len(t, *h.calls, 3)
	assert.Equal(t, 2, h.api.memberCalls, "статус кешируется")
}

func TestForeignChatIgnored(t *testing.T) {
	h := newHarness(t)
	m := message(1, 0, "/echo x")
	m.Chat.ID = -1
	h.bot.HandleUpdate(context.Background(), telego.Update{Message: m})

	assert.Empty(t, *h.calls)
	assert.Empty(t, h.activity.messages)
}

func TestTopicEventsRemembered(t *testing.T) {
	h := newHarness(t)
	m := message(1, 9, "")
	m.ForumTopicCreated = &telego.ForumTopicCreated{Name: "Вопросы"}
	h.bot.HandleUpdate(context.Background(), telego.Update{Message: m})

	assert.Equal(t, "Вопросы", h.names.topics[9])
	assert.Empty(t, h.activity.messages)
}

func TestReactionsPassOnlyAdded(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), telego.Update{MessageReaction: &telego.MessageReactionUpdated{
		Chat:        telego.Chat{ID: testChat, Type: "supergroup"},
		MessageID:   40,
		User:        &telego.User{ID: 3},
		Date:        1700000100,
		OldReaction: []telego.ReactionType{&telego.ReactionTypeEmoji{Type: "emoji", Emoji: "👍"}},
		NewReaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: "emoji", Emoji: "👍"},
			&telego.ReactionTypeEmoji{Type: "emoji", Emoji: "❤"},
		},
	}})

	require.Len(t, h.activity.reactions, 1)
	assert.Equal(t, activity.Reaction{ChatID: testChat, MessageID: 40, UserID: 3, Emoji: []string{"❤"}, At: time.Unix(1700000100, 0)}, h.activity.reactions[0])
}

func TestReplyTarget(t *testing.T) {
	m := message(1, 5, "/score_get chat")
	assert.Zero(t, replyTarget(m))

	m.ReplyToMessage = &telego.Message{From: &telego.User{ID: 2}, ForumTopicCreated: &telego.ForumTopicCreated{Name: "t"}}
	assert.Zero(t, replyTarget(m))

	m.ReplyToMessage = &telego.Message{From: &telego.User{ID: 2}}
	assert.Equal(t, int64(2), replyTarget(m))
}

func TestHelpHidesAdminCommands(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), telego.Update{Message: message(1, 0, "/help")})
	text := h.api.lastText(t)
	assert.Contains(t, text, "/echo")
	assert.NotContains(t, text, "/secret")
}

func TestStartReturnsWhenUpdatesClosed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.Start(context.Background()))
	h.bot.Wait()
}

// blockingActivity держит обработку сообщения, пока тест не отпустит её.
type blockingActivity struct {
	started  chan struct{}
	release  chan struct{}
	ctxErr   error
	finished bool
}

func (b *blockingActivity) HandleMessage(ctx context.Context, _ activity.Message) error {
	close(b.started)
	<-b.release
	b.ctxErr = ctx.Err()
	b.finished = true
	return nil
}

func (b *blockingActivity) HandleReaction(context.Context, activity.Reaction) error { return nil }

func TestInflightHandlerFinishesAfterStop(t *testing.T) {
	h := newHarness(t)
	blocker := &blockingActivity{started: make(chan struct{}), release: make(chan struct{})}
	h.bot.activity = blocker
	updates := make(chan telego.Update, 1)
	h.api.updates = updates

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Start(ctx) }()

	updates <- telego.Update{Message: message(1, 5, "привет")}
	<-blocker.started

	cancel()
	require.NoError(t, <-done)

	close(blocker.release)
	h.bot.Wait()
	assert.True(t, blocker.finished)
	assert.NoError(t, blocker.ctxErr, "обработчик не видит отмену приёма апдейтов")
}
