// Package bot содержит главный модуль бота — приём апдейтов, маршрутизацию
// команд и передачу сообщений и реакций в сервис активности.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/score-bot/internal/bot/commands"
	"serotonyl.ru/score-bot/internal/bot/filters"
	"serotonyl.ru/score-bot/internal/bot/middleware"
	"serotonyl.ru/score-bot/internal/common"
	"serotonyl.ru/score-bot/internal/features/activity"
)

const (
	adminCacheSize = 1024
	adminCacheTTL  = 5 * time.Minute
)

// API — методы Telegram Bot API, которые использует бот. *telego.Bot подходит.
type API interface {
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// MemberObserver запоминает пользователей.
type MemberObserver interface {
	HandleUser(ctx context.Context, user *telego.User)
	HandleNewChatMembers(ctx context.Context, newMembers []telego.User)
}

// NameRecorder запоминает названия чатов и тем.
type NameRecorder interface {
	RememberChat(ctx context.Context, chatID int64, title string) error
	RememberTopic(ctx context.Context, chatID, threadID int64, name string) error
}

// ActivityHandler начисляет очки за сообщения и реакции.
type ActivityHandler interface {
	HandleMessage(ctx context.Context, m activity.Message) error
	HandleReaction(ctx context.Context, r activity.Reaction) error
}

// Settings — параметры запуска бота.
type Settings struct {
	MaxInflight    int
	UpdateTimeout  int
	IsAdminID      func(userID int64) bool
	IsChatAllowed  func(chatID int64) bool
	RateLimitCount int
	RateLimitEvery time.Duration
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api      API
	settings Settings

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	table       *commands.Table
	admins      *expirable.LRU[adminKey, bool]

	members  MemberObserver
	names    NameRecorder
	activity ActivityHandler

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

type adminKey struct {
	chatID, userID int64
}

// New создаёт бота. specs — команды фич; help добавляется автоматически.
func New(api API, settings Settings, members MemberObserver, names NameRecorder, act ActivityHandler, specs []commands.Spec) (*Bot, error) {
	if settings.MaxInflight <= 0 {
		settings.MaxInflight = 64
	}
	if settings.IsAdminID == nil {
		settings.IsAdminID = func(int64) bool { return false }
	}

	b := &Bot{
		api:         api,
		settings:    settings,
		chatFilter:  filters.NewChatFilter(settings.IsChatAllowed),
		rateLimiter: middleware.NewRateLimiter(settings.RateLimitCount, settings.RateLimitEvery),
		admins:      expirable.NewLRU[adminKey, bool](adminCacheSize, nil, adminCacheTTL),
		members:     members,
		names:       names,
		activity:    act,
		inflight:    make(chan struct{}, settings.MaxInflight),
	}

	all := append([]commands.Spec{
		{Name: "help", Help: "список команд", Handler: b.handleHelp},
		{Name: "start", Handler: b.handleHelp},
	}, specs...)
	table, err := commands.NewTable(all...)
	if err != nil {
		return nil, err
	}
	b.table = table
	return b, nil
}

// RateLimiter отдаёт лимитер, чтобы планировщик мог его чистить.
func (b *Bot) RateLimiter() *middleware.RateLimiter {
	return b.rateLimiter
}

// Start запускает long polling и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.settings.UpdateTimeout,
		AllowedUpdates: []string{"message", "message_reaction"},
	})
	if err != nil {
		return fmt.Errorf("не удалось запустить long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"max_inflight": b.settings.MaxInflight,
		"timeout_sec":  b.settings.UpdateTimeout,
	}).Info("Бот запущен и ожидает сообщения...")

	// Отмена ctx останавливает приём апдейтов, но начатые обработчики
	// доводят работу до конца; их ждёт Wait.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			b.wg.Add(1)
			go func(upd telego.Update) {
				defer b.wg.Done()
				defer func() { <-b.inflight }()
				b.HandleUpdate(handlerCtx, upd)
			}(update)
		}
	}
}

// Wait ждёт завершения апдейтов, которые уже обрабатываются.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) HandleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(log.Fields{"update_id": update.UpdateID})

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.MessageReaction != nil:
		b.handleReaction(ctx, update.MessageReaction)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) {
	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message.Chat, message.From) {
		return
	}

	chatID := message.Chat.ID
	threadID := threadOf(message)

	b.members.HandleUser(ctx, message.From)
	if err := b.names.RememberChat(ctx, chatID, message.Chat.Title); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Не удалось сохранить название чата")
	}

	// Служебные сообщения: очки за них не начисляются.
	switch {
	case len(message.NewChatMembers) > 0:
		b.members.HandleNewChatMembers(ctx, message.NewChatMembers)
		return
	case message.ForumTopicCreated != nil:
		b.rememberTopic(ctx, chatID, threadID, message.ForumTopicCreated.Name)
		return
	case message.ForumTopicEdited != nil:
		b.rememberTopic(ctx, chatID, threadID, message.ForumTopicEdited.Name)
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if name, args, raw, ok := commands.Parse(text); ok {
		if spec, found := b.table.Lookup(name); found {
			b.routeCommand(ctx, message, spec, commands.Request{
				ChatID:        chatID,
				ThreadID:      threadID,
				UserID:        message.From.ID,
				MessageID:     int64(message.MessageID),
				Name:          name,
				Args:          args,
				RawArgs:       raw,
				ReplyToUserID: replyTarget(message),
			})
			return
		}
	}

	err := b.activity.HandleMessage(ctx, activity.Message{
		ChatID:    chatID,
		ThreadID:  threadID,
		MessageID: int64(message.MessageID),
		UserID:    message.From.ID,
		SentAt:    time.Unix(message.Date, 0),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":    chatID,
			"thread_id":  threadID,
			"message_id": message.MessageID,
		}).Error("Ошибка начисления за сообщение")
	}
}

// routeCommand проверяет аргументы и права и выполняет команду.
func (b *Bot) routeCommand(ctx context.Context, message *telego.Message, spec commands.Spec, req commands.Request) {
	logger := log.WithFields(log.Fields{
		"cmd":       req.Name,
		"args":      req.Args,
		"chat_id":   req.ChatID,
		"thread_id": req.ThreadID,
		"user_id":   req.UserID,
	})
	logger.Debug("routing command")

	if !b.rateLimiter.Allow(req.UserID) {
		logger.Debug("rate limited")
		return
	}

	if len(req.Args) < spec.MinArgs {
		b.reply(ctx, message, common.UserMessage(commands.UsageError(spec)))
		return
	}

	if spec.Admin {
		admin, err := b.isAdmin(ctx, req.ChatID, req.UserID)
		if err != nil {
			logger.WithError(err).Error("Не удалось проверить права администратора")
			b.reply(ctx, message, common.UserMessage(err))
			return
		}
		if !admin {
			b.reply(ctx, message, common.UserMessage(common.ErrNotAdmin))
			return
		}
	}

	text, err := spec.Handler(ctx, req)
	if err != nil {
		if !common.IsUserFacing(err) {
			logger.WithError(err).Error("Ошибка выполнения команды")
		}
		b.reply(ctx, message, common.UserMessage(err))
		return
	}
	if text != "" {
		b.reply(ctx, message, text)
	}
}

func (b *Bot) handleHelp(ctx context.Context, req commands.Request) (string, error) {
	admin, err := b.isAdmin(ctx, req.ChatID, req.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", req.UserID).Warn("Не удалось проверить права для справки")
	}
	return b.table.Help(admin), nil
}

// isAdmin: ADMIN_IDS или создатель/администратор чата по данным Telegram.
func (b *Bot) isAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if b.settings.IsAdminID(userID) {
		return true, nil
	}
	key := adminKey{chatID: chatID, userID: userID}
	if admin, ok := b.admins.Get(key); ok {
		return admin, nil
	}

	member, err := b.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("GetChatMember: %w", err)
	}
	status := member.MemberStatus()
	admin := status == "creator" || status == "administrator"
	b.admins.Add(key, admin)
	return admin, nil
}

func (b *Bot) handleReaction(ctx context.Context, r *telego.MessageReactionUpdated) {
	middleware.LogReaction(r)

	if !b.chatFilter.CheckAccess(r.Chat, r.User) {
		return
	}
	b.members.HandleUser(ctx, r.User)

	added := addedEmoji(r.OldReaction, r.NewReaction)
	if len(added) == 0 {
		return
	}

	err := b.activity.HandleReaction(ctx, activity.Reaction{
		ChatID:    r.Chat.ID,
		MessageID: int64(r.MessageID),
		UserID:    r.User.ID,
		Emoji:     added,
		At:        time.Unix(r.Date, 0),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":    r.Chat.ID,
			"message_id": r.MessageID,
		}).Error("Ошибка начисления за реакцию")
	}
}

func (b *Bot) rememberTopic(ctx context.Context, chatID, threadID int64, name string) {
	if err := b.names.RememberTopic(ctx, chatID, threadID, name); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":   chatID,
			"thread_id": threadID,
		}).Warn("Не удалось сохранить название темы")
	}
}

// reply отвечает в ту же тему, что и исходное сообщение.
func (b *Bot) reply(ctx context.Context, message *telego.Message, text string) {
	params := tu.Message(tu.ID(message.Chat.ID), text).
		WithReplyParameters(&telego.ReplyParameters{
			MessageID:                message.MessageID,
			AllowSendingWithoutReply: true,
		})
	if thread := threadOf(message); thread != 0 {
		params = params.WithMessageThreadID(int(thread))
	}
	if _, err := b.api.SendMessage(ctx, params); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).WithField("chat_id", message.Chat.ID).Error("Ошибка отправки сообщения")
	}
}

// threadOf — номер темы форума; 0 для General и чатов без тем.
func threadOf(message *telego.Message) int64 {
	if !message.IsTopicMessage {
		return 0
	}
	return int64(message.MessageThreadID)
}

// replyTarget — автор сообщения, на которое ответили. Ответ на заголовок
// темы (так Telegram помечает любое сообщение в теме) не считается.
func replyTarget(message *telego.Message) int64 {
	reply := message.ReplyToMessage
	if reply == nil || reply.From == nil || reply.ForumTopicCreated != nil {
		return 0
	}
	return reply.From.ID
}

// addedEmoji — обычные эмодзи, которых не было в старом наборе реакций.
func addedEmoji(old, updated []telego.ReactionType) []string {
	had := make(map[string]bool, len(old))
	for _, r := range old {
		if e, ok := r.(*telego.ReactionTypeEmoji); ok {
			had[e.Emoji] = true
		}
	}
	var added []string
	for _, r := range updated {
		if e, ok := r.(*telego.ReactionTypeEmoji); ok && !had[e.Emoji] {
			added = append(added, e.Emoji)
		}
	}
	return added
}
