package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
)

// GeneralTopicName — название темы 0 (General или чат без тем).
const GeneralTopicName = "General"

// Store — хранилище названий.
type Store interface {
	SaveChat(ctx context.Context, chatID int64, title string) error
	SaveTopic(ctx context.Context, chatID, threadID int64, name string) error
	ChatTitle(ctx context.Context, chatID int64) (string, bool, error)
	TopicName(ctx context.Context, chatID, threadID int64) (string, bool, error)
}

// ChatLookup запрашивает название чата у Telegram.
type ChatLookup interface {
	ChatTitle(ctx context.Context, chatID int64) (string, error)
}

type nameKey struct {
	chat, thread int64
	topic        bool
}

// Service отдаёт названия чатов и тем: кэш -> база -> Telegram.
type Service struct {
	store  Store
	lookup ChatLookup
	cache  *expirable.LRU[nameKey, string]
}

// NewService создаёт сервис названий с кэшем на size записей и временем жизни ttl.
func NewService(store Store, lookup ChatLookup, size int, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		lookup: lookup,
		cache:  expirable.NewLRU[nameKey, string](size, nil, ttl),
	}
}

// RememberChat сохраняет название чата, если оно поменялось.
func (s *Service) RememberChat(ctx context.Context, chatID int64, title string) error {
	key := nameKey{chat: chatID}
	if title == "" {
		return nil
	}
	if cached, ok := s.cache.Get(key); ok && cached == title {
		return nil
	}
	if err := s.store.SaveChat(ctx, chatID, title); err != nil {
		return err
	}
	s.cache.Add(key, title)
	return nil
}

// RememberTopic сохраняет название темы (из событий создания и правки темы).
func (s *Service) RememberTopic(ctx context.Context, chatID, threadID int64, name string) error {
	key := nameKey{chat: chatID, thread: threadID, topic: true}
	if name == "" {
		return nil
	}
	if cached, ok := s.cache.Get(key); ok && cached == name {
		return nil
	}
	if err := s.store.SaveTopic(ctx, chatID, threadID, name); err != nil {
		return err
	}
	s.cache.Add(key, name)

	log.WithFields(log.Fields{
		"chat_id":   chatID,
		"thread_id": threadID,
		"name":      name,
	}).Debug("Название темы сохранено")
	return nil
}

// GuildName возвращает название чата. Неизвестный чат запрашивается у Telegram;
// ошибка Telegram возвращается вызывающему.
func (s *Service) GuildName(ctx context.Context, chatID int64) (string, error) {
	key := nameKey{chat: chatID}
	if name, ok := s.cache.Get(key); ok {
		return name, nil
	}
	name, ok, err := s.store.ChatTitle(ctx, chatID)
	if err != nil {
		return "", err
	}
	if !ok {
		name, err = s.lookup.ChatTitle(ctx, chatID)
		if err != nil {
			return "", fmt.Errorf("ошибка запроса названия чата %d: %w", chatID, err)
		}
		if err := s.store.SaveChat(ctx, chatID, name); err != nil {
			return "", err
		}
	}
	s.cache.Add(key, name)
	return name, nil
}

// ChannelName возвращает название темы; тема 0 — General, неизвестная — "#<id>".
func (s *Service) ChannelName(ctx context.Context, chatID, threadID int64) (string, error) {
	if threadID == 0 {
		return GeneralTopicName, nil
	}
	key := nameKey{chat: chatID, thread: threadID, topic: true}
	if name, ok := s.cache.Get(key); ok {
		return name, nil
	}
	name, ok, err := s.store.TopicName(ctx, chatID, threadID)
	if err != nil {
		return "", err
	}
	if !ok {
		// Не кэшируем: название может появиться с ближайшим событием темы
		return fmt.Sprintf("#%d", threadID), nil
	}
	s.cache.Add(key, name)
	return name, nil
}

// PurgeCache очищает кэш названий.
func (s *Service) PurgeCache() {
	n := s.cache.Len()
	s.cache.Purge()
	log.WithField("entries", n).Debug("Кэш названий очищен")
}
