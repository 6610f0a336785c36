// Package filters решает, какие апдейты бот вообще обрабатывает.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает только группы из ALLOWED_CHAT_IDS и только людей.
type ChatFilter struct {
	allowed func(chatID int64) bool
}

// NewChatFilter создаёт фильтр. allowed == nil — разрешены все группы.
func NewChatFilter(allowed func(chatID int64) bool) *ChatFilter {
	return &ChatFilter{allowed: allowed}
}

// CheckAccess проверяет чат и автора события.
func (f *ChatFilter) CheckAccess(chat telego.Chat, from *telego.User) bool {
	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   chat.ID,
		"chat_type": chat.Type,
	})

	if from == nil {
		logger.Debug("deny: нет автора (сообщение от имени канала или анонимного админа)")
		return false
	}
	if from.IsBot {
		return false
	}
	logger = logger.WithField("user_id", from.ID)

	if chat.Type != "group" && chat.Type != "supergroup" {
		logger.Debug("deny: не групповой чат")
		return false
	}
	if f.allowed != nil && !f.allowed(chat.ID) {
		logger.Info("deny: чат не в ALLOWED_CHAT_IDS")
		return false
	}
	return true
}
