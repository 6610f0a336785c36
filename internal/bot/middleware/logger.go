// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"unicode/utf8"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

const maxLoggedText = 50

// LogMessage логирует входящее сообщение: автор, чат, тема, начало текста.
func LogMessage(message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":   message.From.ID,
		"chat_id":   message.Chat.ID,
		"thread_id": message.MessageThreadID,
		"username":  message.From.Username,
		"text":      truncate(message.Text, maxLoggedText),
	}).Debug("Входящее сообщение")
}

// LogReaction логирует изменение реакций на сообщение.
func LogReaction(r *telego.MessageReactionUpdated) {
	if r == nil {
		return
	}
	fields := log.Fields{
		"chat_id":    r.Chat.ID,
		"message_id": r.MessageID,
		"old":        len(r.OldReaction),
		"new":        len(r.NewReaction),
	}
	if r.User != nil {
		fields["user_id"] = r.User.ID
	}
	log.WithFields(fields).Debug("Изменение реакций")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
