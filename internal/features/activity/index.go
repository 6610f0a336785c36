package activity

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Реакции в Telegram приходят без номера темы, поэтому тему и время
// сообщения берём из индекса недавних сообщений.

type messageKey struct {
	chat, message int64
}

type messageInfo struct {
	threadID int64
	sentAt   time.Time
}

// messageIndex помнит последние сообщения не дольше ttl.
type messageIndex struct {
	lru *expirable.LRU[messageKey, messageInfo]
}

func newMessageIndex(size int, ttl time.Duration) *messageIndex {
	return &messageIndex{lru: expirable.NewLRU[messageKey, messageInfo](size, nil, ttl)}
}

func (i *messageIndex) remember(chatID, messageID int64, info messageInfo) {
	i.lru.Add(messageKey{chatID, messageID}, info)
}

func (i *messageIndex) lookup(chatID, messageID int64) (messageInfo, bool) {
	return i.lru.Get(messageKey{chatID, messageID})
}
