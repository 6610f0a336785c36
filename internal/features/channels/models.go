// Package channels хранит роли тем чата: посты, вопросы или общение.
// Роль темы определяет, какие очки начисляются за активность в ней.
package channels

import (
	"fmt"
	"strings"

	"serotonyl.ru/score-bot/internal/common"
)

// ChannelType — роль темы.
type ChannelType string

const (
	TypePost     ChannelType = "post"
	TypeQuestion ChannelType = "question"
	TypeChat     ChannelType = "chat"
)

// ParseChannelType разбирает роль без учёта регистра.
func ParseChannelType(s string) (ChannelType, error) {
	t := ChannelType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypePost, TypeQuestion, TypeChat:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownChannelType, s)
}

// Binding — роль одной темы в чате (гильдии).
type Binding struct {
	ID        int64       `db:"id"`
	GuildID   int64       `db:"guild_id"`
	ChannelID int64       `db:"channel_id"`
	Type      ChannelType `db:"channel_type"`
}
