// Package scoring реализует начисление очков за активность.
// models.go описывает словарь источников и типов очков и строки таблиц
// score_configs, score_logs и user_scores.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"serotonyl.ru/score-bot/internal/common"
)

// ScoreType — «корзина», в которую копятся очки пользователя.
type ScoreType string

const (
	ScoreTypePost     ScoreType = "post"
	ScoreTypeQuestion ScoreType = "question"
	ScoreTypeChat     ScoreType = "chat"
)

// ScoreTypes — все типы очков в порядке вывода.
var ScoreTypes = []ScoreType{ScoreTypePost, ScoreTypeQuestion, ScoreTypeChat}

// ParseScoreType разбирает тип очков без учёта регистра.
func ParseScoreType(s string) (ScoreType, error) {
	t := ScoreType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ScoreTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownScoreType, s)
}

// ActionSource — что именно сделал пользователь.
type ActionSource string

const (
	SourcePost           ActionSource = "post"
	SourcePostReaction   ActionSource = "post_reaction"
	SourceQuestion       ActionSource = "question"
	SourceAnswer         ActionSource = "answer"
	SourceAnswerReaction ActionSource = "answer_reaction"
	SourceChat           ActionSource = "chat"
	SourceChatReaction   ActionSource = "chat_reaction"
)

// ActionSources — все источники очков.
var ActionSources = []ActionSource{
	SourcePost, SourcePostReaction,
	SourceQuestion, SourceAnswer, SourceAnswerReaction,
	SourceChat, SourceChatReaction,
}

// ScoreType возвращает корзину, в которую идут очки этого источника.
func (s ActionSource) ScoreType() ScoreType {
	switch s {
	case SourcePost, SourcePostReaction:
		return ScoreTypePost
	case SourceQuestion, SourceAnswer, SourceAnswerReaction:
		return ScoreTypeQuestion
	default:
		return ScoreTypeChat
	}
}

// ParseActionSource разбирает источник очков без учёта регистра.
func ParseActionSource(s string) (ActionSource, error) {
	src := ActionSource(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ActionSources {
		if src == known {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownSource, s)
}

// Значения по умолчанию, если настройка не задана ни для канала, ни для гильдии.
const (
	DefaultWeight   = 1.0
	DefaultCooldown = 0
)

// ScoreConfig — переопределение веса и/или кулдауна источника.
// ChannelID == nil — настройка на всю гильдию.
type ScoreConfig struct {
	ID        int64        `db:"id"`
	GuildID   int64        `db:"guild_id"`
	Source    ActionSource `db:"score_src"`
	ChannelID *int64       `db:"channel_id"`
	Weight    *float64     `db:"weight"`
	Cooldown  *int         `db:"cooldown"` // секунды
}

// ScoreLog — запись о начислении. Только дописывается.
type ScoreLog struct {
	ID        int64        `db:"id"`
	GuildID   int64        `db:"guild_id"`
	ChannelID int64        `db:"channel_id"`
	MemberID  int64        `db:"member_id"`
	Source    ActionSource `db:"score_src"`
	Score     float64      `db:"score"`
	CreatedAt time.Time    `db:"created_at"`
}

// UserScore — накопленная сумма очков пользователя одного типа в одной гильдии.
type UserScore struct {
	GuildID  int64     `db:"guild_id"`
	MemberID int64     `db:"member_id"`
	Type     ScoreType `db:"score_type"`
	Score    float64   `db:"score"`
}

// Result — итог попытки начисления по одному источнику.
type Result struct {
	Source   ActionSource
	Amount   float64
	Admitted bool
}

// LogOrder — порядок выдачи истории начислений.
type LogOrder string

const (
	OrderAsc  LogOrder = "asc"
	OrderDesc LogOrder = "desc"
)
