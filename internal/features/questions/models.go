// Package questions ведёт вопросы и ответы в теме вопросов.
// В каждой теме вопрос проходит состояния: нет вопроса -> открыт -> закрыт;
// новый вопрос можно задать только после закрытия предыдущего.
// При закрытии вопроса начисляются очки автору и всем ответившим.
package questions

import "time"

// Question — вопрос в теме. Opened == false — вопрос закрыт навсегда.
type Question struct {
	ID        int64     `db:"id"`
	GuildID   int64     `db:"guild_id"`
	ChannelID int64     `db:"channel_id"`
	MemberID  int64     `db:"member_id"` // автор вопроса
	Opened    bool      `db:"opened"`
	CreatedAt time.Time `db:"created_at"`
}

// Answer — ответ на вопрос. MessageID — сообщение с командой ответа,
// реакции на него считаются лайками и дизлайками ответа.
type Answer struct {
	ID         int64 `db:"id"`
	QuestionID int64 `db:"question_id"`
	GuildID    int64 `db:"guild_id"`
	ChannelID  int64 `db:"channel_id"`
	MemberID   int64 `db:"member_id"`
	MessageID  int64 `db:"message_id"`
	Like       int   `db:"like"`
	Dislike    int   `db:"dislike"`
}

// Reaction — оценка ответа.
type Reaction int

const (
	ReactionLike Reaction = iota + 1
	ReactionDislike
)

// RankedAnswer — строка итогов вопроса.
type RankedAnswer struct {
	MemberID int64
	Name     string
	Like     int
	Dislike  int
}

// Summary — итоги закрытого вопроса. Ranking отсортирован по лайкам,
// при равенстве сохраняется порядок ответов.
type Summary struct {
	QuestionID  int64
	AskerID     int64
	AnswerCount int
	Ranking     []RankedAnswer
}
