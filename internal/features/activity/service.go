// Package activity начисляет очки за сообщения и реакции в темах постов и чата
// и передаёт реакции на ответы в вопросы.
package activity

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/score-bot/internal/features/channels"
	"serotonyl.ru/score-bot/internal/features/questions"
	"serotonyl.ru/score-bot/internal/features/scoring"
)

// Scorer — точки входа начисления очков за активность.
type Scorer interface {
	Post(ctx context.Context, guildID, channelID, memberID int64) (scoring.Result, error)
	PostReaction(ctx context.Context, guildID, channelID, memberID int64) (scoring.Result, error)
	Chat(ctx context.Context, guildID, channelID, memberID int64) (scoring.Result, error)
	ChatReaction(ctx context.Context, guildID, channelID, memberID int64) (scoring.Result, error)
}

// ChannelRoles отдаёт роль темы.
type ChannelRoles interface {
	Query(ctx context.Context, guildID, channelID int64) (channels.ChannelType, bool, error)
}

// AnswerReactor учитывает реакции на ответы.
type AnswerReactor interface {
	React(ctx context.Context, guildID, messageID int64, kind questions.Reaction) (bool, error)
}

// Message — сообщение пользователя (не команда, не от бота).
type Message struct {
	ChatID    int64
	ThreadID  int64
	MessageID int64
	UserID    int64
	SentAt    time.Time
}

// Reaction — новые эмодзи, которые пользователь поставил на сообщение.
type Reaction struct {
	ChatID    int64
	MessageID int64
	UserID    int64
	Emoji     []string
	At        time.Time
}

// Service распределяет события по точкам входа начисления.
type Service struct {
	scorer     Scorer
	roles      ChannelRoles
	answers    AnswerReactor
	classifier *Classifier
	index      *messageIndex
	postWindow time.Duration
}

// NewService создаёт сервис активности. Реакции на посты засчитываются,
// только если посту меньше postWindow; столько же живёт индекс сообщений.
func NewService(scorer Scorer, roles ChannelRoles, answers AnswerReactor, classifier *Classifier, indexSize int, postWindow time.Duration) *Service {
	return &Service{
		scorer:     scorer,
		roles:      roles,
		answers:    answers,
		classifier: classifier,
		index:      newMessageIndex(indexSize, postWindow),
		postWindow: postWindow,
	}
}

// HandleMessage начисляет очки за сообщение в теме постов или чата.
func (s *Service) HandleMessage(ctx context.Context, m Message) error {
	s.index.remember(m.ChatID, m.MessageID, messageInfo{threadID: m.ThreadID, sentAt: m.SentAt})

	role, ok, err := s.roles.Query(ctx, m.ChatID, m.ThreadID)
	if err != nil || !ok {
		return err
	}

	var res scoring.Result
	switch role {
	case channels.TypePost:
		res, err = s.scorer.Post(ctx, m.ChatID, m.ThreadID, m.UserID)
	case channels.TypeChat:
		res, err = s.scorer.Chat(ctx, m.ChatID, m.ThreadID, m.UserID)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"chat_id":   m.ChatID,
		"thread_id": m.ThreadID,
		"user_id":   m.UserID,
		"source":    res.Source,
		"admitted":  res.Admitted,
	}).Debug("Сообщение обработано")
	return nil
}

// HandleReaction учитывает каждое новое эмодзи-лайк или дизлайк:
// реакция на ответ меняет его счётчики, реакция в теме постов или чата
// начисляет очки тому, кто её поставил.
func (s *Service) HandleReaction(ctx context.Context, r Reaction) error {
	for _, e := range r.Emoji {
		kind := s.classifier.Classify(e)
		if kind == 0 {
			continue
		}
		if err := s.handleReaction(ctx, r, kind); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) handleReaction(ctx context.Context, r Reaction, kind questions.Reaction) error {
	isAnswer, err := s.answers.React(ctx, r.ChatID, r.MessageID, kind)
	if err != nil || isAnswer {
		return err
	}

	info, ok := s.index.lookup(r.ChatID, r.MessageID)
	if !ok {
		return nil
	}
	role, ok, err := s.roles.Query(ctx, r.ChatID, info.threadID)
	if err != nil || !ok {
		return err
	}

	var res scoring.Result
	switch role {
	case channels.TypePost:
		if r.At.Sub(info.sentAt) >= s.postWindow {
			return nil
		}
		res, err = s.scorer.PostReaction(ctx, r.ChatID, info.threadID, r.UserID)
	case channels.TypeChat:
		res, err = s.scorer.ChatReaction(ctx, r.ChatID, info.threadID, r.UserID)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"chat_id":    r.ChatID,
		"thread_id":  info.threadID,
		"message_id": r.MessageID,
		"user_id":    r.UserID,
		"source":     res.Source,
		"admitted":   res.Admitted,
	}).Debug("Реакция обработана")
	return nil
}
