// Package questions — handlers.go: команды /question, /answer и /close_question.
package questions

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/score-bot/internal/bot/commands"
	"serotonyl.ru/score-bot/internal/common"
)

// ChannelChecker проверяет роль темы.
type ChannelChecker interface {
	IsQuestionChannel(ctx context.Context, guildID, channelID int64) (bool, error)
}

// Handler обрабатывает команды вопросов.
type Handler struct {
	service  *Service
	channels ChannelChecker
}

// NewHandler создаёт обработчик команд вопросов.
func NewHandler(service *Service, channels ChannelChecker) *Handler {
	return &Handler{service: service, channels: channels}
}

// Commands возвращает команды вопросов. Работают только в теме вопросов.
func (h *Handler) Commands() []commands.Spec {
	return []commands.Spec{
		{Name: "question", Usage: "[текст]", Help: "задать вопрос", Admin: true, Handler: h.inQuestionChannel(h.handleAsk)},
		{Name: "answer", Usage: "<текст>", Help: "ответить на вопрос", MinArgs: 1, Handler: h.inQuestionChannel(h.handleAnswer)},
		{Name: "close_question", Help: "закрыть вопрос и начислить очки", Admin: true, Handler: h.inQuestionChannel(h.handleClose)},
	}
}

func (h *Handler) inQuestionChannel(next commands.Handler) commands.Handler {
	return func(ctx context.Context, req commands.Request) (string, error) {
		ok, err := h.channels.IsQuestionChannel(ctx, req.ChatID, req.ThreadID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", common.ErrNotQuestionChannel
		}
		return next(ctx, req)
	}
}

func (h *Handler) handleAsk(ctx context.Context, req commands.Request) (string, error) {
	if _, err := h.service.Ask(ctx, req.ChatID, req.ThreadID, req.UserID); err != nil {
		return "", err
	}
	return "❓ Вопрос задан! Отвечайте командой /answer <текст>", nil
}

func (h *Handler) handleAnswer(ctx context.Context, req commands.Request) (string, error) {
	if _, err := h.service.Answer(ctx, req.ChatID, req.ThreadID, req.UserID, req.MessageID); err != nil {
		return "", err
	}
	return "✅ Ответ принят. Ставьте 👍 или 👎 этому сообщению", nil
}

func (h *Handler) handleClose(ctx context.Context, req commands.Request) (string, error) {
	summary, err := h.service.Close(ctx, req.ChatID, req.ThreadID)
	if err != nil {
		return "", err
	}
	return FormatSummary(summary), nil
}

// FormatSummary собирает текст итогов вопроса.
func FormatSummary(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏁 Вопрос закрыт. %d %s", s.AnswerCount, common.PluralizeAnswers(s.AnswerCount))
	for i, r := range s.Ranking {
		fmt.Fprintf(&b, "\n%d. %s 👍 %d 👎 %d", i+1, r.Name, r.Like, r.Dislike)
	}
	return b.String()
}
