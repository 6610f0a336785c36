// Package channels — handlers.go: команды назначения ролей тем.
package channels

import (
	"context"
	"fmt"

	"serotonyl.ru/score-bot/internal/bot/commands"
)

// Handler обрабатывает команды ролей тем.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик команд ролей тем.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Commands возвращает команды ролей тем. Все только для админов.
func (h *Handler) Commands() []commands.Spec {
	return []commands.Spec{
		{Name: "channel_set", Usage: "<post|question|chat> [thread_id]", Help: "назначить роль теме", Admin: true, MinArgs: 1, Handler: h.handleSet},
		{Name: "channel_unset", Usage: "<post|question|chat> [thread_id]", Help: "снять роль с темы", Admin: true, MinArgs: 1, Handler: h.handleUnset},
		{Name: "channel_get", Usage: "[thread_id]", Help: "роль темы", Admin: true, Handler: h.handleGet},
	}
}

func (h *Handler) handleSet(ctx context.Context, req commands.Request) (string, error) {
	t, err := ParseChannelType(req.Args[0])
	if err != nil {
		return "", err
	}
	channel, err := commands.ThreadArg(req, 1)
	if err != nil {
		return "", err
	}
	if err := h.service.Bind(ctx, req.ChatID, channel, t); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Тема %d теперь: %s", channel, t), nil
}

func (h *Handler) handleUnset(ctx context.Context, req commands.Request) (string, error) {
	t, err := ParseChannelType(req.Args[0])
	if err != nil {
		return "", err
	}
	channel, err := commands.ThreadArg(req, 1)
	if err != nil {
		return "", err
	}
	if err := h.service.Unbind(ctx, req.ChatID, channel, t); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ С темы %d снята роль %s", channel, t), nil
}

func (h *Handler) handleGet(ctx context.Context, req commands.Request) (string, error) {
	channel, err := commands.ThreadArg(req, 0)
	if err != nil {
		return "", err
	}
	t, ok, err := h.service.Query(ctx, req.ChatID, channel)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("ℹ️ У темы %d нет роли", channel), nil
	}
	return fmt.Sprintf("ℹ️ Тема %d: %s", channel, t), nil
}
