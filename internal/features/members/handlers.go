// Package members — handlers.go принимает пользователей из Telegram-событий.
package members

import (
	"context"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// Handler обрабатывает события участников.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик событий участников.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleUser запоминает автора сообщения или реакции. Боты пропускаются.
func (h *Handler) HandleUser(ctx context.Context, user *telego.User) {
	if user == nil || user.IsBot {
		return
	}
	if err := h.service.Observe(ctx, user.ID, user.Username, user.FirstName, user.LastName); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Ошибка сохранения участника")
	}
}

// HandleNewChatMembers регистрирует вступивших в чат.
func (h *Handler) HandleNewChatMembers(ctx context.Context, newMembers []telego.User) {
	for i := range newMembers {
		h.HandleUser(ctx, &newMembers[i])
	}
}
