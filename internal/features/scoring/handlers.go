// Package scoring — handlers.go: команды просмотра и изменения очков,
// весов и кулдаунов.
package scoring

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"serotonyl.ru/score-bot/internal/bot/commands"
	"serotonyl.ru/score-bot/internal/common"
	"serotonyl.ru/score-bot/internal/features/members"
)

// MemberResolver находит пользователя по ссылке из команды.
type MemberResolver interface {
	Resolve(ctx context.Context, ref string, replyToUserID int64) (*members.Member, error)
}

// Handler обрабатывает команды очков.
type Handler struct {
	service *Service
	members MemberResolver
}

// NewHandler создаёт обработчик команд очков.
func NewHandler(service *Service, members MemberResolver) *Handler {
	return &Handler{service: service, members: members}
}

// Commands возвращает команды очков для таблицы бота.
func (h *Handler) Commands() []commands.Spec {
	return []commands.Spec{
		{Name: "score_get", Usage: "[@user|id] <post|question|chat>", Help: "очки пользователя", MinArgs: 1, Handler: h.handleScoreGet},
		{Name: "score_add", Usage: "[@user|id] <type> <amount>", Help: "изменить очки вручную", Admin: true, MinArgs: 2, Handler: h.handleScoreAdd},
		{Name: "weight_get", Usage: "<source> [thread_id|all]", Help: "вес источника", MinArgs: 1, Handler: h.handleWeightGet},
		{Name: "weight_set", Usage: "<source> <weight> [thread_id|all]", Help: "задать вес", Admin: true, MinArgs: 2, Handler: h.handleWeightSet},
		{Name: "cooldown_get", Usage: "<source> [thread_id|all]", Help: "кулдаун источника", MinArgs: 1, Handler: h.handleCooldownGet},
		{Name: "cooldown_set", Usage: "<source> <1h30m> [thread_id|all]", Help: "задать кулдаун", Admin: true, MinArgs: 2, Handler: h.handleCooldownSet},
	}
}

// /score_get [@user|id] <type>. Без пользователя — автор ответа или сам вызвавший.
func (h *Handler) handleScoreGet(ctx context.Context, req commands.Request) (string, error) {
	ref, typeArg := "", req.Args[0]
	if len(req.Args) >= 2 {
		ref, typeArg = req.Args[0], req.Args[1]
	}
	t, err := ParseScoreType(typeArg)
	if err != nil {
		return "", err
	}

	replyTo := req.ReplyToUserID
	if ref == "" && replyTo == 0 {
		replyTo = req.UserID
	}
	m, err := h.members.Resolve(ctx, ref, replyTo)
	if err != nil {
		return "", err
	}

	score, err := h.service.GetScore(ctx, req.ChatID, m.UserID, t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 %s: %s очков (%s)", m.DisplayName(), common.FormatScore(score), t), nil
}

// /score_add [@user|id] <type> <amount>
func (h *Handler) handleScoreAdd(ctx context.Context, req commands.Request) (string, error) {
	ref, typeArg, amountArg := "", req.Args[0], req.Args[1]
	if len(req.Args) >= 3 {
		ref, typeArg, amountArg = req.Args[0], req.Args[1], req.Args[2]
	}
	t, err := ParseScoreType(typeArg)
	if err != nil {
		return "", err
	}
	amount, err := common.ParseAmount(amountArg)
	if err != nil {
		return "", err
	}
	m, err := h.members.Resolve(ctx, ref, req.ReplyToUserID)
	if err != nil {
		return "", err
	}

	if err := h.service.AddScore(ctx, req.ChatID, m.UserID, t, amount); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s: %s (%s)", m.DisplayName(), common.FormatPoints(amount), t), nil
}

// /weight_get <source> [thread_id|all]
func (h *Handler) handleWeightGet(ctx context.Context, req commands.Request) (string, error) {
	src, err := ParseActionSource(req.Args[0])
	if err != nil {
		return "", err
	}
	channel, err := scopeArg(req, 1)
	if err != nil {
		return "", err
	}
	weight, err := h.service.Resolver().Weight(ctx, req.ChatID, src, channel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⚖️ Вес %s (%s): %s", src, scopeName(channel), common.FormatScore(weight)), nil
}

// /weight_set <source> <weight> [thread_id|all]
func (h *Handler) handleWeightSet(ctx context.Context, req commands.Request) (string, error) {
	src, err := ParseActionSource(req.Args[0])
	if err != nil {
		return "", err
	}
	weight, err := common.ParseAmount(req.Args[1])
	if err != nil {
		return "", err
	}
	channel, err := scopeArg(req, 2)
	if err != nil {
		return "", err
	}
	if err := h.service.Resolver().SetWeight(ctx, req.ChatID, src, channel, weight); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Вес %s (%s) = %s", src, scopeName(channel), common.FormatScore(weight)), nil
}

// /cooldown_get <source> [thread_id|all]
func (h *Handler) handleCooldownGet(ctx context.Context, req commands.Request) (string, error) {
	src, err := ParseActionSource(req.Args[0])
	if err != nil {
		return "", err
	}
	channel, err := scopeArg(req, 1)
	if err != nil {
		return "", err
	}
	seconds, err := h.service.Resolver().Cooldown(ctx, req.ChatID, src, channel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⏱ Кулдаун %s (%s): %s", src, scopeName(channel), common.FormatSeconds(seconds)), nil
}

// /cooldown_set <source> <1h30m> [thread_id|all]
func (h *Handler) handleCooldownSet(ctx context.Context, req commands.Request) (string, error) {
	src, err := ParseActionSource(req.Args[0])
	if err != nil {
		return "", err
	}
	seconds, err := common.ParseTimeString(req.Args[1])
	if err != nil {
		return "", err
	}
	channel, err := scopeArg(req, 2)
	if err != nil {
		return "", err
	}
	if err := h.service.Resolver().SetCooldown(ctx, req.ChatID, src, channel, seconds); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Кулдаун %s (%s) = %s", src, scopeName(channel), common.FormatSeconds(seconds)), nil
}

// scopeArg: "all" — настройка на весь чат (nil), иначе номер темы,
// по умолчанию текущая тема.
func scopeArg(req commands.Request, idx int) (*int64, error) {
	if len(req.Args) > idx && strings.EqualFold(req.Args[idx], "all") {
		return nil, nil
	}
	id, err := commands.ThreadArg(req, idx)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func scopeName(channel *int64) string {
	if channel == nil {
		return "весь чат"
	}
	return "тема " + strconv.FormatInt(*channel, 10)
}
