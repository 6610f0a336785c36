// Package members — service.go: регистрация пользователей по их сообщениям
// и поиск пользователя по ссылке из команды (@username, id или ответ).
package members

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/score-bot/internal/common"
)

// Store — хранилище участников.
type Store interface {
	Upsert(ctx context.Context, m *Member) error
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	GetByUsername(ctx context.Context, username string) (*Member, error)
	GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*Member, error)
	Exists(ctx context.Context, userID int64) (bool, error)
}

// Service управляет участниками.
type Service struct {
	repo Store
	// seen: user_id -> последняя сохранённая подпись; пропускает лишние UPSERT
	seen *lru.Cache[int64, string]
}

// NewService создаёт сервис участников. seenSize — сколько пользователей помнить в памяти.
func NewService(repo Store, seenSize int) (*Service, error) {
	seen, err := lru.New[int64, string](seenSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кэша участников: %w", err)
	}
	return &Service{repo: repo, seen: seen}, nil
}

// Observe сохраняет пользователя, если он новый или сменил имя.
func (s *Service) Observe(ctx context.Context, userID int64, username, firstName, lastName string) error {
	m := &Member{UserID: userID, Username: username, FirstName: firstName, LastName: lastName}
	sig := m.signature()
	if prev, ok := s.seen.Get(userID); ok && prev == sig {
		return nil
	}
	if err := s.repo.Upsert(ctx, m); err != nil {
		return err
	}
	s.seen.Add(userID, sig)

	log.WithFields(log.Fields{
		"user_id":  userID,
		"username": username,
	}).Debug("Участник сохранён")
	return nil
}

// Exists сообщает, видел ли бот пользователя.
func (s *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// GetByUserID возвращает участника по Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Resolve находит пользователя по ссылке из команды: "@username" или числовой id.
// Пустая ссылка — автор сообщения, на которое ответили (replyToUserID).
func (s *Service) Resolve(ctx context.Context, ref string, replyToUserID int64) (*Member, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" && replyToUserID != 0:
		return s.repo.GetByUserID(ctx, replyToUserID)
	case ref == "":
		return nil, fmt.Errorf("%w: укажите @username, id или ответьте на сообщение", common.ErrInvalidArgument)
	case strings.HasPrefix(ref, "@"):
		return s.repo.GetByUsername(ctx, strings.TrimPrefix(ref, "@"))
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q не похоже на @username или id", common.ErrInvalidArgument, ref)
	}
	return s.repo.GetByUserID(ctx, id)
}

// DisplayNames возвращает имена по id. Неизвестные подписываются числовым id.
func (s *Service) DisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	found, err := s.repo.GetByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(userIDs))
	for _, id := range userIDs {
		if m, ok := found[id]; ok {
			names[id] = m.DisplayName()
			continue
		}
		names[id] = strconv.FormatInt(id, 10)
	}
	return names, nil
}
