// Package channels — service.go: назначение и снятие ролей тем.
// Роль темы читается на каждом сообщении, поэтому держится в кэше процесса;
// изменения через Service сразу записываются и в кэш.
package channels

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/score-bot/internal/common"
)

// Store — хранилище ролей тем.
type Store interface {
	Lock(ctx context.Context, guildID int64) error
	GetByChannel(ctx context.Context, guildID, channelID int64) (*Binding, error)
	GetByType(ctx context.Context, guildID int64, t ChannelType) (*Binding, error)
	Insert(ctx context.Context, b *Binding) error
	MoveChannel(ctx context.Context, id, channelID int64) error
	Delete(ctx context.Context, guildID, channelID int64, t ChannelType) (bool, error)
}

// TxRunner открывает единицу работы.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type channelKey struct {
	guild, channel int64
}

// Service — реестр ролей тем.
type Service struct {
	repo  Store
	tx    TxRunner
	cache *xsync.MapOf[channelKey, ChannelType] // "" — роли нет
}

// NewService создаёт реестр.
func NewService(repo Store, tx TxRunner) *Service {
	return &Service{repo: repo, tx: tx, cache: xsync.NewMapOf[channelKey, ChannelType]()}
}

// Bind назначает теме роль. Если у темы уже есть любая роль — ErrChannelAlreadyBound.
// Тема вопросов в гильдии одна: при назначении новой старая привязка переносится.
func (s *Service) Bind(ctx context.Context, guildID, channelID int64, t ChannelType) error {
	var movedFrom *int64
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, guildID); err != nil {
			return err
		}
		existing, err := s.repo.GetByChannel(ctx, guildID, channelID)
		if err != nil {
			return err
		}
		if existing != nil {
			return common.ErrChannelAlreadyBound
		}

		if t == TypeQuestion {
			current, err := s.repo.GetByType(ctx, guildID, TypeQuestion)
			if err != nil {
				return err
			}
			if current != nil {
				from := current.ChannelID
				movedFrom = &from
				return s.repo.MoveChannel(ctx, current.ID, channelID)
			}
		}
		return s.repo.Insert(ctx, &Binding{GuildID: guildID, ChannelID: channelID, Type: t})
	})
	if err != nil {
		return err
	}

	if movedFrom != nil {
		s.cache.Store(channelKey{guildID, *movedFrom}, "")
	}
	s.cache.Store(channelKey{guildID, channelID}, t)

	log.WithFields(log.Fields{
		"guild_id":   guildID,
		"channel_id": channelID,
		"type":       t,
		"moved_from": movedFrom,
	}).Info("Роль темы назначена")
	return nil
}

// Unbind снимает роль t с темы. Если такой роли нет — ErrChannelTypeNotFound.
func (s *Service) Unbind(ctx context.Context, guildID, channelID int64, t ChannelType) error {
	deleted, err := s.repo.Delete(ctx, guildID, channelID, t)
	if err != nil {
		return err
	}
	if !deleted {
		return common.ErrChannelTypeNotFound
	}
	s.cache.Store(channelKey{guildID, channelID}, "")

	log.WithFields(log.Fields{
		"guild_id":   guildID,
		"channel_id": channelID,
		"type":       t,
	}).Info("Роль темы снята")
	return nil
}

// Query возвращает роль темы; ok == false, если роли нет.
func (s *Service) Query(ctx context.Context, guildID, channelID int64) (ChannelType, bool, error) {
	key := channelKey{guildID, channelID}
	if t, hit := s.cache.Load(key); hit {
		return t, t != "", nil
	}

	b, err := s.repo.GetByChannel(ctx, guildID, channelID)
	if err != nil {
		return "", false, err
	}
	var t ChannelType
	if b != nil {
		t = b.Type
	}
	t, _ = s.cache.LoadOrStore(key, t)
	return t, t != "", nil
}

// HasRole сообщает, что у темы роль t.
func (s *Service) HasRole(ctx context.Context, guildID, channelID int64, t ChannelType) (bool, error) {
	got, ok, err := s.Query(ctx, guildID, channelID)
	if err != nil {
		return false, err
	}
	return ok && got == t, nil
}

// IsQuestionChannel сообщает, что тема — тема вопросов.
func (s *Service) IsQuestionChannel(ctx context.Context, guildID, channelID int64) (bool, error) {
	return s.HasRole(ctx, guildID, channelID, TypeQuestion)
}
