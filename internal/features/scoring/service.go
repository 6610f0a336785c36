// Package scoring — service.go содержит бизнес-логику начисления очков:
// точки входа по видам активности и ручное изменение очков.
package scoring

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/score-bot/internal/common"
)

// TotalsStore хранит накопленные суммы.
type TotalsStore interface {
	AddScore(ctx context.Context, guildID, memberID int64, t ScoreType, amount float64) error
	GetScore(ctx context.Context, guildID, memberID int64, t ScoreType) (float64, error)
	SumScore(ctx context.Context, memberID int64, t *ScoreType) (float64, error)
	ListLogs(ctx context.Context, memberID int64, limit, offset int, order LogOrder) ([]ScoreLog, error)
}

// TxRunner открывает единицу работы. Вложенный вызов присоединяется к внешней.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service — журнал очков. Создаётся один раз и передаётся по указателю.
type Service struct {
	totals   TotalsStore
	tx       TxRunner
	resolver *Resolver
	gate     *Gate
}

// NewService создаёт сервис очков.
func NewService(totals TotalsStore, tx TxRunner, resolver *Resolver, gate *Gate) *Service {
	return &Service{totals: totals, tx: tx, resolver: resolver, gate: gate}
}

// Resolver возвращает резолвер настроек (для команд веса и кулдауна).
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Award прибавляет amount к сумме участника. Без веса и кулдауна.
func (s *Service) Award(ctx context.Context, guildID, memberID int64, t ScoreType, amount float64) error {
	return s.totals.AddScore(ctx, guildID, memberID, t, amount)
}

// Post — сообщение в канале постов.
func (s *Service) Post(ctx context.Context, guildID, channelID, memberID int64) (Result, error) {
	return s.single(ctx, guildID, channelID, memberID, SourcePost)
}

// PostReaction — реакция на пост.
func (s *Service) PostReaction(ctx context.Context, guildID, channelID, memberID int64) (Result, error) {
	return s.single(ctx, guildID, channelID, memberID, SourcePostReaction)
}

// Chat — сообщение в канале чата.
func (s *Service) Chat(ctx context.Context, guildID, channelID, memberID int64) (Result, error) {
	return s.single(ctx, guildID, channelID, memberID, SourceChat)
}

// ChatReaction — реакция в канале чата.
func (s *Service) ChatReaction(ctx context.Context, guildID, channelID, memberID int64) (Result, error) {
	return s.single(ctx, guildID, channelID, memberID, SourceChatReaction)
}

// Question — очки автору закрытого вопроса.
func (s *Service) Question(ctx context.Context, guildID, channelID, memberID int64) (Result, error) {
	return s.single(ctx, guildID, channelID, memberID, SourceQuestion)
}

// Answer начисляет очки за ответ по двум независимым источникам:
// answer (плоский вес) и answer_reaction (вес × (like − dislike), может быть отрицательным).
func (s *Service) Answer(ctx context.Context, guildID, channelID, memberID int64, like, dislike int) ([]Result, error) {
	results := make([]Result, 0, 2)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		flat, err := s.gated(ctx, guildID, channelID, memberID, SourceAnswer, 1)
		if err != nil {
			return err
		}
		reactions, err := s.gated(ctx, guildID, channelID, memberID, SourceAnswerReaction, float64(like-dislike))
		if err != nil {
			return err
		}
		results = append(results, flat, reactions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) single(ctx context.Context, guildID, channelID, memberID int64, src ActionSource) (Result, error) {
	var res Result
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.gated(ctx, guildID, channelID, memberID, src, 1)
		return err
	})
	return res, err
}

// gated: вес -> кулдаун -> начисление. Вызывается внутри транзакции.
func (s *Service) gated(ctx context.Context, guildID, channelID, memberID int64, src ActionSource, multiplier float64) (Result, error) {
	weight, err := s.resolver.Weight(ctx, guildID, src, &channelID)
	if err != nil {
		return Result{}, fmt.Errorf("ошибка получения веса %s: %w", src, err)
	}
	res := Result{Source: src, Amount: weight * multiplier}

	admitted, err := s.gate.TryRegister(ctx, guildID, channelID, memberID, src, res.Amount)
	if err != nil {
		return Result{}, fmt.Errorf("ошибка проверки кулдауна %s: %w", src, err)
	}
	if !admitted {
		return res, nil
	}

	if err := s.Award(ctx, guildID, memberID, src.ScoreType(), res.Amount); err != nil {
		return Result{}, err
	}
	res.Admitted = true

	log.WithFields(log.Fields{
		"guild_id":   guildID,
		"channel_id": channelID,
		"member_id":  memberID,
		"source":     src,
		"amount":     res.Amount,
	}).Debug("Начислены очки")
	return res, nil
}

// AddScore — ручное изменение очков администратором. amount может быть отрицательным.
func (s *Service) AddScore(ctx context.Context, guildID, memberID int64, t ScoreType, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return common.ErrInvalidAmount
	}
	if err := s.Award(ctx, guildID, memberID, t, amount); err != nil {
		return err
	}
	manualAdjustments.WithLabelValues(string(t)).Inc()

	log.WithFields(log.Fields{
		"guild_id":   guildID,
		"member_id":  memberID,
		"score_type": t,
		"amount":     amount,
	}).Info("Очки изменены вручную")
	return nil
}

// GetScore возвращает сумму очков участника в гильдии.
func (s *Service) GetScore(ctx context.Context, guildID, memberID int64, t ScoreType) (float64, error) {
	return s.totals.GetScore(ctx, guildID, memberID, t)
}

// TotalScore суммирует очки пользователя по всем гильдиям. t == nil — по всем типам.
func (s *Service) TotalScore(ctx context.Context, memberID int64, t *ScoreType) (float64, error) {
	return s.totals.SumScore(ctx, memberID, t)
}

// Logs возвращает страницу журнала начислений пользователя (page с единицы).
func (s *Service) Logs(ctx context.Context, memberID int64, page, pageSize int, order LogOrder) ([]ScoreLog, error) {
	if page < 1 || pageSize < 1 {
		return nil, common.ErrInvalidArgument
	}
	return s.totals.ListLogs(ctx, memberID, pageSize, (page-1)*pageSize, order)
}
