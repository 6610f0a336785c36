// Package questions — service.go: переходы состояния вопроса и подсчёт итогов.
package questions

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/score-bot/internal/common"
	"serotonyl.ru/score-bot/internal/features/scoring"
)

// Store — хранилище вопросов и ответов.
type Store interface {
	Lock(ctx context.Context, guildID, channelID int64) error
	Latest(ctx context.Context, guildID, channelID int64) (*Question, error)
	Create(ctx context.Context, q *Question) error
	CreateAnswer(ctx context.Context, a *Answer) error
	AddReaction(ctx context.Context, guildID, messageID int64, kind Reaction) (bool, error)
	Answers(ctx context.Context, questionID int64) ([]Answer, error)
	Close(ctx context.Context, questionID int64) error
}

// Scorer начисляет очки за вопрос и ответы.
type Scorer interface {
	Question(ctx context.Context, guildID, channelID, memberID int64) (scoring.Result, error)
	Answer(ctx context.Context, guildID, channelID, memberID int64, like, dislike int) ([]scoring.Result, error)
}

// NameResolver подписывает участников в итогах.
type NameResolver interface {
	DisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// TxRunner открывает единицу работы.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service управляет вопросами.
type Service struct {
	repo   Store
	tx     TxRunner
	scorer Scorer
	names  NameResolver
}

// NewService создаёт сервис вопросов.
func NewService(repo Store, tx TxRunner, scorer Scorer, names NameResolver) *Service {
	return &Service{repo: repo, tx: tx, scorer: scorer, names: names}
}

// Ask открывает новый вопрос. Если последний вопрос темы ещё открыт — ErrQuestionStillOpen.
func (s *Service) Ask(ctx context.Context, guildID, channelID, memberID int64) (*Question, error) {
	q := &Question{GuildID: guildID, ChannelID: channelID, MemberID: memberID}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, guildID, channelID); err != nil {
			return err
		}
		last, err := s.repo.Latest(ctx, guildID, channelID)
		if err != nil {
			return err
		}
		if last != nil && last.Opened {
			return common.ErrQuestionStillOpen
		}
		return s.repo.Create(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"guild_id":    guildID,
		"channel_id":  channelID,
		"question_id": q.ID,
		"member_id":   memberID,
	}).Info("Задан вопрос")
	return q, nil
}

// Answer добавляет ответ к открытому вопросу темы и возвращает вопрос.
func (s *Service) Answer(ctx context.Context, guildID, channelID, memberID, messageID int64) (*Question, error) {
	var q *Question
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, guildID, channelID); err != nil {
			return err
		}
		var err error
		q, err = s.openQuestion(ctx, guildID, channelID)
		if err != nil {
			return err
		}
		return s.repo.CreateAnswer(ctx, &Answer{
			QuestionID: q.ID,
			GuildID:    guildID,
			ChannelID:  channelID,
			MemberID:   memberID,
			MessageID:  messageID,
		})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// React учитывает реакцию на сообщение. Если это не ответ на вопрос — ничего не делает
// и возвращает false. Реакции учитываются и после закрытия вопроса, но на очки уже не влияют.
func (s *Service) React(ctx context.Context, guildID, messageID int64, kind Reaction) (bool, error) {
	if kind != ReactionLike && kind != ReactionDislike {
		return false, nil
	}
	found, err := s.repo.AddReaction(ctx, guildID, messageID, kind)
	if err != nil {
		return false, err
	}
	if found {
		log.WithFields(log.Fields{
			"guild_id":   guildID,
			"message_id": messageID,
			"kind":       kind,
		}).Debug("Реакция на ответ учтена")
	}
	return found, nil
}

// Close закрывает открытый вопрос темы: начисляет очки автору вопроса и всем
// ответившим (параллельно, в одной транзакции) и возвращает итоги.
func (s *Service) Close(ctx context.Context, guildID, channelID int64) (*Summary, error) {
	var summary *Summary
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, guildID, channelID); err != nil {
			return err
		}
		q, err := s.openQuestion(ctx, guildID, channelID)
		if err != nil {
			return err
		}
		answers, err := s.repo.Answers(ctx, q.ID)
		if err != nil {
			return err
		}
		byMember := groupByMember(answers)
		rankAnswers(answers)
		if summary, err = s.summarize(ctx, q, answers); err != nil {
			return err
		}

		if _, err := s.scorer.Question(ctx, guildID, channelID, q.MemberID); err != nil {
			return err
		}

		// Участники параллельно, ответы одного участника по порядку:
		// при кулдауне засчитывается самый ранний ответ.
		g, gctx := errgroup.WithContext(ctx)
		for _, own := range byMember {
			g.Go(func() error {
				for _, a := range own {
					if _, err := s.scorer.Answer(gctx, guildID, channelID, a.MemberID, a.Like, a.Dislike); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		return s.repo.Close(ctx, q.ID)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"guild_id":    guildID,
		"channel_id":  channelID,
		"question_id": summary.QuestionID,
		"answers":     summary.AnswerCount,
	}).Info("Вопрос закрыт")
	return summary, nil
}

func (s *Service) openQuestion(ctx context.Context, guildID, channelID int64) (*Question, error) {
	q, err := s.repo.Latest(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, common.ErrNoQuestion
	}
	if !q.Opened {
		return nil, common.ErrQuestionAlreadyClosed
	}
	return q, nil
}

// groupByMember раскладывает ответы по авторам, сохраняя порядок поступления.
func groupByMember(answers []Answer) [][]Answer {
	index := make(map[int64]int)
	var groups [][]Answer
	for _, a := range answers {
		i, ok := index[a.MemberID]
		if !ok {
			i = len(groups)
			index[a.MemberID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], a)
	}
	return groups
}

// rankAnswers сортирует по убыванию лайков, равные остаются в порядке поступления.
func rankAnswers(answers []Answer) {
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].Like > answers[j].Like
	})
}

func (s *Service) summarize(ctx context.Context, q *Question, answers []Answer) (*Summary, error) {
	ids := make([]int64, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.MemberID)
	}
	names, err := s.names.DisplayNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		QuestionID:  q.ID,
		AskerID:     q.MemberID,
		AnswerCount: len(answers),
		Ranking:     make([]RankedAnswer, 0, len(answers)),
	}
	for _, a := range answers {
		summary.Ranking = append(summary.Ranking, RankedAnswer{
			MemberID: a.MemberID,
			Name:     names[a.MemberID],
			Like:     a.Like,
			Dislike:  a.Dislike,
		})
	}
	return summary, nil
}
