// Package questions — repository.go выполняет операции с таблицами questions и answers.
package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/score-bot/internal/db/postgres"
)

// Repository работает с вопросами и ответами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий вопросов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Lock сериализует переходы состояния вопроса в теме до конца транзакции.
func (r *Repository) Lock(ctx context.Context, guildID, channelID int64) error {
	return postgres.LockKey(ctx, fmt.Sprintf("question:%d:%d", guildID, channelID))
}

// Latest возвращает последний вопрос темы или nil.
func (r *Repository) Latest(ctx context.Context, guildID, channelID int64) (*Question, error) {
	query := `
		SELECT id, guild_id, channel_id, member_id, opened, created_at
		FROM questions
		WHERE guild_id = $1 AND channel_id = $2
		ORDER BY id DESC
		LIMIT 1
	`
	var q Question
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, guildID, channelID).Scan(
		&q.ID, &q.GuildID, &q.ChannelID, &q.MemberID, &q.Opened, &q.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения вопроса: %w", err)
	}
	return &q, nil
}

// Create создаёт открытый вопрос.
func (r *Repository) Create(ctx context.Context, q *Question) error {
	query := `
		INSERT INTO questions (guild_id, channel_id, member_id, opened)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, opened, created_at
	`
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, q.GuildID, q.ChannelID, q.MemberID).Scan(
		&q.ID, &q.Opened, &q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания вопроса: %w", err)
	}
	return nil
}

// CreateAnswer добавляет ответ к вопросу.
func (r *Repository) CreateAnswer(ctx context.Context, a *Answer) error {
	query := `
		INSERT INTO answers (question_id, guild_id, channel_id, member_id, message_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query,
		a.QuestionID, a.GuildID, a.ChannelID, a.MemberID, a.MessageID,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения ответа: %w", err)
	}
	return nil
}

// AddReaction увеличивает счётчик лайков или дизлайков ответа.
// Возвращает false, если ответа с таким сообщением нет.
func (r *Repository) AddReaction(ctx context.Context, guildID, messageID int64, kind Reaction) (bool, error) {
	query := `UPDATE answers SET "like" = "like" + 1 WHERE guild_id = $1 AND message_id = $2`
	if kind == ReactionDislike {
		query = `UPDATE answers SET dislike = dislike + 1 WHERE guild_id = $1 AND message_id = $2`
	}
	tag, err := postgres.Conn(ctx, r.db).Exec(ctx, query, guildID, messageID)
	if err != nil {
		return false, fmt.Errorf("ошибка учёта реакции: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Answers возвращает ответы на вопрос в порядке поступления.
func (r *Repository) Answers(ctx context.Context, questionID int64) ([]Answer, error) {
	query := `
		SELECT id, question_id, guild_id, channel_id, member_id, message_id, "like", dislike
		FROM answers
		WHERE question_id = $1
		ORDER BY id
	`
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответов: %w", err)
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.GuildID, &a.ChannelID, &a.MemberID, &a.MessageID, &a.Like, &a.Dislike); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ответа: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close закрывает вопрос.
func (r *Repository) Close(ctx context.Context, questionID int64) error {
	query := `UPDATE questions SET opened = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := postgres.Conn(ctx, r.db).Exec(ctx, query, questionID); err != nil {
		return fmt.Errorf("ошибка закрытия вопроса: %w", err)
	}
	return nil
}
