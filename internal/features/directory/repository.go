// Package directory хранит названия чатов и тем, чтобы HTTP API мог
// показывать их вместо числовых id.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/score-bot/internal/db/postgres"
)

// Repository работает с таблицами chats и topics.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий названий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveChat сохраняет название чата.
func (r *Repository) SaveChat(ctx context.Context, chatID int64, title string) error {
	query := `
		INSERT INTO chats (chat_id, title) VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET title = EXCLUDED.title, updated_at = NOW()
	`
	if _, err := postgres.Conn(ctx, r.db).Exec(ctx, query, chatID, title); err != nil {
		return fmt.Errorf("ошибка сохранения названия чата: %w", err)
	}
	return nil
}

// SaveTopic сохраняет название темы.
func (r *Repository) SaveTopic(ctx context.Context, chatID, threadID int64, name string) error {
	query := `
		INSERT INTO topics (chat_id, thread_id, name) VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, thread_id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
	`
	if _, err := postgres.Conn(ctx, r.db).Exec(ctx, query, chatID, threadID, name); err != nil {
		return fmt.Errorf("ошибка сохранения названия темы: %w", err)
	}
	return nil
}

// ChatTitle возвращает сохранённое название чата; ok == false, если его нет.
func (r *Repository) ChatTitle(ctx context.Context, chatID int64) (string, bool, error) {
	return r.queryName(ctx, `SELECT title FROM chats WHERE chat_id = $1`, chatID)
}

// TopicName возвращает сохранённое название темы; ok == false, если его нет.
func (r *Repository) TopicName(ctx context.Context, chatID, threadID int64) (string, bool, error) {
	return r.queryName(ctx, `SELECT name FROM topics WHERE chat_id = $1 AND thread_id = $2`, chatID, threadID)
}

func (r *Repository) queryName(ctx context.Context, query string, args ...any) (string, bool, error) {
	var name string
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, args...).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения названия: %w", err)
	}
	return name, true, nil
}
