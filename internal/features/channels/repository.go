// Package channels — repository.go выполняет операции с таблицей channel_configs.
package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/score-bot/internal/common"
	"serotonyl.ru/score-bot/internal/db/postgres"
)

// Repository работает с таблицей channel_configs.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий ролей тем.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Lock сериализует изменения ролей одной гильдии до конца транзакции.
func (r *Repository) Lock(ctx context.Context, guildID int64) error {
	return postgres.LockKey(ctx, fmt.Sprintf("channels:%d", guildID))
}

// GetByChannel возвращает роль темы или nil.
func (r *Repository) GetByChannel(ctx context.Context, guildID, channelID int64) (*Binding, error) {
	query := `
		SELECT id, guild_id, channel_id, channel_type
		FROM channel_configs
		WHERE guild_id = $1 AND channel_id = $2
	`
	return r.queryOne(ctx, query, guildID, channelID)
}

// GetByType возвращает первую тему гильдии с ролью t или nil.
// Для роли question такая тема единственная.
func (r *Repository) GetByType(ctx context.Context, guildID int64, t ChannelType) (*Binding, error) {
	query := `
		SELECT id, guild_id, channel_id, channel_type
		FROM channel_configs
		WHERE guild_id = $1 AND channel_type = $2
		ORDER BY id
		LIMIT 1
	`
	return r.queryOne(ctx, query, guildID, string(t))
}

// Insert добавляет роль темы. Нарушение уникальности — ErrChannelAlreadyBound.
func (r *Repository) Insert(ctx context.Context, b *Binding) error {
	query := `
		INSERT INTO channel_configs (guild_id, channel_id, channel_type)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, b.GuildID, b.ChannelID, string(b.Type)).Scan(&b.ID)
	if postgres.IsUniqueViolation(err) {
		return common.ErrChannelAlreadyBound
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения роли темы: %w", err)
	}
	return nil
}

// MoveChannel переносит существующую роль на другую тему.
func (r *Repository) MoveChannel(ctx context.Context, id, channelID int64) error {
	query := `UPDATE channel_configs SET channel_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, query, id, channelID)
	if postgres.IsUniqueViolation(err) {
		return common.ErrChannelAlreadyBound
	}
	if err != nil {
		return fmt.Errorf("ошибка переноса роли темы: %w", err)
	}
	return nil
}

// Delete снимает роль t с темы. Возвращает false, если такой роли не было.
func (r *Repository) Delete(ctx context.Context, guildID, channelID int64, t ChannelType) (bool, error) {
	query := `DELETE FROM channel_configs WHERE guild_id = $1 AND channel_id = $2 AND channel_type = $3`
	tag, err := postgres.Conn(ctx, r.db).Exec(ctx, query, guildID, channelID, string(t))
	if err != nil {
		return false, fmt.Errorf("ошибка удаления роли темы: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*Binding, error) {
	var b Binding
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, args...).Scan(&b.ID, &b.GuildID, &b.ChannelID, &b.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения роли темы: %w", err)
	}
	return &b, nil
}
