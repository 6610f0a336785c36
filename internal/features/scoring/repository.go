// Package scoring — repository.go выполняет операции с таблицами
// score_configs, score_logs и user_scores.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/score-bot/internal/db/postgres"
)

// Repository работает с таблицами очков. Внутри единицы работы
// запросы идут через транзакцию из контекста.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий очков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// FindWeight возвращает вес источника на уровне канала (channelID != nil)
// или гильдии. found == false, если строки нет или вес на этом уровне не задан.
func (r *Repository) FindWeight(ctx context.Context, guildID int64, src ActionSource, channelID *int64) (float64, bool, error) {
	var weight *float64
	if err := r.findConfigColumn(ctx, "weight", guildID, src, channelID, &weight); err != nil {
		return 0, false, err
	}
	if weight == nil {
		return 0, false, nil
	}
	return *weight, true, nil
}

// FindCooldown — то же для кулдауна (секунды).
func (r *Repository) FindCooldown(ctx context.Context, guildID int64, src ActionSource, channelID *int64) (int, bool, error) {
	var cooldown *int
	if err := r.findConfigColumn(ctx, "cooldown", guildID, src, channelID, &cooldown); err != nil {
		return 0, false, err
	}
	if cooldown == nil {
		return 0, false, nil
	}
	return *cooldown, true, nil
}

// column — только "weight" или "cooldown".
func (r *Repository) findConfigColumn(ctx context.Context, column string, guildID int64, src ActionSource, channelID *int64, dest any) error {
	query := fmt.Sprintf(`
		SELECT %s FROM score_configs
		WHERE guild_id = $1 AND score_src = $2 AND channel_id IS NOT DISTINCT FROM $3::BIGINT
	`, column)
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, guildID, string(src), channelID).Scan(dest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка чтения %s: %w", column, err)
	}
	return nil
}

// SetWeight создаёт или обновляет вес на уровне канала или гильдии.
func (r *Repository) SetWeight(ctx context.Context, guildID int64, src ActionSource, channelID *int64, weight float64) error {
	return r.upsertConfigColumn(ctx, "weight", guildID, src, channelID, weight)
}

// SetCooldown создаёт или обновляет кулдаун на уровне канала или гильдии.
func (r *Repository) SetCooldown(ctx context.Context, guildID int64, src ActionSource, channelID *int64, cooldown int) error {
	return r.upsertConfigColumn(ctx, "cooldown", guildID, src, channelID, cooldown)
}

func (r *Repository) upsertConfigColumn(ctx context.Context, column string, guildID int64, src ActionSource, channelID *int64, value any) error {
	// Для канала и для гильдии разные частичные уникальные индексы
	conflict := "(guild_id, score_src, channel_id) WHERE channel_id IS NOT NULL"
	if channelID == nil {
		conflict = "(guild_id, score_src) WHERE channel_id IS NULL"
	}
	query := fmt.Sprintf(`
		INSERT INTO score_configs (guild_id, score_src, channel_id, %[1]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT %[2]s
		DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = NOW()
	`, column, conflict)
	if _, err := postgres.Conn(ctx, r.db).Exec(ctx, query, guildID, string(src), channelID, value); err != nil {
		return fmt.Errorf("ошибка сохранения %s: %w", column, err)
	}
	return nil
}

// LockCooldown сериализует проверки кулдауна одного кортежа
// (гильдия, канал, участник, источник) до конца транзакции.
func (r *Repository) LockCooldown(ctx context.Context, guildID, channelID, memberID int64, src ActionSource) error {
	return postgres.LockKey(ctx, fmt.Sprintf("cooldown:%d:%d:%d:%s", guildID, channelID, memberID, src))
}

// LastLog возвращает последнюю запись кортежа или nil.
func (r *Repository) LastLog(ctx context.Context, guildID, channelID, memberID int64, src ActionSource) (*ScoreLog, error) {
	query := `
		SELECT id, guild_id, channel_id, member_id, score_src, score, created_at
		FROM score_logs
		WHERE guild_id = $1 AND channel_id = $2 AND member_id = $3 AND score_src = $4
		ORDER BY id DESC
		LIMIT 1
	`
	var l ScoreLog
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, guildID, channelID, memberID, string(src)).Scan(
		&l.ID, &l.GuildID, &l.ChannelID, &l.MemberID, &l.Source, &l.Score, &l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	return &l, nil
}

// InsertLog дописывает запись в журнал и заполняет её ID.
func (r *Repository) InsertLog(ctx context.Context, l *ScoreLog) error {
	query := `
		INSERT INTO score_logs (guild_id, channel_id, member_id, score_src, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query,
		l.GuildID, l.ChannelID, l.MemberID, string(l.Source), l.Score, l.CreatedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}

// AddScore атомарно прибавляет amount к сумме, создавая строку при первом начислении.
func (r *Repository) AddScore(ctx context.Context, guildID, memberID int64, t ScoreType, amount float64) error {
	query := `
		INSERT INTO user_scores (guild_id, member_id, score_type, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, member_id, score_type)
		DO UPDATE SET score = user_scores.score + EXCLUDED.score, updated_at = NOW()
	`
	if _, err := postgres.Conn(ctx, r.db).Exec(ctx, query, guildID, memberID, string(t), amount); err != nil {
		return fmt.Errorf("ошибка начисления очков: %w", err)
	}
	return nil
}

// GetScore возвращает сумму очков; 0, если строки нет.
func (r *Repository) GetScore(ctx context.Context, guildID, memberID int64, t ScoreType) (float64, error) {
	query := `SELECT score FROM user_scores WHERE guild_id = $1 AND member_id = $2 AND score_type = $3`
	var score float64
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, guildID, memberID, string(t)).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения очков: %w", err)
	}
	return score, nil
}

// SumScore суммирует очки пользователя по всем гильдиям.
// t == nil — по всем типам.
func (r *Repository) SumScore(ctx context.Context, memberID int64, t *ScoreType) (float64, error) {
	query := `
		SELECT COALESCE(SUM(score), 0) FROM user_scores
		WHERE member_id = $1 AND ($2::TEXT IS NULL OR score_type = $2::TEXT)
	`
	var typ *string
	if t != nil {
		s := string(*t)
		typ = &s
	}
	var total float64
	if err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, memberID, typ).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта очков: %w", err)
	}
	return total, nil
}

// ListLogs возвращает страницу журнала пользователя.
func (r *Repository) ListLogs(ctx context.Context, memberID int64, limit, offset int, order LogOrder) ([]ScoreLog, error) {
	direction := "ASC"
	if order == OrderDesc {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT id, guild_id, channel_id, member_id, score_src, score, created_at
		FROM score_logs
		WHERE member_id = $1
		ORDER BY id %s
		LIMIT $2 OFFSET $3
	`, direction)

	rows, err := postgres.Conn(ctx, r.db).Query(ctx, query, memberID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	logs := make([]ScoreLog, 0, limit)
	for rows.Next() {
		var l ScoreLog
		if err := rows.Scan(&l.ID, &l.GuildID, &l.ChannelID, &l.MemberID, &l.Source, &l.Score, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
