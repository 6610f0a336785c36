// Package members — repository.go отвечает за операции с таблицей members.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/score-bot/internal/common"
	"serotonyl.ru/score-bot/internal/db/postgres"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert добавляет пользователя или обновляет его имя и @username.
func (r *Repository) Upsert(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
	`
	_, err := postgres.Conn(ctx, r.db).Exec(ctx, query, m.UserID, m.Username, m.FirstName, m.LastName)
	if err != nil {
		return fmt.Errorf("ошибка сохранения участника: %w", err)
	}
	return nil
}

// GetByUserID: если не найден — ошибка с common.ErrUserNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	query := `
		SELECT id, user_id, username, first_name, last_name, created_at, updated_at
		FROM members
		WHERE user_id = $1
	`
	return r.queryOne(ctx, query, userID)
}

// GetByUsername ищет без учёта регистра. Если не найден — common.ErrUserNotFound.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Member, error) {
	query := `
		SELECT id, user_id, username, first_name, last_name, created_at, updated_at
		FROM members
		WHERE LOWER(username) = LOWER($1)
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return r.queryOne(ctx, query, username)
}

func (r *Repository) Exists(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM members WHERE user_id = $1)`
	var exists bool
	if err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования: %w", err)
	}
	return exists, nil
}

// GetByUserIDs возвращает найденных участников по id; отсутствующих просто нет в карте.
func (r *Repository) GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*Member, error) {
	query := `
		SELECT id, user_id, username, first_name, last_name, created_at, updated_at
		FROM members
		WHERE user_id = ANY($1)
	`
	rows, err := postgres.Conn(ctx, r.db).Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*Member, len(userIDs))
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out[m.UserID] = &m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

func (r *Repository) queryOne(ctx context.Context, query string, arg any) (*Member, error) {
	var m Member
	err := postgres.Conn(ctx, r.db).QueryRow(ctx, query, arg).Scan(
		&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", common.ErrUserNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения участника (%v): %w", arg, err)
	}
	return &m, nil
}
