// Package postgres — tx.go реализует единицу работы (unit of work) поверх pgx.
//
// Транзакция живёт в context.Context одного внешнего события: владелец границы
// вызывает Transactor.InTx, а репозитории берут соединение через Conn(ctx, pool).
// Если транзакции в контексте нет — запрос уходит напрямую в пул.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoTx — операция требует открытой транзакции.
var ErrNoTx = errors.New("операция требует транзакции")

// Querier — общее подмножество *pgxpool.Pool и pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Transactor открывает транзакции на общем пуле.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor создаёт Transactor.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// InTx выполняет fn в одной транзакции. Любая ошибка из fn откатывает транзакцию.
// Вложенный вызов присоединяется к уже открытой транзакции контекста.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*lockedTx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// Откат должен дойти до базы даже при отменённом контексте
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(context.WithValue(ctx, txKey{}, &lockedTx{tx: tx})); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Conn возвращает транзакцию из контекста или пул.
func Conn(ctx context.Context, pool Querier) Querier {
	if tx, ok := ctx.Value(txKey{}).(*lockedTx); ok {
		return tx
	}
	return pool
}

// InTransaction сообщает, открыта ли транзакция в контексте.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*lockedTx)
	return ok
}

// LockKey берёт транзакционную advisory-блокировку по строковому ключу.
// Блокировка держится до конца транзакции; повторный захват в той же транзакции не блокирует.
func LockKey(ctx context.Context, key string) error {
	tx, ok := ctx.Value(txKey{}).(*lockedTx)
	if !ok {
		return ErrNoTx
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
		return fmt.Errorf("ошибка блокировки %q: %w", key, err)
	}
	return nil
}

// lockedTx сериализует запросы к одной транзакции: соединение pgx не допускает
// параллельных запросов, а горутины одной единицы работы (errgroup) его делят.
type lockedTx struct {
	mu sync.Mutex
	tx pgx.Tx
}

func (t *lockedTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Exec(ctx, sql, args...)
}

// Query держит блокировку, пока вызывающий не закроет rows.
func (t *lockedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.mu.Lock()
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		if rows != nil {
			rows.Close()
		}
		t.mu.Unlock()
		return nil, err
	}
	return &lockedRows{Rows: rows, unlock: t.mu.Unlock}, nil
}

// QueryRow держит блокировку до Scan.
func (t *lockedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	t.mu.Lock()
	rows, err := t.tx.Query(ctx, sql, args...)
	return &lockedRow{rows: rows, err: err, unlock: t.mu.Unlock}
}

type lockedRows struct {
	pgx.Rows
	once   sync.Once
	unlock func()
}

func (r *lockedRows) Close() {
	r.Rows.Close()
	r.once.Do(r.unlock)
}

type lockedRow struct {
	rows   pgx.Rows
	err    error
	unlock func()
}

func (r *lockedRow) Scan(dest ...any) error {
	defer r.unlock()
	if r.rows != nil {
		defer r.rows.Close()
	}
	if r.err != nil {
		return r.err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	if err := r.rows.Scan(dest...); err != nil {
		return err
	}
	r.rows.Close()
	return r.rows.Err()
}
