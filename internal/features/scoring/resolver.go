package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/puzpuzpuz/xsync/v3"

	"serotonyl.ru/score-bot/internal/common"
)

// ConfigStore хранит переопределения веса и кулдауна.
type ConfigStore interface {
	FindWeight(ctx context.Context, guildID int64, src ActionSource, channelID *int64) (float64, bool, error)
	FindCooldown(ctx context.Context, guildID int64, src ActionSource, channelID *int64) (int, bool, error)
	SetWeight(ctx context.Context, guildID int64, src ActionSource, channelID *int64, weight float64) error
	SetCooldown(ctx context.Context, guildID int64, src ActionSource, channelID *int64, cooldown int) error
}

// configKey — ключ кэша. scoped == false означает уровень гильдии.
type configKey struct {
	src     ActionSource
	guild   int64
	channel int64
	scoped  bool
}

func newConfigKey(src ActionSource, guildID int64, channelID *int64) configKey {
	k := configKey{src: src, guild: guildID}
	if channelID != nil {
		k.channel = *channelID
		k.scoped = true
	}
	return k
}

// cached — запись кэша. ok == false значит «на этом уровне не задано»:
// для канала поиск продолжается на уровне гильдии без обращения к базе,
// для гильдии value уже содержит значение по умолчанию.
type cached[T any] struct {
	value T
	ok    bool
}

// Resolver находит действующий вес и кулдаун источника:
// канал -> гильдия -> значение по умолчанию. Найденное кэшируется
// на всё время жизни процесса, запись через Resolver обновляет кэш.
type Resolver struct {
	store     ConfigStore
	weights   *xsync.MapOf[configKey, cached[float64]]
	cooldowns *xsync.MapOf[configKey, cached[int]]
}

// NewResolver создаёт Resolver с пустым кэшем.
func NewResolver(store ConfigStore) *Resolver {
	return &Resolver{
		store:     store,
		weights:   xsync.NewMapOf[configKey, cached[float64]](),
		cooldowns: xsync.NewMapOf[configKey, cached[int]](),
	}
}

// Weight возвращает действующий вес источника.
func (r *Resolver) Weight(ctx context.Context, guildID int64, src ActionSource, channelID *int64) (float64, error) {
	return resolve(ctx, r.weights, r.store.FindWeight, guildID, src, channelID, DefaultWeight)
}

// Cooldown возвращает действующий кулдаун источника в секундах.
func (r *Resolver) Cooldown(ctx context.Context, guildID int64, src ActionSource, channelID *int64) (int, error) {
	return resolve(ctx, r.cooldowns, r.store.FindCooldown, guildID, src, channelID, DefaultCooldown)
}

// SetWeight сохраняет вес и сразу обновляет кэш по тому же ключу.
func (r *Resolver) SetWeight(ctx context.Context, guildID int64, src ActionSource, channelID *int64, weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: вес должен быть конечным числом", common.ErrInvalidAmount)
	}
	if err := r.store.SetWeight(ctx, guildID, src, channelID, weight); err != nil {
		return err
	}
	r.weights.Store(newConfigKey(src, guildID, channelID), cached[float64]{value: weight, ok: true})
	return nil
}

// SetCooldown сохраняет кулдаун и сразу обновляет кэш по тому же ключу.
func (r *Resolver) SetCooldown(ctx context.Context, guildID int64, src ActionSource, channelID *int64, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: кулдаун не может быть отрицательным", common.ErrInvalidTimeString)
	}
	if err := r.store.SetCooldown(ctx, guildID, src, channelID, seconds); err != nil {
		return err
	}
	r.cooldowns.Store(newConfigKey(src, guildID, channelID), cached[int]{value: seconds, ok: true})
	return nil
}

type findFunc[T any] func(ctx context.Context, guildID int64, src ActionSource, channelID *int64) (T, bool, error)

func resolve[T any](
	ctx context.Context,
	cache *xsync.MapOf[configKey, cached[T]],
	find findFunc[T],
	guildID int64,
	src ActionSource,
	channelID *int64,
	def T,
) (T, error) {
	if channelID != nil {
		key := newConfigKey(src, guildID, channelID)
		entry, hit := cache.Load(key)
		if !hit {
			v, found, err := find(ctx, guildID, src, channelID)
			if err != nil {
				return def, err
			}
			// LoadOrStore не затирает значение, записанное параллельным Set
			entry, _ = cache.LoadOrStore(key, cached[T]{value: v, ok: found})
		}
		if entry.ok {
			return entry.value, nil
		}
	}

	key := newConfigKey(src, guildID, nil)
	if entry, hit := cache.Load(key); hit {
		return entry.value, nil
	}
	v, found, err := find(ctx, guildID, src, nil)
	if err != nil {
		return def, err
	}
	if !found {
		v = def
	}
	entry, _ := cache.LoadOrStore(key, cached[T]{value: v, ok: found})
	return entry.value, nil
}
