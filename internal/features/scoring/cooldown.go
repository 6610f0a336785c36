package scoring

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// LogStore хранит журнал начислений.
type LogStore interface {
	LockCooldown(ctx context.Context, guildID, channelID, memberID int64, src ActionSource) error
	LastLog(ctx context.Context, guildID, channelID, memberID int64, src ActionSource) (*ScoreLog, error)
	InsertLog(ctx context.Context, l *ScoreLog) error
}

// Gate решает, засчитывать ли событие с учётом кулдауна кортежа
// (гильдия, канал, участник, источник). Вызывать только внутри транзакции:
// блокировка кортежа держится до её конца.
//
// Advisory-блокировку транзакция может взять повторно, поэтому горутины одной
// транзакции (начисления при закрытии вопроса) дополнительно сериализуются
// мьютексом кортежа внутри процесса.
type Gate struct {
	store    LogStore
	resolver *Resolver
	now      func() time.Time
	locks    *xsync.MapOf[gateKey, *keyLock]
}

type gateKey struct {
	guild, channel, member int64
	src                    ActionSource
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewGate создаёт Gate на системных часах.
func NewGate(store LogStore, resolver *Resolver) *Gate {
	return &Gate{
		store:    store,
		resolver: resolver,
		now:      time.Now,
		locks:    xsync.NewMapOf[gateKey, *keyLock](),
	}
}

// WithClock подменяет часы (для тестов).
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// TryRegister пишет запись в журнал и возвращает true, если с прошлой записи
// кортежа прошло не меньше кулдауна. Иначе ничего не пишет и возвращает false.
func (g *Gate) TryRegister(ctx context.Context, guildID, channelID, memberID int64, src ActionSource, amount float64) (bool, error) {
	// Сначала блокировка в базе, потом мьютекс: горутина с мьютексом
	// не должна ждать блокировку, которую держит чужая транзакция.
	if err := g.store.LockCooldown(ctx, guildID, channelID, memberID, src); err != nil {
		return false, err
	}
	unlock := g.lock(gateKey{guild: guildID, channel: channelID, member: memberID, src: src})
	defer unlock()

	cooldown, err := g.resolver.Cooldown(ctx, guildID, src, &channelID)
	if err != nil {
		return false, err
	}

	last, err := g.store.LastLog(ctx, guildID, channelID, memberID, src)
	if err != nil {
		return false, err
	}

	now := g.now()
	if last != nil && now.Before(last.CreatedAt.Add(time.Duration(cooldown)*time.Second)) {
		scoringEvents.WithLabelValues(string(src), "cooldown").Inc()
		return false, nil
	}

	if err := g.store.InsertLog(ctx, &ScoreLog{
		GuildID:   guildID,
		ChannelID: channelID,
		MemberID:  memberID,
		Source:    src,
		Score:     amount,
		CreatedAt: now,
	}); err != nil {
		return false, err
	}
	scoringEvents.WithLabelValues(string(src), "admitted").Inc()
	return true, nil
}

// lock захватывает мьютекс кортежа. Запись удаляется из карты, когда
// её больше никто не держит и не ждёт.
func (g *Gate) lock(key gateKey) func() {
	l, _ := g.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			old = &keyLock{}
		}
		old.refs++
		return old, false
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
			old.refs--
			return old, old.refs == 0
		})
	}
}
