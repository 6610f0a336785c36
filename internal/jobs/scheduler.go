// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: очистку rate-limiter'а
// и сброс кеша названий чатов и тем.
package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Cleaner — то, что умеет чистить устаревшие записи.
type Cleaner interface {
	Cleanup() int
}

// CachePurger сбрасывает кеш.
type CachePurger interface {
	PurgeCache()
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	rateLimiter Cleaner
	names       CachePurger
}

// NewScheduler создаёт планировщик задач в часовом поясе timezone.
func NewScheduler(timezone string, rateLimiter Cleaner, names CachePurger) *Scheduler {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.WithError(err).WithField("tz", timezone).Warn("Не удалось загрузить часовой пояс, используем UTC")
		loc = time.UTC
	}

	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		rateLimiter: rateLimiter,
		names:       names,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 5m", s.cleanupRateLimiter); err != nil {
		return fmt.Errorf("cron rate limiter: %w", err)
	}
	if _, err := s.cron.AddFunc("@hourly", s.purgeNames); err != nil {
		return fmt.Errorf("cron names: %w", err)
	}

	s.cron.Start()
	log.Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) cleanupRateLimiter() {
	removed := s.rateLimiter.Cleanup()
	log.WithField("removed", removed).Debug("[CRON] Очистка rate limiter")
}

func (s *Scheduler) purgeNames() {
	s.names.PurgeCache()
	log.Debug("[CRON] Кеш названий сброшен")
}
