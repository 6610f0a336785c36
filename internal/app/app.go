// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает из них бота, HTTP API и планировщик.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/score-bot/internal/api"
	"serotonyl.ru/score-bot/internal/bot"
	"serotonyl.ru/score-bot/internal/bot/commands"
	"serotonyl.ru/score-bot/internal/config"
	"serotonyl.ru/score-bot/internal/db/postgres"
	"serotonyl.ru/score-bot/internal/features/activity"
	"serotonyl.ru/score-bot/internal/features/channels"
	"serotonyl.ru/score-bot/internal/features/directory"
	"serotonyl.ru/score-bot/internal/features/members"
	"serotonyl.ru/score-bot/internal/features/questions"
	"serotonyl.ru/score-bot/internal/features/scoring"
	"serotonyl.ru/score-bot/internal/jobs"
)

var errBotStopped = errors.New("long polling завершился сам")

// memberCacheSize — сколько пользователей помним, чтобы не переписывать
// их в базу на каждое сообщение.
const memberCacheSize = 10000

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	HTTP      *http.Server
	DB        *pgxpool.Pool

	cfg *config.Config
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.Migrate(ctx, pool, postgres.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	a, err := build(ctx, cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*App, error) {
	// === 2. Telegram Bot API ===
	tg, err := telego.NewBot(cfg.TelegramBotToken, telego.WithLogger(log.WithField("component", "telego")))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := tg.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	tx := postgres.NewTransactor(pool)

	// === 3. Репозитории ===
	memberRepo := members.NewRepository(pool)
	channelRepo := channels.NewRepository(pool)
	scoreRepo := scoring.NewRepository(pool)
	questionRepo := questions.NewRepository(pool)
	directoryRepo := directory.NewRepository(pool)

	// === 4. Сервисы ===
	memberService, err := members.NewService(memberRepo, memberCacheSize)
	if err != nil {
		return nil, err
	}
	channelService := channels.NewService(channelRepo, tx)
	resolver := scoring.NewResolver(scoreRepo)
	scoreService := scoring.NewService(scoreRepo, tx, resolver, scoring.NewGate(scoreRepo, resolver))
	questionService := questions.NewService(questionRepo, tx, scoreService, memberService)
	directoryService := directory.NewService(directoryRepo, bot.NewChatTitles(tg), cfg.NameCacheSize, cfg.NameCacheTTL)

	classifier, err := activity.NewClassifier(cfg.ReactionLikeCodes, cfg.ReactionDislikeCodes)
	if err != nil {
		return nil, fmt.Errorf("REACTION_*_CODES: %w", err)
	}
	activityService := activity.NewService(scoreService, channelService, questionService, classifier,
		cfg.MessageIndexSize, cfg.PostReactionWindow)

	// === 5. Обработчики команд ===
	var specs []commands.Spec
	specs = append(specs, scoring.NewHandler(scoreService, memberService).Commands()...)
	specs = append(specs, channels.NewHandler(channelService).Commands()...)
	specs = append(specs, questions.NewHandler(questionService, channelService).Commands()...)

	// === 6. Собираем бота ===
	b, err := bot.New(tg, bot.Settings{
		MaxInflight:    cfg.BotMaxInflight,
		UpdateTimeout:  cfg.BotUpdateTimeoutSeconds,
		IsAdminID:      cfg.IsAdminID,
		IsChatAllowed:  cfg.IsChatAllowed,
		RateLimitCount: cfg.RateLimitRequests,
		RateLimitEvery: cfg.RateLimitWindow,
	}, members.NewHandler(memberService), directoryService, activityService, specs)
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки команд: %w", err)
	}

	// === 7. HTTP API ===
	var server *http.Server
	if cfg.HTTPEnabled {
		if cfg.AppEnv != "development" {
			gin.SetMode(gin.ReleaseMode)
		}
		handler, err := api.NewHTTPHandler(api.Dependencies{
			Scores:       scoreService,
			Users:        memberService,
			Names:        directoryService,
			AllowOrigins: cfg.HTTPAllowOrigins,
			Health:       pool.Ping,
		})
		if err != nil {
			return nil, err
		}
		server = api.NewServer(cfg.HTTPAddr, handler)
	}

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(cfg.AppTimezone, b.RateLimiter(), directoryService)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		HTTP:      server,
		DB:        pool,
		cfg:       cfg,
	}, nil
}

// Run запускает бота и HTTP API и блокируется до отмены ctx или падения
// одного из них. После выхода бот уже не принимает новые апдейты.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Bot.Start(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errBotStopped
		}
		return nil
	})

	if a.HTTP != nil {
		g.Go(func() error {
			log.WithField("addr", a.HTTP.Addr).Info("HTTP API запущен")
			if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
			defer cancel()
			if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("остановка HTTP API: %w", err)
			}
			log.Info("HTTP API остановлен")
			return nil
		})
	}

	return g.Wait()
}

// Close дожидается начатых апдейтов и закрывает пул соединений.
func (a *App) Close() {
	a.Bot.Wait()
	a.DB.Close()
}
