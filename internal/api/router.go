// Package api — HTTP API только для чтения: очки пользователя и история начислений.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serotonyl.ru/score-bot/internal/features/scoring"
)

var (
	errMissingScores = errors.New("не передан сервис очков")
	errMissingUsers  = errors.New("не передан сервис участников")
	errMissingNames  = errors.New("не передан сервис названий")
)

// ScoreReader читает очки и журнал начислений.
type ScoreReader interface {
	TotalScore(ctx context.Context, memberID int64, t *scoring.ScoreType) (float64, error)
	Logs(ctx context.Context, memberID int64, page, pageSize int, order scoring.LogOrder) ([]scoring.ScoreLog, error)
}

// UserChecker проверяет, знает ли бот пользователя.
type UserChecker interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// NameResolver отдаёт названия чатов и тем.
type NameResolver interface {
	GuildName(ctx context.Context, chatID int64) (string, error)
	ChannelName(ctx context.Context, chatID, threadID int64) (string, error)
}

// Dependencies — всё, что нужно HTTP API.
type Dependencies struct {
	Scores       ScoreReader
	Users        UserChecker
	Names        NameResolver
	AllowOrigins []string
	// Health проверяет готовность (например, пинг базы). nil — всегда готов.
	Health func(ctx context.Context) error
}

// NewHTTPHandler собирает роутер gin.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Scores == nil {
		return nil, errMissingScores
	}
	if deps.Users == nil {
		return nil, errMissingUsers
	}
	if deps.Names == nil {
		return nil, errMissingNames
	}

	origins := deps.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(requestID(), requestLogger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}))

	h := &httpHandler{scores: deps.Scores, users: deps.Users, names: deps.Names, health: deps.Health}

	router.GET("/healthz", h.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1/user/:user_id")
	v1.Use(h.loadUser)
	v1.GET("/score", h.handleScore)
	v1.GET("/score/logs", h.handleScoreLogs)

	return router, nil
}

// NewServer создаёт http.Server с разумными таймаутами.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
