package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/score-bot/internal/features/scoring"
)

const (
	userIDKey       = "user_id"
	defaultPage     = 1
	defaultPageSize = 30
	minPageSize     = 10
	maxPageSize     = 100
)

type httpHandler struct {
	scores ScoreReader
	users  UserChecker
	names  NameResolver
	health func(ctx context.Context) error
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

type scoreLogResponse struct {
	Guild   string               `json:"guild"`
	Channel string               `json:"channel"`
	Source  scoring.ActionSource `json:"source"`
	Score   float64              `json:"score"`
}

func unprocessable(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": detail})
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
}

// loadUser проверяет :user_id и существование пользователя.
func (h *httpHandler) loadUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		unprocessable(c, "user_id must be an integer")
		return
	}
	exists, err := h.users.Exists(c.Request.Context(), userID)
	if err != nil {
		internalError(c, err)
		return
	}
	if !exists {
		unprocessable(c, "User not found")
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

// GET /v1/user/:user_id/score?type=post|question|chat
func (h *httpHandler) handleScore(c *gin.Context) {
	var typ *scoring.ScoreType
	if raw, ok := c.GetQuery("type"); ok {
		t, err := scoring.ParseScoreType(raw)
		if err != nil {
			unprocessable(c, "type must be one of post, question, chat")
			return
		}
		typ = &t
	}

	score, err := h.scores.TotalScore(c.Request.Context(), c.GetInt64(userIDKey), typ)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, scoreResponse{Score: score})
}

// GET /v1/user/:user_id/score/logs?page=1&page_size=30&order=asc
func (h *httpHandler) handleScoreLogs(c *gin.Context) {
	page, ok := intQuery(c, "page", defaultPage)
	if !ok || page < 1 {
		unprocessable(c, "page must be an integer >= 1")
		return
	}
	pageSize, ok := intQuery(c, "page_size", defaultPageSize)
	if !ok || pageSize < minPageSize || pageSize > maxPageSize {
		unprocessable(c, "page_size must be an integer between 10 and 100")
		return
	}
	order := scoring.LogOrder(c.DefaultQuery("order", string(scoring.OrderAsc)))
	if order != scoring.OrderAsc && order != scoring.OrderDesc {
		unprocessable(c, "order must be asc or desc")
		return
	}

	ctx := c.Request.Context()
	logs, err := h.scores.Logs(ctx, c.GetInt64(userIDKey), page, pageSize, order)
	if err != nil {
		internalError(c, err)
		return
	}

	guilds, channels, err := h.resolveNames(ctx, logs)
	if err != nil {
		internalError(c, err)
		return
	}

	out := make([]scoreLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, scoreLogResponse{
			Guild:   guilds[l.GuildID],
			Channel: channels[channelRef{l.GuildID, l.ChannelID}],
			Source:  l.Source,
			Score:   l.Score,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type channelRef struct {
	guild, channel int64
}

// resolveNames запрашивает названия параллельно, по одному запросу на каждый
// уникальный чат и тему. Ошибка любого запроса проваливает весь ответ.
func (h *httpHandler) resolveNames(ctx context.Context, logs []scoring.ScoreLog) (map[int64]string, map[channelRef]string, error) {
	var (
		mu       sync.Mutex
		guilds   = make(map[int64]string)
		channels = make(map[channelRef]string)
	)
	g, gctx := errgroup.WithContext(ctx)

	seenGuild := make(map[int64]bool)
	seenChannel := make(map[channelRef]bool)
	for _, l := range logs {
		if !seenGuild[l.GuildID] {
			seenGuild[l.GuildID] = true
			guildID := l.GuildID
			g.Go(func() error {
				name, err := h.names.GuildName(gctx, guildID)
				if err != nil {
					return err
				}
				mu.Lock()
				guilds[guildID] = name
				mu.Unlock()
				return nil
			})
		}
		ref := channelRef{l.GuildID, l.ChannelID}
		if !seenChannel[ref] {
			seenChannel[ref] = true
			g.Go(func() error {
				name, err := h.names.ChannelName(gctx, ref.guild, ref.channel)
				if err != nil {
					return err
				}
				mu.Lock()
				channels[ref] = name
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return guilds, channels, nil
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
