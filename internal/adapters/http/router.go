package http

import (
	"context"
	"net/http"

	"github.com/dkeye/TalkBot/internal/adapters/feed"
	"github.com/dkeye/TalkBot/internal/app/orch"
	"github.com/dkeye/TalkBot/internal/config"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// SetupRouter builds the status API. It is read-only: talks are created
// and joined through the chat platform only.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, hub *feed.Hub, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":            "ok",
			"talks":             o.Registry.Len(),
			"pending_deletions": o.Reaper.PendingCount(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/talks", func(c *gin.Context) {
		guild := domain.GuildID(c.Query("guild"))
		if guild == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "guild is required"})
			return
		}
		member := domain.MemberID(c.Query("member"))
		c.JSON(http.StatusOK, gin.H{
			"guild": guild,
			"talks": o.ListTalks(c.Request.Context(), guild, member),
		})
	})
	api.GET("/ws/events", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("guild", c.Query("guild")).Msg("ws events endpoint hit")
		hub.Serve(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
