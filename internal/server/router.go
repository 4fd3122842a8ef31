package server

import (
	"net/http"
	"time"

	"github.com/SpelGekko/Chat-Website/internal/auth"
	"github.com/SpelGekko/Chat-Website/internal/config"
	"github.com/SpelGekko/Chat-Website/internal/metrics"
	"github.com/SpelGekko/Chat-Website/internal/mw"
	"github.com/SpelGekko/Chat-Website/internal/session"
	"github.com/SpelGekko/Chat-Website/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRouter wires the gin middleware, REST API, and websocket endpoint.
func SetupRouter(cfg config.Config, h *Handler, hub *ws.Hub, tracker *session.Tracker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.POST("/session", h.CreateSession)

	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg))
	authed.POST("/rooms", h.CreateRoom)
	authed.POST("/rooms/:code/join", h.JoinRoom)
	authed.DELETE("/rooms/:code", h.DeleteRoom)
	authed.GET("/rooms/:code/messages", h.ListMessages)

	r.GET("/ws", ws.Serve(hub, tracker, cfg))

	return r
}
