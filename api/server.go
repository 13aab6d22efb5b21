// Package api is the read/acknowledge HTTP surface over the pipeline:
// dashboards read plans, signals and risk state; the operator logs
// trade entries and exits through TOTP-gated endpoints. Nothing here
// can relax a risk-governor decision.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"optionsdesk/config"
	"optionsdesk/scheduler"
)

// Server carries the HTTP surface's dependencies.
type Server struct {
	cfg    *config.Config
	engine *scheduler.Engine
	hub    *Hub
}

// NewServer wires the surface over an engine. The returned server's
// Hub is registered as the engine's update observer.
func NewServer(cfg *config.Config, engine *scheduler.Engine) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		hub:    NewHub(),
	}
	engine.OnUpdate = s.hub.Broadcast
	return s
}

// Hub exposes the websocket hub for lifecycle management.
func (s *Server) Hub() *Hub { return s.hub }

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/api/login", s.handleLogin)

	authed := r.Group("/", s.authMiddleware())
	{
		authed.GET("/api/status", s.handleStatus)
		authed.GET("/api/signals/recent", s.handleRecentSignals)
		authed.GET("/api/plans/recent", s.handleRecentPlans)
		authed.GET("/api/plans/:id", s.handleGetPlan)
		authed.GET("/api/risk/state", s.handleRiskState)
		authed.GET("/api/trades/recent", s.handleRecentTrades)

		// Human-in-the-loop trade logging: TOTP-confirmed inside the
		// handlers on top of the session token.
		authed.POST("/api/trades/entry", s.handleTradeEntry)
		authed.POST("/api/trades/exit", s.handleTradeExit)

		authed.GET("/ws/status", s.handleWebsocket)
	}

	return r
}
