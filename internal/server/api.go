// Package server provides the TalonPulse Gin-based REST API.
//
//	Public:          POST /api/login, POST /api/logout, GET /healthz
//	Protected (JWT): GET /api/metrics (latest sample), GET /api/history
//	Operator:        GET /internal/metrics (Prometheus exposition)
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API serves the two read shapes consumed by the dashboard.
type API struct {
	query *QueryService
	auth  *Auth
	log   *slog.Logger
}

func NewAPI(query *QueryService, auth *Auth, log *slog.Logger) *API {
	return &API{query: query, auth: auth, log: log.With("component", "api")}
}

// RegisterRoutes wires up the API on the given engine. gatherer may be nil
// to leave out the Prometheus endpoint.
func (a *API) RegisterRoutes(r *gin.Engine, gatherer prometheus.Gatherer) {
	api := r.Group("/api")

	// ── Public endpoints ──────────────────────────────────────────────────────
	api.POST("/login", a.handleLogin)
	api.POST("/logout", a.handleLogout)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	// ── JWT-protected endpoints ───────────────────────────────────────────────
	auth := api.Group("/", a.auth.Middleware())
	{
		auth.GET("/metrics", a.handleLatest)
		auth.GET("/history", a.handleHistory)
	}

	if gatherer != nil {
		r.GET("/internal/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// handleLogin accepts username + password and returns a signed JWT.
//
//	POST /api/login
//	Body: { "username": "admin", "password": "admin123" }
func (a *API) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	token, err := a.auth.Login(body.Username, body.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		a.log.Error("issuing token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(a.auth.ttl.Seconds()),
		"type":       "Bearer",
	})
}

// handleLogout acknowledges a logout. Tokens are stateless; the client drops it.
func (a *API) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleLatest returns the most recent sample, or {} before the first tick.
//
//	GET /api/metrics
func (a *API) handleLatest(c *gin.Context) {
	res, err := a.query.Latest(c.Request.Context())
	if err != nil {
		a.log.Error("reading latest sample", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleHistory returns every stored sample oldest first, or [].
//
//	GET /api/history
func (a *API) handleHistory(c *gin.Context) {
	rows, err := a.query.History(c.Request.Context())
	if err != nil {
		a.log.Error("reading history", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}
