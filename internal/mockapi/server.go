// Package mockapi is a local stand-in for the entry-logging backend. It serves
// the same REST contract from an in-memory store, including rate limiting and
// the different response envelopes the console has to tolerate.
package mockapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tiliavir/entrylog/internal/metrics"
)

// Envelope shapes the list endpoints can answer with.
const (
	EnvelopeData    = "data"
	EnvelopeEntries = "entries"
	EnvelopeBare    = "bare"
)

// Config tunes the fake backend.
type Config struct {
	MaxLimit        int
	RateLimitPerMin int
	SigningKey      string
	Envelope        string
	AdminUser       string
	AdminPassword   string
	// RequireAuth rejects API calls without a valid bearer token.
	RequireAuth bool
	// LegacyManualOnly answers POST /entries with 404 so clients use /entries/manual.
	LegacyManualOnly bool
	AccessTTL        time.Duration
	Location         *time.Location
	Now              func() time.Time
	Logger           *slog.Logger
}

func (c *Config) setDefaults() {
	if c.MaxLimit <= 0 {
		c.MaxLimit = 200
	}
	if c.RateLimitPerMin <= 0 {
		c.RateLimitPerMin = 120
	}
	if c.Envelope == "" {
		c.Envelope = EnvelopeData
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = time.Hour
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the fake backend.
type Server struct {
	cfg     Config
	store   *Store
	broker  *broker
	metrics *metrics.Server
	engine  *gin.Engine
}

// New builds the router for store.
func New(cfg Config, store *Store) *Server {
	cfg.setDefaults()
	s := &Server{
		cfg:     cfg,
		store:   store,
		broker:  newBroker(),
		metrics: metrics.NewServer(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.observe())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": s.store.Len()})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	limiter := newTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, cfg.Now)
	api := r.Group("/api", limiter.middleware(s.metrics.RateLimited.Inc))
	api.POST("/auth/login", s.login)

	protected := api.Group("")
	if cfg.RequireAuth {
		protected.Use(adminAuth(cfg.SigningKey))
	}
	protected.GET("/entries", s.listEntries)
	protected.POST("/entries/filter", s.filterEntries)
	protected.DELETE("/entries/:logId", s.deleteEntry)
	protected.POST("/entries", s.createEntry)
	protected.POST("/entries/manual", s.createManualEntry)
	protected.GET("/analytics/trends", s.trends)
	protected.GET("/analytics/by-college", s.byCollege)
	protected.GET("/analytics/by-department", s.byDepartment)
	protected.GET("/analytics/peak-hours", s.peakHours)
	protected.GET("/logs/stream", s.broker.serve)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		s.metrics.Observe(c.Request.Method, c.FullPath(), status)
		if c.FullPath() == "/metrics" || c.FullPath() == "/healthz" {
			return
		}
		s.cfg.Logger.Debug("mock request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetHeader("X-Request-ID"),
		)
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		fail(c, http.StatusBadRequest, "Username and password are required")
		return
	}
	if req.Username != s.cfg.AdminUser || req.Password != s.cfg.AdminPassword {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	tokens, err := issue(req.Username, s.cfg.SigningKey, s.cfg.Now(), s.cfg.AccessTTL, 7*24*time.Hour)
	if err != nil {
		fail(c, http.StatusInternalServerError, "token issue failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"user":         gin.H{"username": req.Username, "role": "admin"},
		},
	})
}

func intParam(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return positiveOr(n, fallback)
}

func positiveOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// listingSort reads the directive or, failing that, its field/direction aliases.
func listingSort(get func(string) string) string {
	if d := get("sort"); d != "" {
		return d
	}
	field := firstNonEmpty(get("sortBy"), get("sort_by"), get("sortField"))
	if field == "" {
		return ""
	}
	return field + ":" + firstNonEmpty(get("order"), get("sortDir"), get("sort_dir"), "desc")
}

func (s *Server) listEntries(c *gin.Context) {
	q := c.Request.URL.Query()
	f := Filter{UserType: q.Get("userType"), Sort: listingSort(q.Get)}
	s.respondPage(c, f, intParam(q.Get("page"), 1), intParam(q.Get("limit"), 10))
}

func (s *Server) filterEntries(c *gin.Context) {
	var req struct {
		SearchQuery string `json:"searchQuery"`
		Page        int    `json:"page"`
		Limit       int    `json:"limit"`
		UserType    string `json:"userType"`
		Sort        string `json:"sort"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid filter body")
		return
	}
	f := Filter{UserType: req.UserType, Search: req.SearchQuery, Sort: req.Sort}
	s.respondPage(c, f, positiveOr(req.Page, 1), positiveOr(req.Limit, 10))
}

func (s *Server) respondPage(c *gin.Context, f Filter, page, limit int) {
	limit = min(limit, s.cfg.MaxLimit)
	matched := s.store.list(f)
	total := len(matched)
	totalPages := (total + limit - 1) / limit

	from := min((page-1)*limit, total)
	to := min(from+limit, total)
	records := make([]map[string]any, 0, to-from)
	for _, e := range matched[from:to] {
		records = append(records, e.record())
	}
	pagination := gin.H{"total": total, "page": page, "limit": limit, "totalPages": totalPages}

	switch s.cfg.Envelope {
	case EnvelopeBare:
		c.JSON(http.StatusOK, records)
	case EnvelopeEntries:
		c.JSON(http.StatusOK, gin.H{"entries": records, "pagination": pagination})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"entries": records, "pagination": pagination}})
	}
}

func (s *Server) deleteEntry(c *gin.Context) {
	logID := c.Param("logId")
	if !s.store.Delete(logID) {
		fail(c, http.StatusNotFound, "Entry not found")
		return
	}
	s.broker.publish(gin.H{"event": "entry_deleted", "logId": logID})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Entry deleted"})
}

func (s *Server) createEntry(c *gin.Context) {
	if s.cfg.LegacyManualOnly {
		fail(c, http.StatusNotFound, "Not found")
		return
	}
	var req struct {
		IDNumber       string `json:"idNumber"`
		EntryMethod    string `json:"entryMethod"`
		EntryTimestamp string `json:"entryTimestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IDNumber == "" {
		fail(c, http.StatusBadRequest, "idNumber is required")
		return
	}
	var at time.Time
	if req.EntryTimestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, req.EntryTimestamp)
		if err != nil {
			fail(c, http.StatusBadRequest, "entryTimestamp must be ISO-8601")
			return
		}
		at = parsed
	}
	s.record(c, req.IDNumber, firstNonEmpty(req.EntryMethod, "manual"), at)
}

func (s *Server) createManualEntry(c *gin.Context) {
	var req struct {
		IDNumber string `json:"idNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IDNumber == "" {
		fail(c, http.StatusBadRequest, "idNumber is required")
		return
	}
	s.record(c, req.IDNumber, "manual", time.Time{})
}

func (s *Server) record(c *gin.Context, idNumber, method string, at time.Time) {
	e, err := s.store.add(idNumber, method, at)
	if errors.Is(err, ErrUnknownUser) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	rec := e.record()
	s.broker.publish(gin.H{"event": "entry_created", "entry": rec})
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": rec})
}
