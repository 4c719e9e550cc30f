// Package tradehttp serves the read-side API: engine status, open positions,
// trade history and lifecycle events, plus the manual instant-buy entry point.
package tradehttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tidebot/internal/engine"
	pairs "tidebot/internal/pkg/symbol"
	"tidebot/internal/portfolio"
	"tidebot/internal/storage"
)

type Server struct {
	addr    string
	eng     *engine.Engine
	journal *storage.Journal
	router  *gin.Engine
}

type Config struct {
	Addr    string
	Engine  *engine.Engine
	Journal *storage.Journal
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		eng:     cfg.Engine,
		journal: cfg.Journal,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/positions", s.handlePositions)
	api.GET("/trades", s.handleTrades)
	api.GET("/events", s.handleEvents)
	api.POST("/buy/:symbol", s.handleInstantBuy)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Status())
}

func (s *Server) handlePositions(c *gin.Context) {
	snap := s.eng.Status().Portfolio
	c.JSON(http.StatusOK, gin.H{"positions": snap.Positions, "states": snap.States})
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 100)
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"trades": nil})
		return
	}
	trades, err := s.journal.Trades(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 200)
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"events": nil})
		return
	}
	events, err := s.journal.Events(limit, c.Query("symbol"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleInstantBuy(c *gin.Context) {
	sym := pairs.Normalize(c.Param("symbol"))
	if sym == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	if err := s.eng.InstantBuy(c.Request.Context(), sym); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, portfolio.ErrNotRegistered) {
			status = http.StatusNotFound
		} else if errors.Is(err, portfolio.ErrNotFlat) ||
			errors.Is(err, portfolio.ErrMaxHoldings) ||
			errors.Is(err, portfolio.ErrCapitalCeiling) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "status": "filled"})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
