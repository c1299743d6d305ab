package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/banachtech/seqmc/compute"
	"github.com/banachtech/seqmc/config"
	"github.com/banachtech/seqmc/metrics"
	"github.com/gin-gonic/gin"
)

// Server serves simulation requests over HTTP. Every request gets its own
// engine; the backend is shared.
type Server struct {
	backend compute.Backend
	metrics *metrics.Metrics
	cfg     config.Config
	log     *slog.Logger
	router  *gin.Engine

	mu          sync.Mutex
	limiters    map[string]*clientLimiter
	maxLimiters int
	limiterTTL  time.Duration
}

// Limiter table bounds. Idle clients are forgotten once the table is full.
const (
	defaultMaxLimiters = 10000
	defaultLimiterTTL  = 10 * time.Minute
)

// NewServer creates a new HTTP server and sets up routing. m may be nil.
func NewServer(backend compute.Backend, cfg config.Config, m *metrics.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	server := &Server{
		backend:     backend,
		metrics:     m,
		cfg:         cfg,
		log:         log,
		limiters:    make(map[string]*clientLimiter),
		maxLimiters: defaultMaxLimiters,
		limiterTTL:  defaultLimiterTTL,
	}
	server.setupRouter()
	return server
}

func (server *Server) setupRouter() {
	router := gin.New()
	router.Use(gin.Recovery(), server.requestLogger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if server.cfg.Metrics.Enabled && server.metrics != nil {
		router.GET(server.cfg.Metrics.Path, gin.WrapH(server.metrics.Handler()))
	}

	authRoutes := router.Group("/v1").Use(server.authentication, server.rateLimit)
	authRoutes.POST("/simulate", server.simulate)
	server.router = router
}

func (server *Server) Handler() http.Handler {
	return server.router
}

// Start runs the HTTP server on address until ctx is done, then shuts it down
// gracefully.
func (server *Server) Start(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		server.log.Info("http server listening", "address", address)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.cfg.Server.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func errorResponse(err error) gin.H {
	return gin.H{"error": err.Error()}
}
