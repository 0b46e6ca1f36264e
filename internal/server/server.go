package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	api "github.com/GriffinCanCode/Shelf/backend/internal/api/http"
	"github.com/GriffinCanCode/Shelf/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Shelf/backend/internal/api/ws"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server serves the runtime over HTTP and WebSocket
type Server struct {
	runtime *Runtime
	router  *gin.Engine
	tracer  *tracing.Tracer
	http    *http.Server
}

// New builds the router over an initialized runtime
func New(rt *Runtime) *Server {
	cfg := rt.Config
	logger := rt.Logger

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// entry ids are opaque and may contain encoded slashes
	router.UseRawPath = true
	router.UnescapePathValues = true

	tracer := tracing.New("shelf", logger.Named("trace").Logger)

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(rt.Metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := api.NewHandlers(rt.Registry, api.Options{
		Bus:          rt.Bus,
		LoginTimeout: cfg.Install.LoginTimeout.Std(),
		Pool:         rt.Pool,
		Metrics:      rt.Metrics,
		Logger:       logger,
	})
	handlers.Register(router)

	router.GET("/stream", ws.NewHandler(rt.Bus, rt.Metrics, logger.Named("ws")).HandleConnection)
	router.GET("/metrics", gin.WrapH(rt.Metrics.Handler()))

	return &Server{
		runtime: rt,
		router:  router,
		tracer:  tracer,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	logger := s.runtime.Logger
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.runtime.Config.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}

// Close flushes traces. The runtime is owned by the caller.
func (s *Server) Close() {
	s.tracer.Close()
}
