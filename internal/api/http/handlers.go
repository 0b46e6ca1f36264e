package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/domain/registry"
	"github.com/GriffinCanCode/Shelf/backend/internal/events"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/gin-gonic/gin"
)

// Version is reported by the root and health endpoints
const Version = "1.0.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *registry.Registry
	logins   *LoginManager
	pool     *sandbox.Pool
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	started  time.Time
}

// Options configures NewHandlers
type Options struct {
	Bus          events.Subscriber
	LoginTimeout time.Duration
	Pool         *sandbox.Pool
	Metrics      *monitoring.Metrics
	Logger       *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(reg *registry.Registry, opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Handlers{
		registry: reg,
		logins:   NewLoginManager(opts.Bus, opts.LoginTimeout),
		pool:     opts.Pool,
		metrics:  opts.Metrics,
		logger:   opts.Logger.Named("api"),
		started:  time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	// Package management
	r.GET("/packages", h.ListPackages)
	r.GET("/packages/:id", h.GetPackage)
	r.GET("/packages/:id/files", h.PackageFiles)
	r.POST("/packages/install", h.InstallPackage)
	r.POST("/packages/batch", h.InstallBatch)
	r.DELETE("/packages/:id", h.RemovePackage)

	// Sources
	r.GET("/sources/:id/listings", h.GetListings)
	r.GET("/sources/:id/listings/:listing", h.GetListing)
	r.POST("/sources/:id/search", h.Search)
	r.GET("/sources/:id/entries/:entry", h.GetEntry)
	r.GET("/sources/:id/entries/:entry/items", h.GetItems)
	r.GET("/sources/:id/entries/:entry/items/:item", h.GetItemDetails)
	r.GET("/sources/:id/filters", h.GetFilters)
	r.GET("/sources/:id/settings", h.GetSourceSettings)
	r.POST("/sources/:id/request", h.ModifyRequest)

	// Trackers
	r.GET("/trackers/:id/login", h.LoginState)
	r.POST("/trackers/:id/login", h.BeginLogin)
	r.POST("/trackers/:id/login/callback", h.CompleteLogin)
	r.DELETE("/trackers/:id/login", h.CancelLogin)
	r.GET("/trackers/:id/status", h.LoginStatus)
	r.GET("/trackers/:id/settings", h.GetTrackerSettings)
	r.GET("/trackers/:id/history/:entry", h.GetHistory)
	r.PUT("/trackers/:id/history/:entry", h.SetHistory)
	r.DELETE("/trackers/:id/history/:entry", h.DeleteHistory)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Shelf plugin host",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"version":  Version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"packages": h.registry.Count(),
		"sources":  len(h.registry.Sources()),
		"trackers": len(h.registry.Trackers()),
		"metrics":  h.metrics.Snapshot(),
	}
	if h.pool != nil {
		body["pool"] = h.pool.Stats()
	}
	c.JSON(http.StatusOK, body)
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// absent answers a call whose guest produced no result
func absent(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error":   "no result",
	})
}

// page parses the optional page query parameter, defaulting to 1
func page(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("page", "1")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid page: " + raw,
		})
		return 0, false
	}
	return n, true
}
