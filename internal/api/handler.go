package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sales-order-service/internal/models"
	"sales-order-service/internal/pipeline"
	"sales-order-service/internal/service"
	"sales-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService is the order surface the handlers drive
type OrderService interface {
	CreateOrder(ctx context.Context, actor models.Actor, in *service.OrderInput, poFilePath, idempotencyKey string) (*models.Order, error)
	EditOrder(ctx context.Context, actor models.Actor, id int64, body map[string]json.RawMessage) (*models.Order, error)
	DeleteOrder(ctx context.Context, actor models.Actor, id int64) error
	ListOrders(ctx context.Context, actor models.Actor) ([]models.Order, error)
	StageOrders(ctx context.Context, actor models.Actor, name string) ([]models.Order, error)
	ExportOrders(ctx context.Context, actor models.Actor) (*service.Export, error)
	ImportOrders(ctx context.Context, actor models.Actor, rows []service.BulkRow, idempotencyKey string) ([]*models.Order, error)
}

// NotificationService is the notification feed surface
type NotificationService interface {
	List(ctx context.Context, actor models.Actor) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, actor models.Actor) (int64, error)
	ClearAll(ctx context.Context, actor models.Actor) (int64, error)
}

// TeamService is the team assignment surface
type TeamService interface {
	CurrentUser(ctx context.Context, actor models.Actor) (*models.User, error)
	AvailableUsers(ctx context.Context, actor models.Actor) ([]models.User, error)
	MyTeam(ctx context.Context, actor models.Actor) ([]models.User, error)
	Assign(ctx context.Context, actor models.Actor, userID int64) (*models.User, error)
	Unassign(ctx context.Context, actor models.Actor, userID int64) (*models.User, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface
type Options struct {
	JWTSecret         string
	UploadDir         string
	BulkRatePerSecond float64
	BulkBurst         int
	Checks            map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	orders        OrderService
	notifications NotificationService
	teams         TeamService
	opts          Options
	limiter       *userLimiter
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orders OrderService, notifications NotificationService, teams TeamService, opts Options) *Handler {
	if opts.BulkRatePerSecond <= 0 {
		opts.BulkRatePerSecond = 1
	}
	if opts.BulkBurst <= 0 {
		opts.BulkBurst = 3
	}
	return &Handler{
		orders:        orders,
		notifications: notifications,
		teams:         teams,
		opts:          opts,
		limiter:       newUserLimiter(opts.BulkRatePerSecond, opts.BulkBurst, 3*time.Minute),
		logger:        util.GetLogger(),
	}
}

// stageRoutes maps projection paths to pipeline stages
var stageRoutes = map[string]string{
	"/production-orders":          pipeline.StageProduction,
	"/finished-goods":             pipeline.StageFinishedGoods,
	"/installation-orders":        pipeline.StageInstallation,
	"/accounts-orders":            pipeline.StageAccounts,
	"/get-verification-orders":    pipeline.StageVerification,
	"/production-approval-orders": pipeline.StageProductionApproval,
	"/get-bill-orders":            pipeline.StageBilling,
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(tracingMiddleware())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.opts.UploadDir != "" {
		router.Static("/Uploads", h.opts.UploadDir)
	}

	api := router.Group("/api", authMiddleware(h.opts.JWTSecret))
	{
		api.GET("/orders", h.listOrders)
		api.POST("/orders", h.createOrder)
		api.PUT("/orders/:id", h.editOrder)
		api.DELETE("/orders/:id", h.deleteOrder)

		heavy := api.Group("", h.limiter.middleware())
		heavy.GET("/export", h.exportOrders)
		heavy.POST("/bulk-orders", h.bulkOrders)

		for path, stage := range stageRoutes {
			api.GET(path, h.stageOrders(stage))
		}

		api.GET("/notifications", h.listNotifications)
		api.POST("/mark-read", h.markRead)
		api.DELETE("/clear", h.clearNotifications)

		api.GET("/current-user", h.currentUser)
		api.GET("/fetch-available-users", h.availableUsers)
		api.GET("/fetch-my-team", h.myTeam)
		api.POST("/assign-user", h.assignUser)
		api.POST("/unassign-user", h.unassignUser)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.opts.Checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// tracingMiddleware opens a server span so service spans nest under the request
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := util.StartSpan(c.Request.Context(), c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
