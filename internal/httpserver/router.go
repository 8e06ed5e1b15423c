package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"minimail/internal/handler"
	"minimail/internal/service/auth"
	"minimail/internal/service/mail"
)

type Router struct {
	Engine *gin.Engine
}

// ReadinessCheck is an optional dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func NewRouter(
	authService *auth.Service,
	mailService *mail.Service,
	logger *zap.Logger,
	checks ...ReadinessCheck,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), AccessLogMiddleware(logger), MetricsMiddleware())

	authHandler := handler.NewAuthHandler(authService, logger)
	mailHandler := handler.NewMailHandler(mailService, logger)

	// Health endpoints (放在最前面)
	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/healthz", health)
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", health)
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for _, rc := range checks {
			if err := rc.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": rc.Name + "_not_ready", "error": err.Error()})
				return
			}
		}

		stats := mailService.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"mails":     stats.Mails,
			"mailboxes": stats.Mailboxes,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Public
	api.POST("/signup", authHandler.Signup)
	api.POST("/login", authHandler.Login)

	// Protected
	protected := api.Group("/mail")
	protected.Use(handler.AuthMiddleware(authService))
	{
		protected.POST("/send", mailHandler.Send)
		protected.GET("/inbox", mailHandler.Inbox)
		protected.GET("/sentbox", mailHandler.Sentbox)
		protected.GET("/:id", mailHandler.Get)
		protected.PUT("/:id/read", mailHandler.MarkRead)
		protected.DELETE("/:id", mailHandler.Delete)
	}

	return &Router{Engine: r}
}

// Handler wraps the engine with CORS for the given origins.
func (r *Router) Handler(allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
	}).Handler(r.Engine)
}
