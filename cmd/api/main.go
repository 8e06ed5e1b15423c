package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"minimail/config"
	"minimail/internal/httpserver"
	"minimail/internal/repository"
	"minimail/internal/service"
	"minimail/internal/service/auth"
	"minimail/internal/service/mail"
	"minimail/pkg/circuitbreaker"
	"minimail/pkg/logger"
	"minimail/pkg/metrics"
	"minimail/pkg/mq"
	redisclient "minimail/pkg/redis"
	"minimail/pkg/util"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Development)
	defer log.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := util.NewSessionIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		log.Fatal("Failed to init session issuer", zap.Error(err))
	}
	if cfg.JWT.Secret == "" {
		log.Warn("JWT secret not configured, using a random one; sessions end on restart")
	}

	var checks []httpserver.ReadinessCheck

	// Init Redis (optional, login throttle)
	var throttle auth.Throttle
	if cfg.Redis.Addr != "" && cfg.Auth.MaxLoginAttempts > 0 {
		rdb, err := redisclient.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
		throttle = util.NewLoginThrottle(rdb, cfg.Auth.MaxLoginAttempts, cfg.Auth.LockoutWindow)
		checks = append(checks, httpserver.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Info("Login throttle enabled",
			zap.Int("max_attempts", cfg.Auth.MaxLoginAttempts),
			zap.Duration("window", cfg.Auth.LockoutWindow),
		)
	}

	// Init MQ Publisher (optional, domain events)
	var publisher service.EventPublisher = mq.NopPublisher{}
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = mq.NewBreakerPublisher(p, circuitbreaker.New(circuitbreaker.DefaultConfig()))
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "mq",
			Check: func(context.Context) error {
				if !p.IsConnected() {
					return errors.New("connection closed")
				}
				return nil
			},
		})
	}

	// Init Repositories
	userRepo := repository.NewUserRepository()
	mailRepo := repository.NewMailRepository()
	metrics.RegisterStoreGauges(prometheus.DefaultRegisterer,
		userRepo.Count,
		func() int { return mailRepo.Stats().Mails },
		func() int { return mailRepo.Stats().Mailboxes },
	)

	// Init Services
	authService := auth.NewService(userRepo, issuer, throttle, publisher, log)
	mailService := mail.NewService(mailRepo, publisher, log)

	// Router
	router := httpserver.NewRouter(authService, mailService, log, checks...)
	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Handler(cfg.CORS.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start API server
	if err := httpserver.Serve(ctx, srv, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("Server stopped")
}
