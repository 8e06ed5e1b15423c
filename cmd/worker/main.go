package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"minimail/config"
	mqcontracts "minimail/contracts/mq"
	"minimail/internal/mqhandler"
	pkgconfig "minimail/pkg/config"
	"minimail/pkg/logger"
	"minimail/pkg/mq"
	redisclient "minimail/pkg/redis"
	"minimail/pkg/util"
)

const (
	notifyQueue   = "mail.notify.q"
	activityQueue = "mail.activity.q"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Development)
	defer log.Sync()

	if cfg.MQ.URL == "" {
		log.Fatal("MQ_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting worker service...")

	// Init Redis (optional, dedup)
	var deduper mqhandler.Deduper
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
		deduper = util.NewDeduper(rdb, time.Hour)
	}

	// Init Handlers
	notifyHandler := mqhandler.NewMailSentNotificationHandler(mqhandler.NewLogNotifier(log), deduper, log)
	notifyRouter := mq.NewRouter(log)
	notifyRouter.Register(mqcontracts.EventMailSent, notifyHandler.Handle)

	activityRouter := mq.NewRouter(log)
	mqhandler.NewActivityLogHandler(log).Register(activityRouter)

	consumers := []struct {
		queue    string
		bindings []string
		handler  mq.MessageHandler
	}{
		{notifyQueue, []string{mqcontracts.EventMailSent}, notifyRouter.Handle},
		{activityQueue, []string{"user.#", "mail.#"}, activityRouter.Handle},
	}

	var wg sync.WaitGroup
	for _, qc := range consumers {
		log.Info("Initializing consumer", zap.String("queue", qc.queue), zap.Strings("bindings", qc.bindings))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, qc.queue, qc.bindings, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("queue", qc.queue), zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(qc.handler)

		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			if err := consumer.StartConsuming(ctx); err != nil {
				log.Error("Consumer stopped", zap.String("queue", queue), zap.Error(err))
				stop()
			}
		}(qc.queue)
	}

	// metrics endpoint
	metricsSrv := &http.Server{
		Addr:              pkgconfig.GetEnv("WORKER_METRICS_PORT", ":9100"),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	log.Info("All consumers started, worker is ready to process messages")

	<-ctx.Done()
	log.Info("Shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	wg.Wait()
}
