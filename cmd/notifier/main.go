package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/config"
	kafkax "github.com/ariefcatur/pizza-club-orders/internal/kafka"
	"github.com/ariefcatur/pizza-club-orders/internal/logging"
	"github.com/ariefcatur/pizza-club-orders/internal/metrics"
	"github.com/ariefcatur/pizza-club-orders/internal/notify"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	"github.com/ariefcatur/pizza-club-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-notifier"

	logger, err := logging.New(service, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	worker := &notify.Worker{
		SMS:      notify.NewTwilio(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From),
		Dedup:    redisx.NewDedup(rdb, service),
		Log:      logger,
		Attempts: cfg.NotifierAttempts,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicDeliveryNotification, cfg.NotifierWorkers, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	msrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.String("topic", orders.TopicDeliveryNotification),
			zap.Int("workers", cfg.NotifierWorkers))
		return cons.Start(gctx, worker.Handle)
	})
	g.Go(func() error {
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return msrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("notifier stopped", zap.Error(err))
	}
	logger.Info("notifier shut down")
}
