package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/auth"
	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/ariefcatur/pizza-club-orders/internal/config"
	"github.com/ariefcatur/pizza-club-orders/internal/httpx"
	kafkax "github.com/ariefcatur/pizza-club-orders/internal/kafka"
	"github.com/ariefcatur/pizza-club-orders/internal/logging"
	"github.com/ariefcatur/pizza-club-orders/internal/notify"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	"github.com/ariefcatur/pizza-club-orders/internal/paypal"
	"github.com/ariefcatur/pizza-club-orders/internal/postgres"
	"github.com/ariefcatur/pizza-club-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	events := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderConfirmed, 1024, logger)
	events.Start(ctx)
	notifications := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicDeliveryNotification, 1024, logger)
	notifications.Start(ctx)

	engine := &orders.Engine{
		UoW: &orders.PgUnitOfWork{DB: db},
		Gateway: &paypal.Gateway{
			Client:   paypal.NewClient(cfg.PayPal.BaseURL, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.Timeout),
			BaseURL:  cfg.PublicBaseURL,
			Currency: cfg.PayPal.Currency,
		},
		Notifier:            &notify.Publisher{Producer: notifications, Service: cfg.ServiceName},
		Events:              &orders.KafkaEvents{Producer: events, Service: cfg.ServiceName},
		Cache:               redisx.NewOrderCache(rdb, logger),
		Log:                 logger,
		AllowStatusRollback: cfg.AllowStatusRollback,
		NotifyOverride:      cfg.NotifyOverrideNumber,
	}

	router := httpx.NewRouter(logger, cfg.CORSOrigins)
	h := &httpx.Handler{
		Engine: engine,
		Menu:   &catalog.Repo{DB: db},
		Auth:   &auth.Verifier{Secret: []byte(cfg.JWTSecret)},
		Log:    logger,
	}
	h.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	events.Close() // flush buffered events
	notifications.Close()
	cancel()
	events.WaitClosed()
	notifications.WaitClosed()
}
