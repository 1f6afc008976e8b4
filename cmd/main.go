package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profast/parcel-payments-service/internal/application"
	"github.com/profast/parcel-payments-service/internal/config"
	"github.com/profast/parcel-payments-service/internal/kafka"
	"github.com/profast/parcel-payments-service/internal/logger"
	"github.com/profast/parcel-payments-service/internal/migrate"
	"github.com/profast/parcel-payments-service/internal/presentation"
	"github.com/profast/parcel-payments-service/internal/processor"
	"github.com/profast/parcel-payments-service/internal/repository"
)

func main() {
	logger.Init()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.DB_STRING)
	if err != nil {
		logger.Warn("pgxpool new failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Warn("db ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	if err := migrate.Up(cfg.DB_STRING); err != nil {
		logger.Warn("migrations failed", "err", err)
		os.Exit(1)
	}

	// Wiring
	parcelRepo := repository.NewParcelRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	issuer := processor.NewClient(cfg.PROCESSOR_URL, cfg.PROCESSOR_KEY, cfg.CURRENCY)

	var events application.EventPublisher
	var prod *kafka.Producer
	if cfg.KAFKA_BROKERS != "" {
		prod = kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_PAYMENTS_TOPIC)
		defer prod.Close()
		events = prod
	}

	svc := application.NewReconciliationService(parcelRepo, paymentRepo, issuer, events)

	// Intake consumer (parcel submissions topic -> store)
	if cfg.KAFKA_BROKERS != "" {
		_, _ = kafka.StartConsumer(
			ctx,
			svc,
			kafka.ConsumerConfig{
				Brokers: cfg.KAFKA_BROKERS,
				Topic:   cfg.KAFKA_PARCELS_TOPIC,
				GroupID: cfg.KAFKA_GROUP_ID,
			},
		)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// API
	h := presentation.NewParcelsHandler(svc)
	h.Register(r)

	addr := ":" + cfg.HTTP_PORT
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting http", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("http server crashed", "err", err)
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down")

	cancel() // stop consumer

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	if err := srv.Shutdown(ctxShut); err != nil {
		logger.Warn("http shutdown failed", "err", err)
	}

	logger.Info("server stopped")
}
