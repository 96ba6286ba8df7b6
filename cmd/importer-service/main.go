package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/api/middleware"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/auth"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/config"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/database"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/kafka"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/importer"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/observability/metrics"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/products"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/webhooks"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	productRepo := products.NewRepository(db)
	jobRepo := importer.NewRepository(db)
	webhookRepo := webhooks.NewRepository(db)
	for _, migrate := range []func() error{productRepo.AutoMigrate, jobRepo.AutoMigrate, webhookRepo.AutoMigrate} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate tables")
		}
	}

	schema, err := importer.LoadSchema(cfg.ImportSchemaFile)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to load import schema, using defaults")
	}

	var broker importer.Broker
	if cfg.ProgressBroker == "redis" {
		broker = importer.NewRedisBroker(database.GetRedis())
	} else {
		broker = importer.NewMemoryBroker()
	}
	publisher := importer.NewPublisher(broker)

	deliverer := webhooks.NewDeliverer(cfg.WebhookTimeout, cfg.WebhookMaxBodyBytes)
	dispatcher := webhooks.NewDispatcher(webhookRepo, deliverer, cfg.WebhookQueueSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events interface {
		Fire(eventType string, payload map[string]interface{})
	}
	var producer *kafka.Producer
	if cfg.WebhookDispatchMode == "kafka" {
		producer = kafka.NewProducer(cfg.ProductEventsTopic)
		defer producer.Close()
		events = kafka.NewEventSink(producer, "importer-service")
	} else {
		dispatcher.Start(ctx)
		defer dispatcher.Close()
		events = dispatcher
	}

	pipeline := importer.NewPipeline(jobRepo, productRepo, publisher, events, schema, cfg.ImportBatchSize, cfg.ImportErrorCap)
	pool := importer.NewPool(pipeline, cfg.ImportWorkers, cfg.ImportQueueSize)
	pool.Start(ctx)

	importService := importer.NewService(jobRepo, pool, publisher, schema, cfg.ImportSpoolDir)
	productService := products.NewService(productRepo, events)

	var oidcAuth *auth.OIDCAuthenticator
	if cfg.OIDCIssuer != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("invalid OIDC configuration")
		}
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.Recovery)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate(oidcAuth))
	importer.NewHTTPHandler(importService, cfg.MaxUploadBytes, cfg.SSEKeepalive).Register(api)
	products.NewHTTPHandler(productService).Register(api)
	webhooks.NewHTTPHandler(webhookRepo, dispatcher).Register(api)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		// Progress streams are long-lived; the write timeout would cut them off.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Importer Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Importer Service...")

	// Stop accepting uploads before the pool goes away so no request races a
	// closed task queue.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	cancel()
	pool.Stop()

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("failed to close postgres")
	}
	if cfg.ProgressBroker == "redis" {
		if err := database.CloseRedis(); err != nil {
			logger.Log.WithError(err).Error("failed to close redis")
		}
	}

	logger.Log.Info("Importer Service stopped")
}
