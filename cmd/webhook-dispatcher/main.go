package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/config"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/database"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/kafka"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/webhooks"
)

// Consumes product events off Kafka and delivers them to subscribed webhook
// endpoints. Runs separately from the importer so slow receivers never share
// a process with the pipeline.
func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	webhookRepo := webhooks.NewRepository(db)
	if err := webhookRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate webhook tables")
	}

	deliverer := webhooks.NewDeliverer(cfg.WebhookTimeout, cfg.WebhookMaxBodyBytes)
	dispatcher := webhooks.NewDispatcher(webhookRepo, deliverer, cfg.WebhookQueueSize)

	consumer := kafka.NewConsumer(cfg.ProductEventsTopic, cfg.WebhookDispatchGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithField("topic", cfg.ProductEventsTopic).Info("Webhook Dispatcher started")
		if err := consumer.Consume(ctx, dispatcher.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Webhook Dispatcher...")
	cancel()

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("failed to close postgres")
	}

	logger.Log.Info("Webhook Dispatcher stopped")
}
