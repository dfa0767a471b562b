package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pizzeria/internal/config"
	"pizzeria/pkg/messaging"

	"github.com/rabbitmq/amqp091-go"
)

// pizzeria-events tails the event exchange and logs every message.
func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if cfg.RabbitURL == "" {
		log.Fatal("PIZZERIA_RABBIT_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.EventsExchange, cfg.EventsQueue, logger, os.Args[1:]...)
	if err != nil {
		log.Fatalf("init consumer: %v", err)
	}
	defer consumer.Close()

	logger.Info("tailing events", "exchange", cfg.EventsExchange, "queue", cfg.EventsQueue)
	err = consumer.Start(ctx, func(_ context.Context, msg amqp091.Delivery) {
		var body map[string]any
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			logger.Error("invalid event", "routing_key", msg.RoutingKey, "err", err)
			_ = msg.Nack(false, false)
			return
		}
		logger.Info("event", "routing_key", msg.RoutingKey, "body", body)
		_ = msg.Ack(false)
	})
	if err != nil {
		log.Fatalf("consume: %v", err)
	}
}
