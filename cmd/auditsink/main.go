package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenderops/bidding-qa/internal/config"
	"github.com/tenderops/bidding-qa/internal/core/domain"
	"github.com/tenderops/bidding-qa/internal/infrastructure/queue/nats"
	"github.com/tenderops/bidding-qa/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("bidding-qa-auditsink", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		log.Fatalf("connect audit queue: %v", err)
	}
	defer queue.Close()

	logger.Info("auditsink_subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeQueryAnswered(ctx, func(_ context.Context, event domain.QueryAuditEvent) error {
		logger.Info("query_answered",
			"trace_id", event.TraceID,
			"route", event.Route,
			"confidence", event.Confidence,
			"sufficient", event.Sufficient,
			"duration_ms", event.Duration.Milliseconds(),
			"answered_at", event.AnsweredAt,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("auditsink subscribe error: %v", err)
	}
}
