package bootstrap

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/hospital-booking/internal/events"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

const outboxPollInterval = 2 * time.Second

// BuildEventPublisher returns the publisher for booked and paid events. With a
// database the events go through the outbox and a deliverer is started on
// ctx; the deliverer forwards to SQS when a client is given and to the log
// otherwise.
func BuildEventPublisher(ctx context.Context, pool *pgxpool.Pool, sqsClient *sqs.Client, queueURL string, logger *logging.Logger) events.Publisher {
	if logger == nil {
		logger = logging.Default()
	}

	var sink interface {
		events.Publisher
		events.DeliveryHandler
	}
	if sqsClient != nil && queueURL != "" {
		sink = events.NewSQSPublisher(sqsClient, queueURL)
	} else {
		sink = events.NewLogPublisher(logger)
	}

	if pool == nil {
		return sink
	}
	store := events.NewOutboxStore(pool)
	deliverer := events.NewDeliverer(store, sink, logger).WithInterval(outboxPollInterval)
	go deliverer.Start(ctx)
	logger.Info("booking events routed through outbox", "sqs", sqsClient != nil && queueURL != "")
	return store
}
