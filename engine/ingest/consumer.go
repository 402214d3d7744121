package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/CinemateAI/cinemate-mvp/engine/domain"
	"github.com/CinemateAI/cinemate-mvp/pkg/fn"
	"github.com/CinemateAI/cinemate-mvp/pkg/natsutil"
)

const (
	// SubjectIngest carries single-movie ingest requests.
	SubjectIngest = "catalog.ingest"
	// SubjectIngestDLQ receives movies that could not be indexed.
	SubjectIngestDLQ = "catalog.ingest.dlq"
	// queueGroup lets multiple ingest workers share the subject.
	queueGroup = "ingest-workers"
)

// Consumer drives the pipeline from NATS ingest messages.
type Consumer struct {
	nc       *nats.Conn
	pipeline *Pipeline
	retry    fn.RetryOpts
	logger   *slog.Logger
}

// NewConsumer creates a Consumer over an established NATS connection.
func NewConsumer(nc *nats.Conn, pipeline *Pipeline, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	retry := fn.DefaultRetry
	retry.Retryable = domain.Retryable
	return &Consumer{nc: nc, pipeline: pipeline, retry: retry, logger: logger}
}

// Start subscribes to the ingest subject. Each message is one movie; the
// pipeline runs with bounded retries and exhausted or non-retryable
// failures route the movie to the DLQ.
func (c *Consumer) Start() (*nats.Subscription, error) {
	return natsutil.SubscribeQueue(c.nc, SubjectIngest, queueGroup, func(ctx context.Context, m domain.Movie) {
		_, err := fn.Retry(ctx, c.retry, func(ctx context.Context) (int, error) {
			return c.pipeline.Run(ctx, []domain.Movie{m})
		})
		if err != nil {
			c.logger.Error("ingest failed, routing to dlq", "id", m.ID, "error", err)
			if pubErr := natsutil.Publish(ctx, c.nc, SubjectIngestDLQ, m); pubErr != nil {
				c.logger.Error("dlq publish failed", "id", m.ID, "error", pubErr)
			}
			return
		}
		c.logger.Info("movie ingested", "id", m.ID, "title", m.Title)
	})
}
