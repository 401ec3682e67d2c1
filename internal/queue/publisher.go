package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/seatpack-sync/internal/logging"
	"github.com/iliyamo/seatpack-sync/internal/model"
)

// SummaryPublisher sends run summaries to a durable queue.  It dials per
// publish: runs are infrequent and a broker outage must never hold up sync.
type SummaryPublisher struct {
	url   string
	queue string
	log   *zap.Logger
	now   func() time.Time
}

// NewSummaryPublisher returns a publisher for queue on the broker at url.
// An empty queue name means PackSyncCompletedQueue.
func NewSummaryPublisher(url, queue string, log *zap.Logger) *SummaryPublisher {
	if queue == "" {
		queue = PackSyncCompletedQueue
	}
	return &SummaryPublisher{url: url, queue: queue, log: logging.Component(log, "summary-publisher"), now: time.Now}
}

// PublishSummary publishes s as a persistent JSON message.  Errors are logged
// and returned so the caller can choose to ignore them.
func (p *SummaryPublisher) PublishSummary(ctx context.Context, s model.SyncSummary) error {
	body, err := json.Marshal(NewSyncCompletedEvent(s, p.now()))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.String("queue", p.queue), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    s.JobID,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.String(logging.FieldJobID, s.JobID), zap.Error(err))
		return err
	}
	return nil
}
