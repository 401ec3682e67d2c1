package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seatpack-sync/internal/logging"
)

// Handler processes one message body.  Returning an error wrapped with
// Permanent drops the message; any other error requeues it once.
type Handler func(ctx context.Context, body []byte) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as one a redelivery cannot fix (bad JSON, invalid
// snapshot).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// ConsumerOptions configures Consumer.
type ConsumerOptions struct {
	URL        string
	Queue      string // empty means ScrapeCompletedQueue
	Prefetch   int    // unacked deliveries and concurrent handlers; zero means 10
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *zap.Logger
}

// Consumer reads snapshots from a durable queue and hands them to a Handler.
type Consumer struct {
	opts   ConsumerOptions
	handle Handler
	log    *zap.Logger
}

// NewConsumer returns a consumer; call Run to start it.
func NewConsumer(opts ConsumerOptions, handle Handler) *Consumer {
	if opts.Queue == "" {
		opts.Queue = ScrapeCompletedQueue
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = 10
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Consumer{
		opts:   opts,
		handle: handle,
		log:    logging.Component(opts.Logger, "scrape-consumer").With(zap.String("queue", opts.Queue)),
	}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  It returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.opts.MinBackoff
	for {
		conn, err := amqp.Dial(c.opts.URL)
		if err != nil {
			c.log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.opts.MaxBackoff)
			continue
		}
		backoff = c.opts.MinBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.opts.Prefetch, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.log.Info("consuming", zap.Int("workers", c.opts.Prefetch))
	return c.dispatch(ctx, msgs)
}

// dispatch hands deliveries to at most Prefetch concurrent handlers.  Each
// delivery is settled by its own goroutine.  It returns once every started
// handler has finished.
func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery) error {
	var g errgroup.Group
	g.SetLimit(c.opts.Prefetch)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			g.Go(func() error {
				c.deliver(ctx, d)
				return nil
			})
		}
	}
}

// deliver runs the handler and settles the delivery.
func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	err := c.handle(ctx, d.Body)
	ack, requeue := disposition(err, d.Redelivered)
	if ack {
		_ = d.Ack(false)
		return
	}
	c.log.Warn("handle message failed",
		zap.String("message_id", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
		zap.Bool("requeue", requeue),
		zap.Error(err))
	_ = d.Nack(false, requeue)
}

// disposition decides how a delivery is settled.  Permanent failures and
// failures of an already redelivered message are dropped, so a poison
// message cannot loop.
func disposition(err error, redelivered bool) (ack, requeue bool) {
	if err == nil {
		return true, false
	}
	if IsPermanent(err) || redelivered {
		return false, false
	}
	return false, true
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	if cur *= 2; cur > limit {
		return limit
	}
	return cur
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
