// Package inbound implements the inbound translator (C7): consume an
// external topic, deduplicate by broker offset against a persisted
// high-watermark, and translate each message into a domain command run
// through the decision engine. Generalizes original_source's
// KafkaListener (subsystems/kafka_listeners.rs), swapping rdkafka's
// StreamConsumer for franz-go's kgo.Client.
package inbound

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Handler is one named consumer of an external topic. Unmarshal decodes
// the raw payload; Handle runs the translated command and is passed the
// broker offset purely for logging — dedup is handled by the Consumer
// itself.
type Handler struct {
	Topic     string
	Group     string
	Unmarshal func(payload []byte) (any, error)
	Handle    func(ctx context.Context, offset int64, message any) error
}

// Consumer drives one Handler against a kgo client, persisting its
// high-watermark offset in Postgres.
type Consumer struct {
	handler Handler
	brokers []string
	pool    *pgxpool.Pool
	log     *logrus.Entry
}

// New returns a Consumer for handler, not yet connected.
func New(handler Handler, brokers []string, pool *pgxpool.Pool, log *logrus.Entry) *Consumer {
	return &Consumer{handler: handler, brokers: brokers, pool: pool, log: log.WithField("topic", handler.Topic)}
}

// Run drives the consume loop until ctx is cancelled. Any error from
// tryRun reopens the consumer under exponential backoff with jitter
// (spec §4.7 step 4); retries persist indefinitely.
func (c *Consumer) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.tryRun(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			attempt = 0
			continue
		}
		delay := backoff(attempt)
		c.log.WithError(err).WithField("retry_in", delay).Error("inbound: consumer loop failed, restarting")
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func backoff(attempt int) time.Duration {
	base := 500 * time.Millisecond
	max := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > max {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}

// tryRun opens a consumer starting at the earliest offset, loads the
// persisted high-watermark (it does not seek to it; processRecord bypasses
// offsets at or below it), and processes messages until ctx is cancelled
// or an unrecoverable client error occurs (spec §4.7 steps 2-3).
func (c *Consumer) tryRun(ctx context.Context) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(c.brokers...),
		kgo.ConsumerGroup(c.handler.Group),
		kgo.ConsumeTopics(c.handler.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	lastOffset, err := c.loadLastOffset(ctx)
	if err != nil {
		return err
	}

	for {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			return errs[0].Err
		}

		var commitErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if commitErr != nil {
				return
			}
			lastOffset = c.processRecord(ctx, record, lastOffset)
			if err := client.CommitRecords(ctx, record); err != nil {
				commitErr = err
			}
		})
		if commitErr != nil {
			return commitErr
		}
	}
}

// processRecord applies the replay-protection and dispatch rule of spec
// §4.7 step 3: bypass already-seen offsets, translate and dispatch
// otherwise, always advancing the persisted watermark.
func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record, lastOffset *int64) *int64 {
	offset := record.Offset

	if lastOffset != nil && *lastOffset >= offset {
		c.log.WithField("offset", offset).WithField("last_offset", *lastOffset).
			Warn("inbound: bypassing already-processed message")
		return c.advance(ctx, lastOffset, offset)
	}

	message, err := c.handler.Unmarshal(record.Value)
	if err != nil {
		c.log.WithError(err).WithField("offset", offset).Error("inbound: could not deserialize message, bypassing")
		return c.advance(ctx, lastOffset, offset)
	}

	if err := c.handler.Handle(ctx, offset, message); err != nil {
		c.log.WithError(err).WithField("offset", offset).Error("inbound: handler failed")
	}
	return c.advance(ctx, lastOffset, offset)
}

func (c *Consumer) advance(ctx context.Context, lastOffset *int64, offset int64) *int64 {
	next := offset
	if lastOffset != nil && *lastOffset > next {
		next = *lastOffset
	}
	if err := c.saveLastOffset(ctx, next); err != nil {
		c.log.WithError(err).Warn("inbound: failed to persist offset watermark")
	}
	return &next
}

func (c *Consumer) loadLastOffset(ctx context.Context) (*int64, error) {
	var offset int64
	err := c.pool.QueryRow(ctx, `SELECT last_offset FROM kafka_topic WHERE topic = $1`, c.handler.Topic).Scan(&offset)
	if err == pgx.ErrNoRows {
		return nil, nil // no watermark yet: don't bypass anything
	}
	if err != nil {
		return nil, err
	}
	return &offset, nil
}

func (c *Consumer) saveLastOffset(ctx context.Context, offset int64) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO kafka_topic (topic, last_offset)
		VALUES ($1, $2)
		ON CONFLICT (topic) DO UPDATE SET last_offset = $2
		WHERE kafka_topic.last_offset < $2
	`, c.handler.Topic, offset)
	return err
}

// decodeJSON is a small helper shared by the concrete translators.
func decodeJSON[T any](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
