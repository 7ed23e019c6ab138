// Package outbound implements the outbound publisher (C8):
// publish-and-append as one unit — send a message on a transactional
// producer, then append a success event to C1, committing the broker
// transaction only if both succeeded. Grounded on
// original_source/src/domain/helpers/kafka.rs's publish_with_events.
package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"

	"cartflow/pkg/eventlog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher publishes transactionally, one client per topic (the
// transactional.id in the Rust original), matching kafka.rs's per-call
// create_transactional_producer.
type Publisher struct {
	brokers string
}

// New returns a Publisher against the given bootstrap servers.
func New(bootstrapServers string) *Publisher {
	return &Publisher{brokers: bootstrapServers}
}

// PublishWithEvents sends message on topic and, only if the send
// succeeds, appends successEvent to store without validation, committing
// the broker transaction iff both succeeded (spec §4.8). On any failure
// before commit the transaction is aborted and the error is returned so
// the caller (the queue worker) can retry the owning task.
func (p *Publisher) PublishWithEvents(ctx context.Context, store eventlog.EventStore, topic string, message any, successEvent eventlog.InputEvent) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("outbound: marshal payload: %w", err)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(p.brokers),
		kgo.TransactionalID(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return fmt.Errorf("outbound: create producer: %w", err)
	}
	defer client.Close()

	if err := client.BeginTransaction(); err != nil {
		return fmt.Errorf("outbound: begin transaction: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(hashKey(payload)),
		Value: payload,
	}

	sendErr := func() error {
		results := client.ProduceSync(ctx, record)
		if err := results.FirstErr(); err != nil {
			return err
		}
		if _, err := store.AppendWithoutValidation(ctx, []eventlog.InputEvent{successEvent}); err != nil {
			return err
		}
		return nil
	}()

	if sendErr != nil {
		_ = client.AbortBufferedRecords(ctx)
		_ = client.EndTransaction(ctx, kgo.TryAbort)
		return fmt.Errorf("outbound: publish %s: %w", topic, sendErr)
	}
	if err := client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("outbound: commit transaction: %w", err)
	}
	return nil
}

// hashKey is the Go equivalent of calculate_hash: a 64-bit hash of the
// payload rendered as a decimal string (spec §6's outbound key column).
func hashKey(payload []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return strconv.FormatUint(h.Sum64(), 10)
}
