// Package reward hands milestone events to the external reward pipeline.
// Dispatch is fire-and-forget: settlement never waits on it and a broker
// outage never fails a match.
package reward

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/domain"
)

// Dispatcher accepts "player reached milestone N" events.
type Dispatcher interface {
	Dispatch(event domain.RewardEvent)
	Close() error
}

// KafkaDispatcher publishes reward events to a Kafka topic through an
// async producer. The external collaborators (NFT mint, cross-chain
// send) consume the topic on their side.
type KafkaDispatcher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	done     chan struct{}
}

// NewKafkaDispatcher connects the async producer.
func NewKafkaDispatcher(cfg *config.KafkaConfig, logger *slog.Logger) (*KafkaDispatcher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating reward producer: %w", err)
	}

	d := &KafkaDispatcher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
		done:     make(chan struct{}),
	}

	// Delivery failures are operational signal only; the events can be
	// replayed from the matches table.
	go func() {
		defer close(d.done)
		for err := range producer.Errors() {
			d.logger.Error("reward event delivery failed", "error", err.Err, "topic", err.Msg.Topic)
		}
	}()

	return d, nil
}

// Dispatch queues one reward event. Never blocks the caller beyond the
// producer's in-memory channel.
func (d *KafkaDispatcher) Dispatch(event domain.RewardEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal reward event", "error", err, "user_id", event.UserID)
		return
	}

	d.producer.Input() <- &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(payload),
	}

	d.logger.Info("reward event dispatched",
		"user_id", event.UserID,
		"milestone", event.Milestone,
		"match_id", event.MatchID,
	)
}

// Close flushes and shuts down the producer.
func (d *KafkaDispatcher) Close() error {
	if err := d.producer.Close(); err != nil {
		return fmt.Errorf("closing reward producer: %w", err)
	}
	<-d.done
	return nil
}

// Nop is a dispatcher that only logs. Used when Kafka is disabled.
type Nop struct {
	Logger *slog.Logger
}

// Dispatch logs the event and drops it.
func (n Nop) Dispatch(event domain.RewardEvent) {
	if n.Logger != nil {
		n.Logger.Info("reward event (dispatch disabled)",
			"user_id", event.UserID,
			"milestone", event.Milestone,
		)
	}
}

// Close is a no-op.
func (n Nop) Close() error { return nil }
