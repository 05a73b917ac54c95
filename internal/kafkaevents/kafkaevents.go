// Package kafkaevents publishes LiveAlert events onto a Kafka topic for
// downstream consumers outside this process (dashboards, other tenants'
// pipelines) that can't hold an in-process alerthub subscription.
package kafkaevents

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
)

// syncProducer is the slice of sarama.SyncProducer this package actually
// calls, kept narrow so tests can fake it without tracking sarama's full
// (and transaction-heavy) interface.
type syncProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// Producer publishes LiveAlert events to a Kafka topic. It satisfies the
// same single-method shape as alerthub.Hub, so cmd/ssa-server can wire
// either or both as a conjunction.AlertPublisher.
type Producer struct {
	cfg      Config
	logger   *slog.Logger
	producer syncProducer
}

// New connects a synchronous producer against cfg.Brokers. It returns an
// error when no brokers are configured or the producer cannot be created;
// cfg.Enabled is not consulted here, so callers check it themselves before
// constructing one.
func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafkaevents: no brokers configured")
	}

	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_1_0_0
	scfg.Producer.RequiredAcks = sarama.WaitForLocal
	scfg.Producer.Return.Successes = true
	scfg.Producer.Retry.Max = 5

	sp, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, fmt.Errorf("create sync producer: %w", err)
	}

	logger.Info("kafka alert producer starting", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &Producer{cfg: cfg, logger: logger, producer: sp}, nil
}

// Publish JSON-encodes alert and sends it to the configured topic, keyed by
// tenant so a downstream consumer group can partition alerts per tenant.
// Errors are logged and counted, never returned — Publish is meant to be
// called from the same fire-and-forget call sites that call alerthub.Hub.Publish.
func (p *Producer) Publish(alert model.LiveAlert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		observability.ObserveKafkaEventPublish(err)
		p.logger.Error("failed to encode alert for kafka", "alert_id", alert.ID, "err", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.cfg.Topic,
		Key:   sarama.StringEncoder(alert.TenantID),
		Value: sarama.ByteEncoder(payload),
	}

	_, _, err = p.producer.SendMessage(msg)
	observability.ObserveKafkaEventPublish(err)
	if err != nil {
		p.logger.Error("failed to publish alert to kafka", "alert_id", alert.ID, "topic", p.cfg.Topic, "err", err)
		return
	}
	p.logger.Debug("published alert to kafka", "alert_id", alert.ID, "topic", p.cfg.Topic)
}

// Close releases the underlying producer's connections.
func (p *Producer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
