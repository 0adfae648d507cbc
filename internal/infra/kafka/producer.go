package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/finvora/invoicing-auth/internal/infra/config"
)

// Producer wraps a sarama async producer. Mail dispatch is fire-and-forget,
// so successes are not reported back; failed deliveries surface only in
// the log stream via the error drain.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	done     chan struct{}
}

// NewProducer connects to the brokers and starts the error drain.
func NewProducer(cfg config.KafkaSettings, log *zap.Logger) (*Producer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0

	// Local-leader ack keeps latency low; a lost mail event is tolerable
	// because every token flow can be re-requested by the user.
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 250 * time.Millisecond
	sc.Producer.Flush.Messages = 64
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   log,
		cfg:      cfg,
		done:     make(chan struct{}),
	}

	go p.drainErrors()

	log.Info("kafka producer ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return p, nil
}

// drainErrors keeps the Errors channel from filling up and logs every
// failed delivery with its topic.
func (p *Producer) drainErrors() {
	for {
		select {
		case perr := <-p.producer.Errors():
			if perr == nil {
				continue
			}
			p.logger.Error("kafka delivery failed",
				zap.Error(perr.Err),
				zap.String("topic", perr.Msg.Topic),
				zap.Int32("partition", perr.Msg.Partition),
			)
		case <-p.done:
			return
		}
	}
}

// Producer exposes the underlying sarama producer for the mailer.
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// Close stops the drain and flushes pending messages.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	close(p.done)

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}

	return nil
}

// TopicName prefixes the event type with the configured namespace, leaving
// already-prefixed names untouched.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return prefix + eventType
}
