package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/infra/config"
	"github.com/finvora/invoicing-auth/internal/infra/kafka"
	"github.com/finvora/invoicing-auth/internal/infra/logger"
)

const mailRequestedTopic = "mail.requested"

// KafkaMailer publishes mail requests to Kafka for the delivery worker to
// render and send. Publishing is asynchronous; a dropped message is logged
// and never fails the request that triggered it.
type KafkaMailer struct {
	producer *kafka.Producer
	cfg      config.MailSettings
	logger   *zap.Logger
}

// NewKafkaMailer constructs a Kafka-backed mailer.
func NewKafkaMailer(producer *kafka.Producer, cfg config.MailSettings, log *zap.Logger) *KafkaMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaMailer{producer: producer, cfg: cfg, logger: log}
}

type mailEnvelope struct {
	MessageID string            `json:"message_id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	Data      map[string]string `json:"data,omitempty"`
	QueuedAt  time.Time         `json:"queued_at"`
}

// Send enqueues the mail on the mail.requested topic.
func (m *KafkaMailer) Send(ctx context.Context, mail port.Mail) error {
	envelope := mailEnvelope{
		MessageID: uuid.NewString(),
		From:      m.cfg.FromAddress,
		To:        mail.To,
		Subject:   mail.Subject,
		Template:  mail.Template,
		Data:      mail.Data,
		QueuedAt:  time.Now().UTC(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal mail envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: m.producer.TopicName(mailRequestedTopic),
		Key:   sarama.StringEncoder(mail.To),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case m.producer.Producer().Input() <- message:
		m.logger.Debug("mail queued",
			zap.String("template", mail.Template),
			zap.String("to", logger.MaskEmail(mail.To)),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.Mailer = (*KafkaMailer)(nil)
