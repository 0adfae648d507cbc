package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/finvora/invoicing-auth/internal/core/port"
	"github.com/finvora/invoicing-auth/internal/infra/logger"
)

// LogMailer writes mail to the log instead of delivering it. Used in
// development and when no Kafka brokers are configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a logging mailer.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{logger: log}
}

// Send logs the mail with the recipient masked.
func (m *LogMailer) Send(_ context.Context, mail port.Mail) error {
	fields := []zap.Field{
		zap.String("to", logger.MaskEmail(mail.To)),
		zap.String("subject", mail.Subject),
		zap.String("template", mail.Template),
	}
	for k, v := range mail.Data {
		fields = append(fields, zap.String("data_"+k, v))
	}
	m.logger.Info("mail dispatch (logging mailer)", fields...)
	return nil
}

var _ port.Mailer = (*LogMailer)(nil)
