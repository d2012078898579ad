package mail

import (
	"context"
	"fmt"

	domainMail "license_notifier/internal/domain/mail"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogSender is the dry-run transport used when no SMTP relay is configured. It logs
// each message and reports it as accepted.
type LogSender struct {
	logger *logrus.Entry
}

func NewLogSender(logger *logrus.Entry) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg domainMail.Message) (*domainMail.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domainMail.ErrDelivery, err)
	}
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("%w: no recipients", domainMail.ErrDelivery)
	}
	id := fmt.Sprintf("<%s@dry-run>", uuid.NewString())
	s.logger.WithFields(logrus.Fields{
		"message_id": id,
		"to":         msg.To,
		"subject":    msg.Subject,
	}).Info("DRY RUN: e-mail not sent (SMTP not configured)")
	return &domainMail.Receipt{MessageID: id, Accepted: append([]string(nil), msg.To...)}, nil
}
