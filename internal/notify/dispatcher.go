package notify

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Dispatcher hands a message to a delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// QueueDispatcher publishes messages to SQS for cmd/worker to deliver.
type QueueDispatcher struct {
	publisher *aws.Publisher
}

func NewQueueDispatcher(publisher *aws.Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	attrs := map[string]string{
		"kind":     msg.Kind,
		"order_id": msg.OrderID,
	}
	if err := d.publisher.PublishJSON(ctx, msg, attrs); err != nil {
		return errors.Wrapf(err, "enqueue %s notification for order %s", msg.Kind, msg.OrderID)
	}
	return nil
}

// DirectDispatcher delivers messages inline: e-mail first, then SMS when the
// message has a phone number and SMS text. Both channels are attempted; the
// first failure is returned.
type DirectDispatcher struct {
	mailer Mailer
	sms    SMSSender
}

func NewDirectDispatcher(mailer Mailer, sms SMSSender) *DirectDispatcher {
	return &DirectDispatcher{mailer: mailer, sms: sms}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, msg Message) error {
	var first error
	if msg.To != "" {
		if err := d.mailer.Send(ctx, Email{
			To:         msg.To,
			Subject:    msg.Subject,
			Body:       msg.Body,
			Attachment: msg.Attachment,
		}); err != nil {
			first = errors.Wrapf(err, "email order %s", msg.OrderID)
		}
	}
	if d.sms != nil && msg.Phone != "" && msg.SMS != "" {
		if err := d.sms.SendSMS(ctx, msg.Phone, msg.SMS); err != nil && first == nil {
			first = errors.Wrapf(err, "sms order %s", msg.OrderID)
		}
	}
	return first
}

// LogDispatcher only logs messages. It is the default when no queue or
// sender is configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, msg Message) error {
	fields := log.Fields{
		"kind":    msg.Kind,
		"orderId": msg.OrderID,
		"to":      msg.To,
		"subject": msg.Subject,
	}
	if msg.Attachment != nil {
		fields["attachment"] = msg.Attachment.Filename
		fields["attachmentBytes"] = len(msg.Attachment.Data)
	}
	if msg.SMS != "" {
		fields["sms"] = msg.SMS
	}
	log.WithFields(fields).Info("notification")
	return nil
}
