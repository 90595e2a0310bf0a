package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/notify"
)

// Processor delivers notifications queued by the API.
type Processor struct {
	dispatcher notify.Dispatcher
}

// NewProcessor returns a Processor delivering through dispatcher, normally a
// notify.DirectDispatcher.
func NewProcessor(dispatcher notify.Dispatcher) *Processor {
	return &Processor{dispatcher: dispatcher}
}

// Handle receives an SQS batch and delivers each message. Failed records are
// reported individually so only they are redelivered; after too many
// attempts SQS moves them to the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.WithError(err).WithField("messageId", rec.MessageId).Error("worker error")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg notify.Message
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	entry := log.WithFields(log.Fields{
		"messageId": rec.MessageId,
		"kind":      msg.Kind,
		"orderId":   msg.OrderID,
	})
	switch msg.Kind {
	case notify.KindStatusUpdate, notify.KindReceipt:
	default:
		// nothing can deliver it; retrying won't help
		entry.Warn("dropping message of unknown kind")
		return nil
	}

	if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("deliver %s for order %s: %w", msg.Kind, msg.OrderID, err)
	}
	entry.Info("notification delivered")
	return nil
}
