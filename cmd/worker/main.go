package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/config"
	"github.com/imrishuroy/go-storefront/internal/logging"
	"github.com/imrishuroy/go-storefront/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSOptions())
	if err != nil {
		log.WithError(err).Fatal("failed to init aws clients")
	}

	mailer, sms := notify.NewSenders(clients.SES, cfg.SenderEmail, notify.SMSConfig{
		Username: cfg.SMSUsername,
		APIKey:   cfg.SMSAPIKey,
		URL:      cfg.SMSURL,
		SenderID: cfg.SMSSenderID,
	})
	processor := NewProcessor(notify.NewDirectDispatcher(mailer, sms))

	// If RUN_LOCAL is set, simulate a single SQS event for local testing.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"kind":"status_update","order_id":"local-order-1","to":"customer@example.com","subject":"Order local-order-1 is now Shipped","body":"Your order is on its way."}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{
					MessageId: "local-1",
					Body:      testBody,
				},
			},
		}
		resp, err := processor.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.WithError(err).WithField("failures", len(resp.BatchItemFailures)).Fatal("local handler error")
		}
		return
	}

	lambda.Start(processor.Handle)
}
