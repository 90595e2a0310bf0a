package notify

import (
	"github.com/imrishuroy/go-storefront/internal/aws"
)

// NewSenders picks the delivery channels: SES when a sender address is set,
// Africa's Talking when SMS credentials are set, the log otherwise.
func NewSenders(client aws.SESAPI, senderEmail string, sms SMSConfig) (Mailer, SMSSender) {
	var mailer Mailer = LogMailer{}
	if senderEmail != "" && client != nil {
		mailer = NewSESMailer(client, senderEmail)
	}
	var sender SMSSender = LogSMSSender{}
	if sms.Username != "" && sms.APIKey != "" {
		sender = NewAfricasTalkingSender(sms)
	}
	return mailer, sender
}
