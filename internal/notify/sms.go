package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SMSSender sends a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// SMSConfig holds Africa's Talking credentials.
type SMSConfig struct {
	Username string
	APIKey   string
	URL      string
	SenderID string
}

// smsResponse is the Africa's Talking messaging response.
type smsResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Cost       string `json:"cost"`
			Status     string `json:"status"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// AfricasTalkingSender posts messages to the Africa's Talking SMS API.
type AfricasTalkingSender struct {
	cfg    SMSConfig
	client *http.Client
}

func NewAfricasTalkingSender(cfg SMSConfig) *AfricasTalkingSender {
	return &AfricasTalkingSender{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *AfricasTalkingSender) SendSMS(ctx context.Context, to, message string) error {
	data := url.Values{}
	data.Set("username", s.cfg.Username)
	data.Set("to", to)
	data.Set("message", message)
	if s.cfg.SenderID != "" {
		data.Set("from", s.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(data.Encode()))
	if err != nil {
		return errors.Wrap(err, "create SMS request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "SMS send failed")
	}
	defer resp.Body.Close()

	var out smsResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		entry := log.WithFields(log.Fields{"to": to, "status": resp.StatusCode})
		if decodeErr == nil {
			entry = entry.WithField("message", out.SMSMessageData.Message)
		}
		entry.Warn("SMS API returned error")
		return errors.Errorf("SMS API returned non-success status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return errors.Wrap(decodeErr, "decode SMS response")
	}
	if len(out.SMSMessageData.Recipients) == 0 {
		return errors.Errorf("SMS not accepted for any recipient: %s", out.SMSMessageData.Message)
	}
	for _, r := range out.SMSMessageData.Recipients {
		if !recipientAccepted(r.StatusCode) {
			return errors.Errorf("SMS to %s rejected: %s (%d)", r.Number, r.Status, r.StatusCode)
		}
	}

	log.WithFields(log.Fields{"to": to, "message": out.SMSMessageData.Message}).Info("SMS sent")
	return nil
}

// recipientAccepted reports whether a per-recipient status code means the
// message was processed, sent or queued.
func recipientAccepted(code int) bool {
	return code >= 100 && code <= 102
}

// LogSMSSender logs messages instead of sending them.
type LogSMSSender struct{}

func (LogSMSSender) SendSMS(ctx context.Context, to, message string) error {
	log.WithFields(log.Fields{"to": to, "sms": message}).Info("sms (not sent)")
	return nil
}
