package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Email is what a Mailer sends.
type Email struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Mailer sends e-mail.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SESMailer sends e-mail through Amazon SES as a raw MIME message, which is
// what allows attachments.
type SESMailer struct {
	client aws.SESAPI
	sender string
}

func NewSESMailer(client aws.SESAPI, sender string) *SESMailer {
	return &SESMailer{client: client, sender: sender}
}

func (m *SESMailer) Send(ctx context.Context, e Email) error {
	if m.sender == "" {
		return errors.New("sender email address is not configured")
	}
	if e.To == "" {
		return errors.New("recipient email address is empty")
	}

	raw, err := buildMIME(m.sender, e)
	if err != nil {
		return errors.Wrap(err, "build email")
	}
	out, err := m.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(m.sender),
		Destinations: []string{e.To},
		RawMessage:   &sestypes.RawMessage{Data: raw},
	})
	if err != nil {
		return errors.Wrapf(err, "send email to %s", e.To)
	}
	entry := log.WithFields(log.Fields{"to": e.To, "subject": e.Subject})
	if out.MessageId != nil {
		entry = entry.WithField("messageId", *out.MessageId)
	}
	entry.Info("email sent")
	return nil
}

// buildMIME renders a text/plain message, wrapped in multipart/mixed when it
// carries an attachment.
func buildMIME(from string, e Email) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", e.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if e.Attachment == nil {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
		buf.WriteString(e.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(e.Body)); err != nil {
		return nil, err
	}

	a := e.Attachment
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("%s; name=%q", a.ContentType, a.Filename)},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(wrapBase64(a.Data))); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes data in 76-character lines.
func wrapBase64(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	return b.String()
}

// LogMailer logs e-mails instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, e Email) error {
	fields := log.Fields{"to": e.To, "subject": e.Subject}
	if e.Attachment != nil {
		fields["attachment"] = e.Attachment.Filename
	}
	log.WithFields(fields).Info("email (not sent)")
	return nil
}
