package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// QuotationSelected tells a supplier their quotation won an RFQ
type QuotationSelected struct {
	SupplierName string
	Organization string
	RFQID        int64
	QuotationID  int64
	ProductName  string
	Quantity     string
	Price        string
}

// Mailer sends outgoing email
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SESMailer sends email via AWS SESv2
type SESMailer struct {
	client  *sesv2.Client
	from    string
	timeout time.Duration
}

func NewSESMailer(cfg aws.Config, from string, timeout time.Duration) *SESMailer {
	return &SESMailer{
		client:  sesv2.NewFromConfig(cfg),
		from:    from,
		timeout: timeout,
	}
}

func (m *SESMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{to}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body:    &sestypes.Body{Html: &sestypes.Content{Data: aws.String(htmlBody)}},
			},
		},
	}
	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer only logs. It is used when email delivery is disabled.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.Info("email delivery disabled, message dropped", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// Notifier renders and sends the notifications of the service
type Notifier struct {
	mailer Mailer
}

func NewNotifier(m Mailer) *Notifier {
	return &Notifier{mailer: m}
}

func (n *Notifier) SendQuotationSelected(ctx context.Context, to string, msg QuotationSelected) error {
	if to == "" {
		return fmt.Errorf("supplier has no email address")
	}
	subject := fmt.Sprintf("%s - Your quotation for RFQ #%d was selected", msg.Organization, msg.RFQID)
	return n.mailer.Send(ctx, to, subject, quotationSelectedHTML(msg))
}

func quotationSelectedHTML(msg QuotationSelected) string {
	e := html.EscapeString
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: sans-serif; color: #333;">
  <p>Dear %s,</p>
  <p>Your quotation <strong>#%d</strong> for request <strong>#%d</strong> has been selected by %s.</p>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px 4px 0;">Product</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0;">Quantity</td><td>%s</td></tr>
    <tr><td style="padding: 4px 12px 4px 0;">Price</td><td>%s</td></tr>
  </table>
  <p>We will contact you shortly about delivery.</p>
</body>
</html>`, e(msg.SupplierName), msg.QuotationID, msg.RFQID, e(msg.Organization), e(msg.ProductName), e(msg.Quantity), e(msg.Price))
}
