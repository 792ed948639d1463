package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridDispatcher delivers email through the SendGrid API.
type SendGridDispatcher struct {
	client  *sendgrid.Client
	cfg     Config
	sandbox bool
}

// NewSendGridDispatcher creates a dispatcher on the configured API key.
func NewSendGridDispatcher(cfg Config) *SendGridDispatcher {
	return &SendGridDispatcher{
		client:  sendgrid.NewSendClient(cfg.SendGridAPIKey),
		cfg:     cfg,
		sandbox: cfg.SandboxMode,
	}
}

func (d *SendGridDispatcher) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(message.ToAddress) == "" {
		return fmt.Errorf("recipient address is required")
	}

	from := mail.NewEmail(d.cfg.FromName, d.cfg.FromAddress)
	to := mail.NewEmail("", message.ToAddress)
	sgMessage := mail.NewSingleEmail(from, message.Subject, to, message.TextBody, message.HTMLBody)
	if d.sandbox {
		settings := mail.NewMailSettings()
		settings.SetSandboxMode(mail.NewSetting(true))
		sgMessage.MailSettings = settings
	}

	response, err := d.client.SendWithContext(ctx, sgMessage)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("send email: provider returned status %d", response.StatusCode)
	}
	return nil
}

var _ Dispatcher = (*SendGridDispatcher)(nil)
