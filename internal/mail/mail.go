// Package mail delivers the portal's two transactional emails: the
// password-reset link and the filing-completed notice. When SMTP is not
// configured the mailer degrades to a logged skip so the flows that trigger
// email keep working in dev.
package mail

import (
	"context"
	"fmt"

	"log/slog"

	gomail "github.com/wneessen/go-mail"
	"github.com/zonefree41/getfiletax/internal/metrics"
)

type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type SMTPSender struct {
	client *gomail.Client
	from   string
}

func NewSMTPSender(host string, port int, user, password, from string) (*SMTPSender, error) {
	client, err := gomail.NewClient(host,
		gomail.WithPort(port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(user),
		gomail.WithPassword(password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: from}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Mailer renders and sends the portal emails. A nil sender means SMTP is not
// configured; sends are skipped and logged, never errors.
type Mailer struct {
	Sender  Sender
	BaseURL string
	Logger  *slog.Logger
}

func NewMailer(sender Sender, baseURL string, logger *slog.Logger) *Mailer {
	return &Mailer{Sender: sender, BaseURL: baseURL, Logger: logger}
}

func (m *Mailer) SendResetLink(ctx context.Context, to, name, token string) error {
	return m.send(ctx, "reset", to, "Reset your Tax Expert password", resetEmailHTML(name, m.BaseURL, token))
}

func (m *Mailer) SendCompletionNotice(ctx context.Context, to, name string) error {
	return m.send(ctx, "completion", to, "Your tax return is completed", completionEmailHTML(name, m.BaseURL))
}

func (m *Mailer) send(ctx context.Context, kind, to, subject, html string) error {
	if m.Sender == nil {
		m.Logger.Warn("smtp not configured, email skipped", "kind", kind, "to", to)
		metrics.EmailCount.WithLabelValues(kind, "skipped").Inc()
		return nil
	}

	if err := m.Sender.Send(ctx, to, subject, html); err != nil {
		metrics.EmailCount.WithLabelValues(kind, "failed").Inc()
		return err
	}
	metrics.EmailCount.WithLabelValues(kind, "sent").Inc()
	return nil
}
