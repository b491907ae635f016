// Package notify delivers signing links to clients.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"gopkg.in/mail.v2"

	"github.com/signflow/signflow-server/internal/config"
	"github.com/signflow/signflow-server/pkg/logger"
	"github.com/signflow/signflow-server/pkg/metrics"
)

// SigningLink is the content of a signing request email.
type SigningLink struct {
	To         string
	ReplyTo    string
	AgentName  string
	ClientName string
	Title      string
	Link       string
}

// Notifier sends signing links.
type Notifier interface {
	SendSigningLink(ctx context.Context, msg SigningLink) error
}

// BuildLink returns the client-facing signing URL for a document.
func BuildLink(frontendURL, docID, token string) string {
	return fmt.Sprintf("%s/#/sign/%s?token=%s",
		strings.TrimRight(frontendURL, "/"), url.PathEscape(docID), url.QueryEscape(token))
}

var bodyTmpl = template.Must(template.New("signing-link").Parse(`<p>Hello {{.ClientName}},</p>
<p>{{.AgentName}} has sent you the agreement <strong>{{.Title}}</strong> to review and sign.</p>
<p><a href="{{.Link}}">Review and sign the agreement</a></p>
<p>If the button does not work, copy this link into your browser:<br>{{.Link}}</p>
<p>Questions? Reply to this email to reach {{.ReplyTo}}.</p>`))

func render(msg SigningLink) (string, error) {
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SMTPNotifier sends mail through an SMTP relay.
type SMTPNotifier struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	return &SMTPNotifier{dialer: d, from: cfg.From}
}

func (n *SMTPNotifier) SendSigningLink(ctx context.Context, msg SigningLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := render(msg)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	m := mail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", "Please sign: "+msg.Title)
	m.SetBody("text/plain", fmt.Sprintf("Hello %s,\n\n%s has sent you %q to sign:\n%s\n", msg.ClientName, msg.AgentName, msg.Title, msg.Link))
	m.AddAlternative("text/html", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	return nil
}

// LogNotifier only logs the link. It is used when no SMTP relay is
// configured.
type LogNotifier struct{}

func (LogNotifier) SendSigningLink(_ context.Context, msg SigningLink) error {
	logger.Infof("signing link for %s (%s): %s", msg.To, msg.Title, msg.Link)
	metrics.Notifications.WithLabelValues("logged").Inc()
	return nil
}

// New picks the SMTP notifier when a relay host is configured.
func New(cfg config.SMTPConfig) Notifier {
	if cfg.Host == "" {
		logger.Warnf("SMTP_HOST is not set; signing links will only be logged")
		return LogNotifier{}
	}
	return NewSMTPNotifier(cfg)
}
