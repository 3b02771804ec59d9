package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/pkg/config"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// Message is a single outbound email.
type Message struct {
	To          mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

// Mailer delivers email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the SendGrid mailer when an API key is configured and the
// log-only mailer otherwise.
func New(appName string, cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.SendgridAPIKey == "" {
		return NewLogMailer(logger)
	}
	return NewSendgridMailer(appName, cfg, logger)
}

// SendgridMailer sends messages through the SendGrid v3 API.
type SendgridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

var _ Mailer = (*SendgridMailer)(nil)

// NewSendgridMailer constructs a SendGrid backed mailer.
func NewSendgridMailer(appName string, cfg config.MailConfig, logger *zap.Logger) *SendgridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := ""
	if appName != "" {
		prefix = "[" + appName + "] "
	}
	return &SendgridMailer{
		key:        cfg.SendgridAPIKey,
		host:       defaultHost,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: prefix,
		logger:     logger,
	}
}

// WithHost overrides the API host; used against test servers.
func (m *SendgridMailer) WithHost(host string) *SendgridMailer {
	m.host = host
	return m
}

// Send delivers msg synchronously. Callers run it off the request path.
func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	if msg.To.Address == "" {
		return fmt.Errorf("sendgrid: recipient address missing")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, endpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	m.logger.Debug("email sent", zap.String("to", msg.To.Address), zap.Int("status", res.StatusCode))
	return nil
}

func (m *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	out := sgmail.NewV3Mail()
	out.SetFrom(m.from)
	out.AddPersonalizations(p)
	if msg.TextContent != "" {
		out.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		out.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return out
}

// LogMailer writes messages to the logger instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer constructs a log-only mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("email suppressed (no provider configured)",
		zap.String("to", msg.To.String()),
		zap.String("subject", msg.Subject),
	)
	return nil
}
