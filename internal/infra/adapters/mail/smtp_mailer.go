package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"smartqr-backend/internal/config"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/infra/metrics"
)

var _ adapter.Mailer = (*SMTPMailer)(nil)

var ErrMissingRecipient = errors.New("mail: recipient is required")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

var templates = template.Must(template.New("mail").Parse(`
{{define "welcome"}}<html><body><p>Bonjour {{.Name}},</p><p>Bienvenue sur SmartQR. Votre compte est prêt.</p></body></html>{{end}}
{{define "event_join"}}<html><body><p>Bonjour {{.Name}},</p><p>Votre inscription à <b>{{.Title}}</b> est confirmée.</p></body></html>{{end}}
{{define "mission_proposal"}}<html><body><p>Bonjour,</p><p>La proposition de mission <b>{{.Title}}</b> de {{.Name}} a bien été transmise.</p></body></html>{{end}}
`))

// SMTPMailer renders HTML templates and delivers them over SMTP with PLAIN auth.
type SMTPMailer struct {
	addr   string
	host   string
	from   string
	auth   smtp.Auth
	send   sendFunc
	logger *zerolog.Logger
}

func NewSMTPMailer(cfg config.MailConfig, logger *zerolog.Logger) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:   cfg.Host,
		from:   from,
		auth:   auth,
		send:   smtp.SendMail,
		logger: logger,
	}
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.deliver(ctx, "welcome", to, "Bienvenue sur SmartQR", map[string]string{"Name": name})
}

func (m *SMTPMailer) ConfirmEventJoin(ctx context.Context, to, name, eventTitle string) error {
	return m.deliver(ctx, "event_join", to, "Inscription confirmée : "+eventTitle,
		map[string]string{"Name": name, "Title": eventTitle})
}

func (m *SMTPMailer) ConfirmMissionProposal(ctx context.Context, to, company, mission string) error {
	return m.deliver(ctx, "mission_proposal", to, "Proposition de mission envoyée",
		map[string]string{"Name": company, "Title": mission})
}

func (m *SMTPMailer) deliver(ctx context.Context, kind, to, subject string, data any) error {
	if strings.TrimSpace(to) == "" {
		metrics.IncMailDelivery(kind, "dropped")
		return ErrMissingRecipient
	}
	if err := ctx.Err(); err != nil {
		metrics.IncMailDelivery(kind, "dropped")
		return err
	}
	msg, err := buildMessage(m.from, to, subject, kind, data)
	if err != nil {
		metrics.IncMailDelivery(kind, "error")
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		metrics.IncMailDelivery(kind, "error")
		return fmt.Errorf("mail: send %s: %w", kind, err)
	}
	metrics.IncMailDelivery(kind, "sent")
	if m.logger != nil {
		m.logger.Debug().Str("kind", kind).Msg("mail sent")
	}
	return nil
}

func buildMessage(from, to, subject, tmpl string, data any) ([]byte, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return nil, fmt.Errorf("mail: render %s: %w", tmpl, err)
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.Write(body.Bytes())
	msg.WriteString("\r\n")
	return msg.Bytes(), nil
}
