// Package mailer renders and sends customer mail about order progress.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"sales-order-service/config"
	"sales-order-service/internal/models"
	"sales-order-service/internal/util"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Signature closes every customer mail
const Signature = "The Promark Tech Solutions Crew"

// Sender delivers composed messages
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends customer notifications over SMTP
type Mailer struct {
	sender  Sender
	from    string
	enabled bool
	logger  *zap.Logger
}

// New creates a mailer dialing the configured SMTP relay per send
func New(cfg config.MailConfig) *Mailer {
	return NewWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, cfg.Enabled)
}

// NewWithSender creates a mailer over an arbitrary sender
func NewWithSender(sender Sender, from string, enabled bool) *Mailer {
	return &Mailer{
		sender:  sender,
		from:    from,
		enabled: enabled,
		logger:  util.GetLogger(),
	}
}

// Message is a rendered mail
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Render builds the mail for an event
func Render(ev *models.MailRequestedEvent) (*Message, error) {
	tmpl, ok := templates[ev.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown mail kind %q", ev.Kind)
	}

	data := newView(ev)
	var html bytes.Buffer
	if err := tmpl.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render %s mail: %w", ev.Kind, err)
	}
	return &Message{
		To:      ev.Recipient,
		Subject: fmt.Sprintf(tmpl.subject, ev.OrderID),
		HTML:    html.String(),
		Text:    plainText(data, tmpl.intro),
	}, nil
}

// Send renders and delivers the mail. Disabled mailers only log.
func (m *Mailer) Send(ctx context.Context, ev *models.MailRequestedEvent) error {
	_, span := util.StartSpan(ctx, "Mailer.Send")
	defer span.End()

	if strings.TrimSpace(ev.Recipient) == "" {
		return fmt.Errorf("order %s has no customer email", ev.OrderID)
	}
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	if !m.enabled {
		m.logger.Debug("Mail disabled, skipping",
			zap.String("kind", string(ev.Kind)),
			zap.String("order_id", ev.OrderID))
		return nil
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	gm.AddAlternative("text/html", msg.HTML)

	if err := m.sender.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send %s mail for %s: %w", ev.Kind, ev.OrderID, err)
	}
	m.logger.Info("Mail sent",
		zap.String("kind", string(ev.Kind)),
		zap.String("order_id", ev.OrderID))
	return nil
}
