package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/spec-kit/mentor-queue/internal/markdown"
)

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Sender delivers a composed message.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel mails ticket announcements to the mentor list.
type EmailChannel struct {
	cfg      EmailConfig
	sender   Sender
	renderer markdown.Service
}

// NewEmailChannel returns nil unless host, sender and recipient are set.
func NewEmailChannel(cfg EmailConfig, renderer markdown.Service) *EmailChannel {
	if cfg.Host == "" || cfg.From == "" || cfg.To == "" {
		return nil
	}
	return &EmailChannel{
		cfg:      cfg,
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		renderer: renderer,
	}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", e.cfg.To)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Body)
	if e.renderer != nil && msg.Markdown != "" {
		if rendered, err := e.renderer.ToHTMLSanitized(msg.Markdown); err == nil {
			m.AddAlternative("text/html", rendered)
		}
	}

	if err := e.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
