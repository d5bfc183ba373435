// Package mail delivers books to the device's email address over SMTP.
package mail

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/Soumil-07/bkmgr/internal/config"
	"github.com/Soumil-07/bkmgr/internal/delivery"
	"github.com/Soumil-07/bkmgr/internal/logger"
)

const (
	// ConvertSubject asks the device's mail service to convert the attachment
	ConvertSubject = "convert"
	body           = "bkmgr: Syncing e-book to Kindle device."
	// DefaultTimeout bounds the SMTP dialog
	DefaultTimeout = 2 * time.Minute
)

// Sender sends books as email attachments
type Sender struct {
	timeout time.Duration
	log     *logger.Logger
	send    func(ctx context.Context, c *gomail.Client, msgs ...*gomail.Msg) error
}

// NewSender creates a Sender
func NewSender(log *logger.Logger) *Sender {
	if log == nil {
		log = logger.Get()
	}
	return &Sender{
		timeout: DefaultTimeout,
		log:     log.With(map[string]interface{}{"component": "mail"}),
		send: func(ctx context.Context, c *gomail.Client, msgs ...*gomail.Msg) error {
			return c.DialAndSendWithContext(ctx, msgs...)
		},
	}
}

// Send mails req.Path to the configured device address
func (s *Sender) Send(ctx context.Context, req delivery.Request) error {
	msg, err := buildMessage(req)
	if err != nil {
		return err
	}
	client, err := newClient(req.Email, s.timeout)
	if err != nil {
		return err
	}

	s.log.Debug("Dialing SMTP server", map[string]interface{}{
		"host": req.Email.SMTP,
		"port": req.Email.Port,
	})
	if err := s.send(ctx, client, msg); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", req.Email.SMTP, err)
	}

	s.log.Info("Book sent", map[string]interface{}{
		"file":    filepath.Base(req.Path),
		"to":      req.Email.To,
		"convert": req.Convert,
	})
	return nil
}

func buildMessage(req delivery.Request) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(req.Email.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(req.Email.To); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}

	subject := ""
	if req.Convert {
		subject = ConvertSubject
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextPlain, body)
	m.AttachFile(req.Path, gomail.WithFileName(filepath.Base(req.Path)))
	return m, nil
}

// newClient configures STARTTLS with PLAIN auth. The username falls back to
// the from address.
func newClient(cfg config.EmailConfig, timeout time.Duration) (*gomail.Client, error) {
	username := cfg.Username
	if username == "" {
		username = cfg.From
	}

	c, err := gomail.NewClient(cfg.SMTP,
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SMTP client: %w", err)
	}
	return c, nil
}
