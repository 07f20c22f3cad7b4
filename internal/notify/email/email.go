// Package email sends escalations to the IT team over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/linnemanlabs/packassist/internal/triage"
)

const dialTimeout = 15 * time.Second

// Config holds the SMTP relay and envelope settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// Insecure allows plaintext when the relay does not offer STARTTLS.
	Insecure bool
}

func (c Config) validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("smtp host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp port %d out of range", c.Port))
	}
	if c.From == "" {
		errs = append(errs, errors.New("sender address is required"))
	}
	if len(c.To) == 0 {
		errs = append(errs, errors.New("at least one recipient is required"))
	}
	return errors.Join(errs...)
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

// Notifier mails each escalation as a plain-text message.
type Notifier struct {
	from   string
	to     []string
	client sender
}

// New validates cfg and prepares an SMTP client. No connection is made
// until the first escalation.
func New(cfg Config) (*Notifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("email: %w", err)
	}

	policy := mail.TLSMandatory
	if cfg.Insecure {
		policy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(policy),
		mail.WithTimeout(dialTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email: new client: %w", err)
	}
	return &Notifier{from: cfg.From, to: cfg.To, client: client}, nil
}

// SendEscalation mails e.Subject and e.Body to the configured recipients.
func (n *Notifier) SendEscalation(ctx context.Context, e *triage.Escalation) error {
	msg, err := n.message(e)
	if err != nil {
		return err
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: send %q: %w", e.Subject, err)
	}
	return nil
}

func (n *Notifier) message(e *triage.Escalation) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("email: from %q: %w", n.from, err)
	}
	if err := msg.To(n.to...); err != nil {
		return nil, fmt.Errorf("email: to: %w", err)
	}
	msg.Subject(e.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, e.Body)
	return msg, nil
}
