package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

// ErrDisabled is returned when no SMTP host is configured.
var ErrDisabled = errors.New("mailer is not configured")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Message is a single plain-text mail with an optional inline attachment.
type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

type smtpSender struct {
	cfg    Config
	dialer *gomail.Dialer
}

// New returns a Sender backed by SMTP, or a sender that always fails with
// ErrDisabled when no host is set.
func New(cfg Config) Sender {
	if cfg.Host == "" {
		return disabled{}
	}
	return &smtpSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *smtpSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := Build(s.cfg.From, msg)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Build assembles the gomail message.
func Build(from string, msg *Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if a := msg.Attachment; a != nil {
		data := a.Data
		m.Attach(a.Name,
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}
	return m
}

type disabled struct{}

func (disabled) Send(context.Context, *Message) error {
	return ErrDisabled
}
