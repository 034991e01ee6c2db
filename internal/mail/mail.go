// Package mail delivers login emails.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Login email contents. The key is appended to LoginBodyPrefix.
const (
	LoginSubject    = "Msg in a Bottle: Temporary Password"
	LoginBodyPrefix = "Your temporary password is: "
)

// LoginBody returns the body of the email carrying secretKey.
func LoginBody(secretKey string) string {
	return LoginBodyPrefix + secretKey
}

// Sender sends a plain text email.
type Sender interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// SMTPConfig holds the settings of the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender sends mail through an SMTP server using STARTTLS and plain auth.
type SMTPSender struct {
	cfg  SMTPConfig
	opts []gomail.Option
}

// NewSMTPSender validates cfg and returns a sender for it. No connection is
// made until Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mail host and sender address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	if _, err := gomail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("configuring mail client: %w", err)
	}

	return &SMTPSender{cfg: cfg, opts: opts}, nil
}

// Send delivers one message to all recipients.
func (s *SMTPSender) Send(ctx context.Context, subject, body string, recipients []string) error {
	msg, err := s.newMessage(subject, body, recipients)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}

	return nil
}

func (s *SMTPSender) newMessage(subject, body string, recipients []string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()

	var err error
	if s.cfg.FromName != "" {
		err = msg.FromFormat(s.cfg.FromName, s.cfg.From)
	} else {
		err = msg.From(s.cfg.From)
	}
	if err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return nil, fmt.Errorf("setting recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	return msg, nil
}

// LogSender writes mail to a logger instead of sending it. Development only:
// the log contains the login keys.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender writing to logger, or to slog.Default
// when logger is nil.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, subject, body string, recipients []string) error {
	s.logger.InfoContext(ctx, "mail not sent, logging instead",
		"to", recipients,
		"subject", subject,
		"body", body,
	)
	return nil
}
