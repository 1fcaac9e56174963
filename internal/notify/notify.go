// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package notify delivers one-time verification codes to vault users.
package notify

import (
	"context"
	"fmt"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/logging"
)

// Sender delivers a verification code to an address. Implementations must
// treat the code as sensitive: deliver it, never store or log it.
type Sender interface {
	SendVerificationCode(ctx context.Context, to, code string, expiresAt time.Time) error
}

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers codes over an authenticated SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender validates the relay config and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("notify: smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}, nil
}

// SendVerificationCode sends the code in a short plain-text message.
func (s *SMTPSender) SendVerificationCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("notify: invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("notify: invalid recipient: %w", err)
	}
	msg.Subject("WebNova Vault verification code")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Your vault verification code is: %s\n\nIt expires at %s. If you did not request this code, someone may have your password.\n",
		code, expiresAt.UTC().Format(time.RFC1123)))

	opts := []mail.Option{mail.WithPort(s.cfg.Port)}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("notify: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send to %s: %w", to, err)
	}
	return nil
}

// LogSender announces that a code was issued without revealing it. Used when
// no relay is configured, so local setups still see the flow happen.
type LogSender struct{}

// SendVerificationCode logs the delivery event only.
func (LogSender) SendVerificationCode(_ context.Context, to, _ string, expiresAt time.Time) error {
	logging.Infof("notify: verification code issued for %s (expires %s); no smtp relay configured", to, expiresAt.UTC().Format(time.RFC3339))
	return nil
}
