package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"notify-dispatch/internal/common/config"
	"notify-dispatch/internal/common/logger"
)

// SMTPDeliverer sends messages through a plain SMTP or STARTTLS connection.
type SMTPDeliverer struct {
	config config.SMTPConfig
	logger logger.Logger
}

// NewSMTPDeliverer creates an SMTP-backed Deliverer.
func NewSMTPDeliverer(cfg config.SMTPConfig, log logger.Logger) *SMTPDeliverer {
	return &SMTPDeliverer{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"provider": "smtp"}),
	}
}

func (d *SMTPDeliverer) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before sending email: %w", err)
	}

	message := buildMessage(msg)
	recipients := expandRecipients(msg)

	addr := fmt.Sprintf("%s:%d", d.config.Host, d.config.Port)

	var auth smtp.Auth
	if d.config.Username != "" && d.config.Password != "" {
		auth = smtp.PlainAuth("", d.config.Username, d.config.Password, d.config.Host)
	}

	if d.config.UseTLS {
		return d.sendWithTLS(addr, auth, msg.From, recipients, []byte(message))
	}

	return smtp.SendMail(addr, auth, msg.From, recipients, []byte(message))
}

// buildMessage assembles the RFC 822 message text with headers.
func buildMessage(msg Message) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))

	if msg.CC != "" {
		builder.WriteString(fmt.Sprintf("Cc: %s\r\n", msg.CC))
	}

	if msg.ReplyTo != "" {
		builder.WriteString(fmt.Sprintf("Reply-To: %s\r\n", msg.ReplyTo))
	}

	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(msg.Body)

	return builder.String()
}

// expandRecipients builds the envelope recipient list from To, CC and BCC.
func expandRecipients(msg Message) []string {
	recipients := []string{msg.To}
	for _, list := range []string{msg.CC, msg.BCC} {
		if list == "" {
			continue
		}
		for _, addr := range strings.Split(list, ",") {
			recipients = append(recipients, strings.TrimSpace(addr))
		}
	}
	return recipients
}

func (d *SMTPDeliverer) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName:         d.config.Host,
		InsecureSkipVerify: false,
	}

	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, addr := range to {
		if err = client.Rcpt(addr); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", addr, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
