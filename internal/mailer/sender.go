package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the envelope; the body is omitted because it carries the code.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email queued for delivery",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("trigger", msg.Trigger),
		slog.Int("bytes", len(msg.HTMLBody)),
	)
	return nil
}

// SMTPSender delivers HTML email over SMTP with optional PLAIN auth.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender builds an SMTP sender for host:port.
func NewSMTPSender(addr, from, username, password string) (*SMTPSender, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp address: %w", err)
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{addr: addr, from: from, auth: auth, send: smtp.SendMail}, nil
}

// Send delivers msg.
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	if err := s.send(s.addr, s.auth, s.from, []string{msg.To}, buildMIME(s.from, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)
	return []byte(b.String())
}
