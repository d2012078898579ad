// Package mail provides the outbound e-mail transports.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	domainMail "license_notifier/internal/domain/mail"
	"license_notifier/internal/infra/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultDialTimeout = 10 * time.Second

// SMTPSender delivers messages through an SMTP relay, one connection per message.
type SMTPSender struct {
	cfg         config.SMTPConfig
	dialTimeout time.Duration
	logger      *logrus.Entry
}

func NewSMTPSender(cfg config.SMTPConfig, logger *logrus.Entry) *SMTPSender {
	return &SMTPSender{cfg: cfg, dialTimeout: defaultDialTimeout, logger: logger}
}

func (s *SMTPSender) Send(ctx context.Context, msg domainMail.Message) (*domainMail.Receipt, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("%w: no recipients", domainMail.ErrDelivery)
	}

	messageID := s.newMessageID()
	body, err := s.buildMessage(messageID, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build message: %w", domainMail.ErrDelivery, err)
	}

	accepted, err := s.deliver(ctx, msg.To, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainMail.ErrDelivery, err)
	}

	s.logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"to":         strings.Join(accepted, ", "),
	}).Debug("Message accepted by SMTP server")
	return &domainMail.Receipt{MessageID: messageID, Accepted: accepted}, nil
}

func (s *SMTPSender) newMessageID() string {
	domain := "localhost"
	if at := strings.LastIndex(s.cfg.From, "@"); at >= 0 && at < len(s.cfg.From)-1 {
		domain = s.cfg.From[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// formatAddress formats a name/email pair.
func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", name), address)
}

// buildMessage renders a multipart/alternative MIME message with text and HTML parts.
func (s *SMTPSender) buildMessage(messageID string, msg domainMail.Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ key, value string }{
		{"From", formatAddress(s.cfg.FromName, s.cfg.From)},
		{"To", strings.Join(msg.To, ", ")},
		{"Subject", mime.BEncoding.Encode("UTF-8", msg.Subject)},
		{"Message-ID", messageID},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary())},
		{"X-Mailer", "license-notifier"},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
	}
	buf.WriteString("\r\n")

	parts := []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(wrapBase64(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes s and wraps it at 76 characters per line.
func wrapBase64(s string) []byte {
	encoded := base64.StdEncoding.EncodeToString([]byte(s))
	var out bytes.Buffer
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		out.WriteString(encoded[i:end])
		out.WriteString("\r\n")
	}
	return out.Bytes()
}

// deliver runs one SMTP session. The context deadline bounds the whole conversation.
func (s *SMTPSender) deliver(ctx context.Context, to []string, message []byte) ([]string, error) {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	dialer := &net.Dialer{Timeout: s.dialTimeout}

	var conn net.Conn
	var err error
	if s.cfg.UseSSL {
		// Implicit TLS (port 465)
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock a stuck conversation as soon as ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS && !s.cfg.UseSSL {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return nil, fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return nil, fmt.Errorf("failed to set sender: %w", err)
	}

	accepted := make([]string, 0, len(to))
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			s.logger.WithError(err).WithField("to", rcpt).Warn("Recipient rejected by SMTP server")
			continue
		}
		accepted = append(accepted, rcpt)
	}
	if len(accepted) == 0 {
		return nil, fmt.Errorf("all recipients rejected")
	}

	w, err := client.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to open data: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return nil, fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close data: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.logger.WithError(err).Debug("SMTP QUIT failed after the message was accepted")
	}
	return accepted, nil
}
