package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sender delivers a plain-text message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
	// Timeout bounds the whole exchange when ctx has no earlier deadline.
	Timeout time.Duration
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("mail: header injection in recipient or subject")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.Host, s.Port))
	if err != nil {
		return fmt.Errorf("mail: dial: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	// unblock a stalled exchange when ctx is cancelled early
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer c.Close()
	if err := s.deliver(c, to, subject, body); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *SMTPSender) deliver(c *smtp.Client, to, subject, body string) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if s.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.User, s.Password, s.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}
	if err := c.Mail(s.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	msg := "From: " + s.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		body
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{ Log *zap.Logger }

func (s LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Log.Info("mail.logged", zap.String("to", to), zap.String("subject", subject), zap.Int("bytes", len(body)))
	return nil
}

type Message struct {
	To, Subject, Body string
}

// Outbox keeps sent messages in memory. Err, when set, fails every send.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (o *Outbox) Send(_ context.Context, to, subject, body string) error {
	if o.Err != nil {
		return o.Err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (o *Outbox) Sent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.sent...)
}
