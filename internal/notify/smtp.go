// Package notify delivers the written report by email.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/report"
)

const (
	defaultPort          = 587
	defaultTimeout       = 30 * time.Second
	defaultSubjectPrefix = "Job Match Report"
)

// Config holds the SMTP settings. The notifier is a no-op unless Enabled.
type Config struct {
	Enabled       bool
	Server        string
	Port          int
	Username      string
	Password      string
	From          string
	To            []string
	SubjectPrefix string
	Timeout       time.Duration
}

// SendFunc delivers one message. It matches smtp.SendMail plus a context.
type SendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTP emails reports.
type SMTP struct {
	cfg    Config
	logger *zap.Logger
	send   SendFunc
}

// NewSMTP validates cfg when enabled and returns a notifier.
func NewSMTP(cfg Config, logger *zap.Logger) (*SMTP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.SubjectPrefix) == "" {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}

	if cfg.Enabled {
		if strings.TrimSpace(cfg.Server) == "" {
			return nil, errors.New("smtp server is required when email is enabled")
		}
		if strings.TrimSpace(cfg.From) == "" {
			return nil, errors.New("from address is required when email is enabled")
		}
		if len(cfg.To) == 0 {
			return nil, errors.New("at least one recipient is required when email is enabled")
		}
	}

	return &SMTP{cfg: cfg, logger: logger, send: sendMail}, nil
}

// WithSendFunc replaces the delivery function.
func (n *SMTP) WithSendFunc(fn SendFunc) *SMTP {
	n.send = fn
	return n
}

func (n *SMTP) Enabled() bool {
	return n != nil && n.cfg.Enabled
}

// Subject is the mail subject for rep.
func (n *SMTP) Subject(rep *report.Report) string {
	return fmt.Sprintf("%s - %s", n.cfg.SubjectPrefix, rep.GeneratedAt.Format("2006-01-02"))
}

// Send emails the report written at path: the Markdown is both the body and
// an attachment named after the file.
func (n *SMTP) Send(ctx context.Context, rep *report.Report, path string) error {
	if !n.Enabled() {
		n.logger.Debug("email notification disabled")
		return nil
	}
	if rep == nil {
		return errors.New("report is nil")
	}

	content := report.Render(rep)
	msg, err := buildMessage(message{
		From:           n.cfg.From,
		To:             n.cfg.To,
		Subject:        n.Subject(rep),
		Date:           rep.GeneratedAt,
		Body:           content,
		AttachmentName: filepath.Base(path),
	})
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Server)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(n.cfg.Server, strconv.Itoa(n.cfg.Port))
	if err := n.send(ctx, addr, auth, n.cfg.From, n.cfg.To, msg); err != nil {
		return fmt.Errorf("send email via %s: %w", addr, err)
	}

	n.logger.Info("email report sent",
		zap.Strings("to", n.cfg.To),
		zap.String("subject", n.Subject(rep)),
	)

	return nil
}

// sendMail is smtp.SendMail with a context-bound connection. STARTTLS is
// used when the server offers it.
func sendMail(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}
