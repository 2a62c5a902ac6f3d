package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/gomail.v2"
)

// Sender delivers a rendered message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewTextSender picks the text channel provider by name.
func NewTextSender(kind, url, token string, log *slog.Logger) Sender {
	switch kind {
	case "noop":
		return NoopSender{}
	case "webhook":
		if url == "" {
			return LogSender{Logger: log}
		}
		return &WebhookSender{URL: url, Token: token, Client: &http.Client{Timeout: 5 * time.Second}}
	default:
		return LogSender{Logger: log}
	}
}

type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info("notification", "channel", msg.Channel, "kind", msg.Kind, "recipient", msg.Recipient, "body", msg.Body)
	return nil
}

type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error {
	return nil
}

var ErrRejected = errors.New("provider rejected request")

// WebhookSender posts the message as JSON to a messaging gateway.
type WebhookSender struct {
	URL    string
	Token  string
	Client *http.Client
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	payload := map[string]string{
		"channel":   string(msg.Channel),
		"recipient": msg.Recipient,
		"message":   msg.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
