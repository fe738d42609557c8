package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

// EmailSender is the transport contract the delivery fan-out depends on.
// Sends are best-effort: the caller decides what a failure means.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type ResendConfig struct {
	APIKey string
	APIURL string
	From   string
}

func NewResendConfig() *ResendConfig {
	apiKey := os.Getenv("RESEND_API_KEY")
	apiURL := os.Getenv("RESEND_API_URL")
	fromEmail := os.Getenv("FROM_EMAIL")
	if apiKey == "" || apiURL == "" || fromEmail == "" {
		log.Fatal("Missing Resend environment variables")
	}
	return &ResendConfig{
		APIKey: apiKey,
		APIURL: apiURL,
		From:   fromEmail,
	}
}

type EmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html"`
}

// ResendSender sends through the Resend HTTP API.
type ResendSender struct {
	Config *ResendConfig
	client *http.Client
	logger *zap.Logger
}

func NewResendSender(config *ResendConfig, logger *zap.Logger) *ResendSender {
	return &ResendSender{
		Config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (e *ResendSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload := EmailRequest{
		From:    e.Config.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+e.Config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorResponse map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errorResponse)
		return fmt.Errorf("failed to send email, status code: %d, error: %v", resp.StatusCode, errorResponse)
	}

	e.logger.Debug("email sent", zap.String("to", to))
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPConfig() *SMTPConfig {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	username := os.Getenv("SMTP_USER")
	password := os.Getenv("SMTP_PASS")
	from := os.Getenv("FROM_EMAIL")
	if host == "" || portStr == "" || from == "" {
		log.Fatal("Missing SMTP environment variables")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatal("SMTP_PORT must be a number")
	}
	return &SMTPConfig{Host: host, Port: port, Username: username, Password: password, From: from}
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
	logger *zap.Logger
}

func NewSMTPSender(config *SMTPConfig, logger *zap.Logger) *SMTPSender {
	dialer := mail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	dialer.Timeout = 10 * time.Second
	return &SMTPSender{dialer: dialer, from: config.From, logger: logger}
}

func (e *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := mail.NewMessage()
	message.SetHeader("From", e.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/html", htmlBody)

	if err := e.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Debug("email sent", zap.String("to", to))
	return nil
}

// NewEmailSender picks the transport from EMAIL_TRANSPORT ("smtp" or "resend",
// defaulting to resend, the hosted API).
func NewEmailSender(lc fx.Lifecycle, logger *zap.Logger) EmailSender {
	var sender EmailSender
	switch os.Getenv("EMAIL_TRANSPORT") {
	case "smtp":
		sender = NewSMTPSender(NewSMTPConfig(), logger)
	default:
		sender = NewResendSender(NewResendConfig(), logger)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("email service initialized")
			return nil
		},
	})
	return sender
}
