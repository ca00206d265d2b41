// Package notification sends transactional email through the Brevo API.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const defaultBrevoURL = "https://api.brevo.com"

var ErrMailerDisabled = errors.New("email delivery is not configured")

// Message is one outgoing email
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	HTML    string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// BrevoConfig holds the Brevo credentials and sender identity
type BrevoConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	BaseURL     string
	Timeout     time.Duration
}

// Enabled reports whether every required field is set
func (c BrevoConfig) Enabled() bool {
	return c.APIKey != "" && c.SenderEmail != "" && c.SenderName != ""
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoPayload struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
}

type brevoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BrevoMailer sends through the Brevo transactional email API
type BrevoMailer struct {
	client *resty.Client
	sender brevoContact
	log    zerolog.Logger
}

func NewBrevoMailer(cfg BrevoConfig, log zerolog.Logger) *BrevoMailer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBrevoURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("accept", "application/json").
		SetHeader("api-key", cfg.APIKey)

	return &BrevoMailer{
		client: client,
		sender: brevoContact{Email: cfg.SenderEmail, Name: cfg.SenderName},
		log:    log.With().Str("component", "brevo").Logger(),
	}
}

func (m *BrevoMailer) Send(ctx context.Context, msg Message) error {
	at := strings.Index(msg.ToEmail, "@")
	if at <= 0 {
		return fmt.Errorf("invalid recipient email: %q", msg.ToEmail)
	}
	name := msg.ToName
	if name == "" {
		name = msg.ToEmail[:at]
	}

	var result brevoResponse
	var apiErr brevoError
	res, err := m.client.R().
		SetContext(ctx).
		SetBody(brevoPayload{
			Sender:      m.sender,
			To:          []brevoContact{{Email: msg.ToEmail, Name: name}},
			Subject:     msg.Subject,
			HTMLContent: msg.HTML,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v3/smtp/email")
	if err != nil {
		return fmt.Errorf("failed to send email via brevo: %w", err)
	}

	switch res.StatusCode() {
	case http.StatusCreated, http.StatusAccepted, http.StatusOK:
		m.log.Info().Str("to", msg.ToEmail).Str("message_id", result.MessageID).Msg("email sent")
		return nil
	default:
		return fmt.Errorf("brevo rejected email (status %d): %s %s", res.StatusCode(), apiErr.Code, apiErr.Message)
	}
}

// NopMailer is used when Brevo is not configured
type NopMailer struct {
	Log zerolog.Logger
}

func (m NopMailer) Send(_ context.Context, msg Message) error {
	m.Log.Warn().Str("to", msg.ToEmail).Str("subject", msg.Subject).Msg("email not sent, mailer disabled")
	return ErrMailerDisabled
}
