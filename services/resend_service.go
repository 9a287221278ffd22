package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/birchwood-sourdough/orders/models"
)

// Outcome is the result of one delivery attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

const defaultResendURL = "https://api.resend.com/emails"

// ResendConfig holds Resend email API settings.
type ResendConfig struct {
	APIKey  string
	From    string
	BaseURL string
	Timeout time.Duration
}

// ResendService sends email through the Resend API.
type ResendService struct {
	config     ResendConfig
	httpClient *http.Client
}

func NewResendService(cfg ResendConfig) *ResendService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultResendURL
	}
	if cfg.From == "" {
		cfg.From = "onboarding@resend.dev"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ResendService{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *ResendService) Configured() bool {
	return s.config.APIKey != ""
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendEmail skips when the service has no API key or to is not an email address.
func (s *ResendService) SendEmail(ctx context.Context, to, subject, html string) (Outcome, error) {
	if !s.Configured() || !models.IsEmail(to) {
		return OutcomeSkipped, nil
	}

	body, err := json.Marshal(resendRequest{
		From:    s.config.From,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "encode resend request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "build resend request")
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "send resend request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return OutcomeFailed, fmt.Errorf("resend returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return OutcomeSent, nil
}
