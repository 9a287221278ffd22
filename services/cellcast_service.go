package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/birchwood-sourdough/orders/models"
)

const defaultCellcastURL = "https://cellcast.com.au/api/v3/send-sms"

// CellcastConfig holds Cellcast SMS API settings. Sender is limited to 11 characters by
// the carrier.
type CellcastConfig struct {
	AppKey  string
	Sender  string
	BaseURL string
	Timeout time.Duration
}

// CellcastService sends SMS to Australian mobiles through Cellcast.
type CellcastService struct {
	config     CellcastConfig
	httpClient *http.Client
}

func NewCellcastService(cfg CellcastConfig) *CellcastService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCellcastURL
	}
	if cfg.Sender == "" {
		cfg.Sender = "Birchwood"
	}
	if len(cfg.Sender) > 11 {
		cfg.Sender = cfg.Sender[:11]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &CellcastService{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *CellcastService) Configured() bool {
	return s.config.AppKey != ""
}

type cellcastRequest struct {
	Text    string   `json:"sms_text"`
	Numbers []string `json:"numbers"`
	From    string   `json:"from"`
}

// SendSMS normalises to into +614XXXXXXXX form and skips numbers that are not Australian
// mobiles, email addresses and calls made without an app key.
func (s *CellcastService) SendSMS(ctx context.Context, to, text string) (Outcome, error) {
	if !s.Configured() || strings.Contains(to, "@") || !models.IsAUMobile(to) {
		return OutcomeSkipped, nil
	}

	body, err := json.Marshal(cellcastRequest{
		Text:    text,
		Numbers: []string{models.FormatAUMobile(to)},
		From:    s.config.Sender,
	})
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "encode cellcast request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "build cellcast request")
	}
	req.Header.Set("APPKEY", s.config.AppKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "send cellcast request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return OutcomeFailed, fmt.Errorf("cellcast returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return OutcomeSent, nil
}
