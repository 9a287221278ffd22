package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birchwood-sourdough/orders/models"
)

func TestResendService_SendEmail(t *testing.T) {
	var got resendRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer server.Close()

	s := NewResendService(ResendConfig{APIKey: "re_test", From: "orders@birchwood.test", BaseURL: server.URL})
	outcome, err := s.SendEmail(context.Background(), "jane@example.com", "Hello", "<p>Hi</p>")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, "Bearer re_test", auth)
	assert.Equal(t, resendRequest{From: "orders@birchwood.test", To: []string{"jane@example.com"}, Subject: "Hello", HTML: "<p>Hi</p>"}, got)
}

func TestResendService_Skips(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		to     string
	}{
		{"unconfigured", "", "jane@example.com"},
		{"not an email", "re_test", "0412345678"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewResendService(ResendConfig{APIKey: tt.apiKey, BaseURL: "http://127.0.0.1:1"})
			outcome, err := s.SendEmail(context.Background(), tt.to, "s", "b")
			require.NoError(t, err)
			assert.Equal(t, OutcomeSkipped, outcome)
		})
	}
}

func TestResendService_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"domain not verified"}`))
	}))
	defer server.Close()

	s := NewResendService(ResendConfig{APIKey: "re_test", BaseURL: server.URL})
	outcome, err := s.SendEmail(context.Background(), "jane@example.com", "s", "b")
	assert.Equal(t, OutcomeFailed, outcome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain not verified")
}

func TestCellcastService_SendSMS(t *testing.T) {
	var got cellcastRequest
	var appKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appKey = r.Header.Get("APPKEY")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"meta":{"code":200}}`))
	}))
	defer server.Close()

	s := NewCellcastService(CellcastConfig{AppKey: "cc_test", Sender: "BirchwoodSourdough", BaseURL: server.URL})
	outcome, err := s.SendSMS(context.Background(), "0412 345 678", "Your bread is ready")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, "cc_test", appKey)
	assert.Equal(t, []string{"+61412345678"}, got.Numbers)
	assert.Equal(t, "BirchwoodSo", got.From)
	assert.Equal(t, "Your bread is ready", got.Text)
}

func TestCellcastService_Skips(t *testing.T) {
	tests := []struct {
		name   string
		appKey string
		to     string
	}{
		{"unconfigured", "", "0412345678"},
		{"email", "cc_test", "jane@example.com"},
		{"landline", "cc_test", "0298765432"},
		{"overseas", "cc_test", "+15551234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCellcastService(CellcastConfig{AppKey: tt.appKey, BaseURL: "http://127.0.0.1:1"})
			outcome, err := s.SendSMS(context.Background(), tt.to, "text")
			require.NoError(t, err)
			assert.Equal(t, OutcomeSkipped, outcome)
		})
	}
}

func TestCellcastService_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	s := NewCellcastService(CellcastConfig{AppKey: "cc_test", BaseURL: url})
	outcome, err := s.SendSMS(context.Background(), "0412345678", "text")
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Error(t, err)
}

func TestMessageRenderer(t *testing.T) {
	r := NewMessageRenderer(MessageConfig{PayID: "pay@bakery.test", ContactPhone: "0400000000"})
	n := note("jane@example.com", models.NotifyOrderConfirmation)
	n.Order.CustomerName = "<b>Jane</b>"

	msg, err := r.Email(n)
	require.NoError(t, err)
	assert.Equal(t, "Your Birchwood Sourdough Order Confirmation", msg.Subject)
	assert.Contains(t, msg.Body, "&lt;b&gt;Jane&lt;/b&gt;")
	assert.Contains(t, msg.Body, "A$24.00")
	assert.Contains(t, msg.Body, "pay@bakery.test")

	n.Kind = models.NotifyReadyForPickup
	n.Order.CustomerName = "Jane"
	n.Order.Quantity = 1
	sms, err := r.SMS(n)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sms.Body, "Hi Jane!"))
	assert.Contains(t, sms.Body, "the usual location")
	assert.Contains(t, sms.Body, "text 0400000000")

	n.Kind = models.NotifyPaymentReceived
	sms, err = r.SMS(n)
	require.NoError(t, err)
	assert.Contains(t, sms.Body, "Your 1 loaf will be ready")

	n.Kind = "unknown"
	_, err = r.Email(n)
	assert.Error(t, err)
}
