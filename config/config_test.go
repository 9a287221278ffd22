package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birchwood-sourdough/orders/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "memory", cfg.KV.Backend)
	assert.Equal(t, 4, cfg.Bakery.MaxLoavesPerDay)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.BindIP)
	assert.True(t, cfg.Bakery.SerializeAdmission)

	days, err := cfg.PickupWeekdays()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday}, days)

	countable, err := cfg.CountableStatuses()
	require.NoError(t, err)
	assert.Empty(t, countable)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", loc.String())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "from-legacy-name")
	t.Setenv("BAKERY_MAX_LOAVES_PER_DAY", "6")
	t.Setenv("BAKERY_PICKUP_DAYS", "fri,Saturday")
	t.Setenv("CAPACITY_COUNTABLE_STATUSES", "Payment Received, Ready for Pickup")
	t.Setenv("LIMITS_ORDERS_WINDOW", "90s")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-legacy-name", cfg.Auth.JWTSecret)
	assert.Equal(t, 6, cfg.Bakery.MaxLoavesPerDay)
	assert.Equal(t, 90*time.Second, cfg.Limits.Orders.Window)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)

	days, err := cfg.PickupWeekdays()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, days)

	countable, err := cfg.CountableStatuses()
	require.NoError(t, err)
	assert.Equal(t, []models.OrderStatus{models.StatusPaymentReceived, models.StatusReadyForPickup}, countable)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RESEND_API_KEY=re_from_file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RESEND_API_KEY") })

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "re_from_file", cfg.Resend.APIKey)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"timezone", "BAKERY_TIMEZONE", "Mars/Olympus"},
		{"pickup day", "BAKERY_PICKUP_DAYS", "Funday"},
		{"status", "CAPACITY_COUNTABLE_STATUSES", "Shipped"},
		{"store", "STORE_BACKEND", "postgres"},
		{"kv", "KV_BACKEND", "memcached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig(t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestChecksHideSecrets(t *testing.T) {
	cfg := Config{
		Auth:     AuthConfig{JWTSecret: "supersecretvalue123"},
		Store:    StoreConfig{Backend: "airtable"},
		Airtable: AirtableConfig{BaseID: "appXYZ"},
		KV:       KVConfig{Backend: "memory"},
	}

	checks := cfg.Checks()
	byName := map[string]EnvCheck{}
	for _, c := range checks {
		byName[c.Name] = c
	}
	assert.Equal(t, "supersec...", byName["JWT_SECRET"].Preview)
	assert.Equal(t, "app...", byName["AIRTABLE_BASE_ID"].Preview)
	assert.Equal(t, "NOT SET", byName["ADMIN_PASSWORD_HASH"].Preview)
	assert.ElementsMatch(t, []string{"ADMIN_PASSWORD_HASH", "AIRTABLE_API_KEY"}, cfg.Missing())
}
