package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/birchwood-sourdough/orders/models"
)

// Config holds all application configuration. Every key can be set from the environment
// with dots replaced by underscores (server.port -> SERVER_PORT).
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Log         LogConfig      `mapstructure:"log"`
	Store       StoreConfig    `mapstructure:"store"`
	Airtable    AirtableConfig `mapstructure:"airtable"`
	KV          KVConfig       `mapstructure:"kv"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Resend      ResendConfig   `mapstructure:"resend"`
	Cellcast    CellcastConfig `mapstructure:"cellcast"`
	Bakery      BakeryConfig   `mapstructure:"bakery"`
	Limits      LimitsConfig   `mapstructure:"limits"`
	Notify      NotifyConfig   `mapstructure:"notify"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	GinMode         string        `mapstructure:"gin_mode"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the record store: airtable, sqlite, mysql or memory.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type AirtableConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseID  string        `mapstructure:"base_id"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KVConfig selects where counters, revocations and locks live: memory or redis.
type KVConfig struct {
	Backend       string        `mapstructure:"backend"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type AuthConfig struct {
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	BindIP       bool          `mapstructure:"bind_ip"`
}

type ResendConfig struct {
	APIKey string `mapstructure:"api_key"`
	From   string `mapstructure:"from"`
}

type CellcastConfig struct {
	AppKey string `mapstructure:"appkey"`
	Sender string `mapstructure:"sender"`
}

type BakeryConfig struct {
	Name               string   `mapstructure:"name"`
	PayID              string   `mapstructure:"payid"`
	ContactPhone       string   `mapstructure:"contact_phone"`
	Timezone           string   `mapstructure:"timezone"`
	MaxLoavesPerDay    int      `mapstructure:"max_loaves_per_day"`
	MaxLoavesPerOrder  int      `mapstructure:"max_loaves_per_order"`
	LoafPrice          float64  `mapstructure:"loaf_price"`
	PickupDays         []string `mapstructure:"pickup_days"`
	CountableStatuses  []string `mapstructure:"countable_statuses"`
	SerializeAdmission bool     `mapstructure:"serialize_admission"`
}

type RateLimit struct {
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	Lockout time.Duration `mapstructure:"lockout"`
}

type LimitsConfig struct {
	Orders      RateLimit `mapstructure:"orders"`
	Login       RateLimit `mapstructure:"login"`
	OrdersRPS   float64   `mapstructure:"orders_rps"`
	OrdersBurst int       `mapstructure:"orders_burst"`
}

type NotifyConfig struct {
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.allowed_origins", []string{"https://birchwood-sourdough.netlify.app"})
	v.SetDefault("server.trusted_proxies", []string{"127.0.0.1"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.dsn", "bakery.db")

	v.SetDefault("airtable.api_key", "")
	v.SetDefault("airtable.base_id", "")
	v.SetDefault("airtable.base_url", "https://api.airtable.com")
	v.SetDefault("airtable.timeout", 15*time.Second)

	v.SetDefault("kv.backend", "memory")
	v.SetDefault("kv.sweep_interval", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "bakery")

	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 8*time.Hour)
	v.SetDefault("auth.bind_ip", true)

	v.SetDefault("resend.api_key", "")
	v.SetDefault("resend.from", "onboarding@resend.dev")

	v.SetDefault("cellcast.appkey", "")
	v.SetDefault("cellcast.sender", "Birchwood")

	v.SetDefault("bakery.name", "Birchwood Sourdough")
	v.SetDefault("bakery.payid", "")
	v.SetDefault("bakery.contact_phone", "")
	v.SetDefault("bakery.timezone", "Australia/Sydney")
	v.SetDefault("bakery.max_loaves_per_day", 4)
	v.SetDefault("bakery.max_loaves_per_order", 4)
	v.SetDefault("bakery.loaf_price", 12.0)
	v.SetDefault("bakery.pickup_days", []string{"Tuesday", "Wednesday", "Thursday"})
	v.SetDefault("bakery.countable_statuses", []string{})
	v.SetDefault("bakery.serialize_admission", true)

	v.SetDefault("limits.orders.limit", 5)
	v.SetDefault("limits.orders.window", 15*time.Minute)
	v.SetDefault("limits.orders.lockout", 15*time.Minute)
	v.SetDefault("limits.login.limit", 10)
	v.SetDefault("limits.login.window", 15*time.Minute)
	v.SetDefault("limits.login.lockout", 30*time.Minute)
	v.SetDefault("limits.orders_rps", 2.0)
	v.SetDefault("limits.orders_burst", 10)

	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queue_size", 100)
	v.SetDefault("notify.max_attempts", 3)
	v.SetDefault("notify.send_timeout", 20*time.Second)
	v.SetDefault("notify.retry_interval", time.Minute)
}

// Environment names used by earlier deployments.
var envAliases = map[string][]string{
	"server.port":                {"PORT"},
	"server.gin_mode":            {"GIN_MODE"},
	"server.allowed_origins":     {"ALLOWED_ORIGINS"},
	"auth.password_hash":         {"ADMIN_PASSWORD_HASH"},
	"auth.jwt_secret":            {"JWT_SECRET"},
	"resend.from":                {"FROM_EMAIL"},
	"bakery.countable_statuses":  {"CAPACITY_COUNTABLE_STATUSES"},
	"bakery.serialize_admission": {"ADMISSION_SERIALIZE"},
}

// LoadConfig reads dir/.env when present, then the environment.
func LoadConfig(dir string) (Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)...); err != nil {
			return Config{}, errors.Wrapf(err, "bind %s", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail at first use.
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.PickupWeekdays(); err != nil {
		return err
	}
	if _, err := c.CountableStatuses(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case "airtable", "sqlite", "mysql", "memory":
	default:
		return errors.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.KV.Backend {
	case "memory", "redis":
	default:
		return errors.Errorf("unknown kv backend %q", c.KV.Backend)
	}
	if c.Bakery.MaxLoavesPerDay < 0 || c.Bakery.MaxLoavesPerOrder < 1 {
		return errors.New("loaf limits must be positive")
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Bakery.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "bakery timezone %q", c.Bakery.Timezone)
	}
	return loc, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// PickupWeekdays accepts full or three-letter day names in any case.
func (c Config) PickupWeekdays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.Bakery.PickupDays))
	for _, raw := range c.Bakery.PickupDays {
		name := strings.ToLower(strings.TrimSpace(raw))
		if len(name) < 3 {
			return nil, errors.Errorf("unknown pickup day %q", raw)
		}
		d, ok := weekdays[name[:3]]
		if !ok {
			return nil, errors.Errorf("unknown pickup day %q", raw)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one pickup day is required")
	}
	return out, nil
}

// CountableStatuses returns nil when unset, which selects the default set.
func (c Config) CountableStatuses() ([]models.OrderStatus, error) {
	var out []models.OrderStatus
	for _, raw := range c.Bakery.CountableStatuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		s, ok := models.ParseStatus(raw)
		if !ok {
			return nil, errors.Errorf("unknown countable status %q", raw)
		}
		out = append(out, s)
	}
	return out, nil
}
