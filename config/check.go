package config

// EnvCheck describes one credential for the check-env command without revealing it.
type EnvCheck struct {
	Name     string
	Set      bool
	Preview  string
	Required bool
}

// Checks reports the credentials each configured backend needs.
func (c Config) Checks() []EnvCheck {
	checks := []EnvCheck{
		secret("ADMIN_PASSWORD_HASH", c.Auth.PasswordHash, true),
		secret("JWT_SECRET", c.Auth.JWTSecret, true),
		secret("RESEND_API_KEY", c.Resend.APIKey, false),
		secret("CELLCAST_APPKEY", c.Cellcast.AppKey, false),
	}
	if c.Store.Backend == "airtable" {
		checks = append(checks,
			secret("AIRTABLE_API_KEY", c.Airtable.APIKey, true),
			secret("AIRTABLE_BASE_ID", c.Airtable.BaseID, true),
		)
	}
	if c.KV.Backend == "redis" {
		checks = append(checks, EnvCheck{Name: "REDIS_ADDR", Set: c.Redis.Addr != "", Preview: c.Redis.Addr, Required: true})
	}
	return checks
}

// Missing lists the required credentials that are not set.
func (c Config) Missing() []string {
	var out []string
	for _, ch := range c.Checks() {
		if ch.Required && !ch.Set {
			out = append(out, ch.Name)
		}
	}
	return out
}

func secret(name, value string, required bool) EnvCheck {
	preview := "NOT SET"
	if value != "" {
		n := 8
		if len(value) < 16 {
			n = len(value) / 2
		}
		preview = value[:n] + "..."
	}
	return EnvCheck{Name: name, Set: value != "", Preview: preview, Required: required}
}
