package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/kvstore"
	"github.com/birchwood-sourdough/orders/metrics"
)

const (
	loginBackoffBase  = time.Second
	loginBackoffMax   = 8 * time.Second
	loginFailureTTL   = 15 * time.Minute
	adminRole         = "admin"
	defaultTokenTTL   = 8 * time.Hour
	defaultAuthIssuer = "birchwood-sourdough"
)

// AuthConfig holds the admin credential and token settings.
type AuthConfig struct {
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
	BindIP       bool
	Issuer       string
}

// AdminClaims are carried in admin session tokens. IP is the address the token was
// issued to.
type AdminClaims struct {
	Role string `json:"role"`
	IP   string `json:"ip"`
	jwt.RegisteredClaims
}

// AuthService authenticates the single admin user and manages session tokens.
type AuthService struct {
	cfg     AuthConfig
	kv      kvstore.Store
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewAuthService(cfg AuthConfig, kv kvstore.Store, m *metrics.Metrics, logger logrus.FieldLogger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultAuthIssuer
	}
	return &AuthService{
		cfg:     cfg,
		kv:      kv,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HashPassword returns the bcrypt hash stored in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks password and issues a token bound to ip. Each consecutive failure from the
// same address is delayed twice as long as the last, up to eight seconds.
func (s *AuthService) Login(ctx context.Context, password, ip string) (string, time.Time, error) {
	if s.cfg.PasswordHash == "" || s.cfg.JWTSecret == "" {
		return "", time.Time{}, apperr.Internal(errors.New("admin authentication is not configured"))
	}

	failKey := "login_fail:" + ip
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		s.metrics.LoginFailure()
		failures, kvErr := s.kv.Incr(ctx, failKey, loginFailureTTL)
		if kvErr != nil {
			s.logger.WithError(kvErr).Warn("Unable to record login failure")
			failures = 1
		}
		delay := backoff(failures)
		s.logger.WithFields(logrus.Fields{"ip": ip, "failures": failures, "delay": delay}).Warn("Admin login failed")
		rejected := apperr.Auth("invalid_credentials", "Invalid password")
		if err := s.sleep(ctx, delay); err != nil {
			rejected.Err = err
		}
		return "", time.Time{}, rejected
	}

	if err := s.kv.Delete(ctx, failKey); err != nil {
		s.logger.WithError(err).Warn("Unable to reset login failures")
	}

	now := s.now()
	expires := now.Add(s.cfg.TokenTTL)
	claims := AdminClaims{
		Role: adminRole,
		IP:   ip,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   adminRole,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, apperr.Internal(err)
	}

	s.logger.WithField("ip", ip).Info("Admin logged in")
	return token, expires, nil
}

func backoff(failures int64) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := loginBackoffBase
	for i := int64(1); i < failures && d < loginBackoffMax; i++ {
		d *= 2
	}
	if d > loginBackoffMax {
		d = loginBackoffMax
	}
	return d
}

// Verify validates token and, when IP binding is on, checks it was issued to ip.
func (s *AuthService) Verify(ctx context.Context, token, ip string) (*AdminClaims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if s.cfg.BindIP && claims.IP != ip {
		s.logger.WithFields(logrus.Fields{"token_ip": claims.IP, "ip": ip}).Warn("Admin token used from another address")
		return nil, apperr.Auth("ip_mismatch", "Session is not valid from this address")
	}

	_, revoked, err := s.kv.Get(ctx, revokedKey(claims.ID))
	if err != nil {
		return nil, apperr.Upstream("Unable to verify session", err)
	}
	if revoked {
		return nil, apperr.Auth("token_revoked", "Session has ended, please log in again")
	}
	return claims, nil
}

// Logout revokes token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.kv.Set(ctx, revokedKey(claims.ID), "1", ttl); err != nil {
		return apperr.Upstream("Unable to end session", err)
	}
	s.logger.WithField("ip", claims.IP).Info("Admin logged out")
	return nil
}

func (s *AuthService) parse(token string) (*AdminClaims, error) {
	if token == "" {
		return nil, apperr.Auth("missing_token", "Authorization token required")
	}
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, apperr.Auth("token_expired", "Session expired, please log in again")
	}
	if err != nil || claims.Role != adminRole || claims.ID == "" {
		return nil, apperr.Auth("invalid_token", "Invalid token")
	}
	return claims, nil
}

func revokedKey(id string) string {
	return "revoked:" + id
}
