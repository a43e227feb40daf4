package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
)

const (
	defaultAccessTTL = 8 * time.Hour
	// RoleAdmin is the only role issued today.
	RoleAdmin = "admin"
)

var (
	// ErrInvalidCredentials is returned for any failed login so callers cannot probe usernames.
	ErrInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	// ErrNotConfigured means no admin password hash was provided.
	ErrNotConfigured = common.NewAppError("AUTH_DISABLED", "admin login is not configured", http.StatusServiceUnavailable, nil)
)

// Config configures the admin auth service.
type Config struct {
	Username       string
	PasswordHash   string
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
	Logger         zerolog.Logger
}

// Service verifies the admin credentials and issues HS256 access tokens.
type Service struct {
	username     string
	passwordHash string
	secret       []byte
	accessTTL    time.Duration
	issuer       string
	audience     string
	clockSkew    time.Duration
	signer       jwa.SignatureAlgorithm
	validator    TokenValidator
	logger       zerolog.Logger
	now          func() time.Time
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Subject     string    `json:"subject"`
}

// NewService constructs a Service. An empty password hash is allowed and disables login.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash != "" {
		if _, _, _, err := argon2id.DecodeHash(hash); err != nil {
			return nil, fmt.Errorf("auth: decode admin password hash: %w", err)
		}
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = RoleAdmin
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "grosir-api"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "grosir-admin"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		username:     username,
		passwordHash: hash,
		secret:       []byte(secret),
		accessTTL:    accessTTL,
		issuer:       issuer,
		audience:     audience,
		clockSkew:    clockSkew,
		signer:       jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			Role:      RoleAdmin,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		logger: cfg.Logger,
		now:    time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login checks the admin credentials and signs an access token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if s.passwordHash == "" {
		return LoginResult{}, ErrNotConfigured
	}
	name := strings.TrimSpace(username)
	nameOK := subtle.ConstantTimeCompare([]byte(name), []byte(s.username)) == 1

	// The hash comparison runs even for a wrong username to keep timing flat.
	match, err := argon2id.ComparePasswordAndHash(password, s.passwordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compare password: %w", err)
	}
	if !nameOK || !match {
		s.logger.Warn().Str("username", name).Msg("admin login rejected")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.signAccessToken(s.username)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	s.logger.Info().Str("username", s.username).Time("expires_at", expiresAt).Msg("admin login")
	return LoginResult{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt, Subject: s.username}, nil
}

// ParseAccessToken validates an access token and returns its subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return parsed.Subject(), nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		switch {
		case alg == "":
			return "", errors.New("auth: token missing algorithm")
		case alg == jwa.NoSignature:
			return "", errors.New("auth: token uses none algorithm")
		case algorithm == "":
			algorithm = alg
		case algorithm != alg:
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(subject string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(RoleClaim, RoleAdmin).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}
