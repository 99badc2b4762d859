// Package auth issues and reads the bearer tokens that carry a caller identity.
package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

type Service struct {
	cfg    *config.Jwt
	clock  clockwork.Clock
	logger *slog.Logger
}

type Option func(*Service)

// WithClock overrides the clock used for iat/exp and validation.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewWithJWT(cfg *config.Jwt, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{cfg: cfg, clock: clockwork.NewRealClock(), logger: logger.With("service", "auth")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken signs an HS256 token naming id as its subject.
func (s *Service) IssueToken(id access.Identity) (string, error) {
	if id == "" {
		return "", access.ErrEmptyIdentity
	}
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   string(id),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Expiry)),
	})
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		s.logger.Error("IssueToken failed", "identity", id, "error", err)
		return "", err
	}
	s.logger.Debug("token issued", "identity", id, "expires_in", s.cfg.Expiry)
	return signed, nil
}

// Identity reads the subject of a token that was already verified, for
// example by the HTTP middleware.
func (s *Service) Identity(token *jwt.Token) (access.Identity, error) {
	if token == nil || token.Claims == nil {
		return "", ErrUnauthenticated
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return access.Identity(sub), nil
}

// Parse verifies raw and returns its subject.
func (s *Service) Parse(raw string) (access.Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return s.Identity(token)
}
