package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
)

var ErrUnauthorized = errors.New("unauthorized")

// CallerClaims is the bearer token payload. The subject is the caller id.
type CallerClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService turns bearer tokens into caller identities. It stands in for the
// platform's identity provider, which signs tokens with the shared secret.
type AuthService struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

func NewAuthService(secret, issuer string, clk clock.Clock) (*AuthService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &AuthService{secret: []byte(secret), issuer: issuer, clock: clk}, nil
}

func (s *AuthService) Authenticate(_ context.Context, token string) (domain.Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Caller{}, ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims CallerClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	caller := domain.Caller{ID: claims.Subject, Role: claims.Role}
	if caller.Validate() != nil {
		return domain.Caller{}, ErrUnauthorized
	}
	return caller, nil
}

// IssueToken signs a token for caller valid for ttl.
func (s *AuthService) IssueToken(caller domain.Caller, ttl time.Duration) (string, error) {
	if err := caller.Validate(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := s.clock.Now()
	claims := CallerClaims{
		Role: caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
