// Package token issues and verifies stateless session tokens (HS256 JWT).
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
)

// TTL is the fixed session lifetime. Cookie Max-Age is derived from it.
const TTL = 24 * time.Hour

// MinSecretLen is the shortest accepted HMAC secret.
const MinSecretLen = 32

// Claims is the verified content of a session token.
type Claims struct {
	UserID    uuid.UUID
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies session tokens. It never touches storage.
type Service struct {
	secret []byte
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a Service. The secret must be at least MinSecretLen bytes.
func New(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", MinSecretLen)
	}
	s := &Service{secret: append([]byte(nil), secret...), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Issue creates a signed token for userID that expires TTL after issuance.
func (s *Service) Issue(userID uuid.UUID, role model.Role) (string, time.Time, error) {
	// NumericDate has second precision; truncating keeps exp-iat exactly TTL.
	iat := s.now().Truncate(time.Second)
	exp := iat.Add(TTL)
	claims := jwtClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry and returns the embedded claims.
// A token is valid while now < exp.
func (s *Service) Verify(tokenString string) (Claims, error) {
	var c jwtClaims
	_, err := jwt.ParseWithClaims(tokenString, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, classify(err)
	}

	id, err := uuid.FromString(c.Subject)
	if err != nil || id == uuid.Nil {
		return Claims{}, fmt.Errorf("%w: bad subject", errs.ErrTokenMalformed)
	}
	out := Claims{UserID: id, Role: model.Role(c.Role), ExpiresAt: c.ExpiresAt.Time}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errs.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return errs.ErrTokenSignature
	default:
		return fmt.Errorf("%w: %v", errs.ErrTokenMalformed, err)
	}
}
