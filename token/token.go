package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scribe/models"
	"scribe/policy"
)

const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrMalformed = errors.New("token malformed")
	ErrExpired   = errors.New("token expired")
)

// Claims is the signed payload: subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies stateless HS256 identity tokens. Changing the
// secret invalidates every token issued before.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(secret []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for userID valid for the configured TTL.
func (s *Service) Issue(userID string, role models.Role) (string, error) {
	if userID == "" {
		return "", errors.New("token subject must not be empty")
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return "", err
	}

	issuedAt := s.now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry only; nothing is looked up.
func (s *Service) Verify(raw string) (policy.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return policy.Identity{}, ErrExpired
		}
		return policy.Identity{}, ErrMalformed
	}

	if claims.Subject == "" {
		return policy.Identity{}, ErrMalformed
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return policy.Identity{}, ErrMalformed
	}

	return policy.Identity{UserID: claims.Subject, Role: role}, nil
}

// TTL is the lifetime given to new tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
