// Package jwttoken issues and validates the HS256 bearer tokens that identify
// a participant to the registration backend.
package jwttoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hackmate/internal/registration/models"
	dErrors "hackmate/pkg/domain-errors"
)

const (
	DefaultIssuer   = "hackmate-devbackend"
	DefaultAudience = "hackmate-client"
	DefaultTTL      = 24 * time.Hour
)

// ParticipantClaims is the token body. Subject carries the participant ID.
type ParticipantClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and validates participant tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
	now        func() time.Time
}

type Option func(*JWTService)

func WithIssuer(issuer string) Option {
	return func(s *JWTService) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

func WithAudience(audience string) Option {
	return func(s *JWTService) {
		if audience != "" {
			s.audience = audience
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *JWTService) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithClock fixes issue times; validation still uses the same clock.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewJWTService(signingKey string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     DefaultIssuer,
		audience:   DefaultAudience,
		tokenTTL:   DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL is the lifetime given to newly issued tokens.
func (s *JWTService) TTL() time.Duration {
	return s.tokenTTL
}

// IssueParticipantToken signs a token for p. The participant ID is required.
func (s *JWTService) IssueParticipantToken(p models.Participant) (string, error) {
	if strings.TrimSpace(p.ID) == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "participant id is required")
	}
	jti, err := newTokenID()
	if err != nil {
		return "", err
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ParticipantClaims{
		Email: p.Email,
		Name:  p.Name,
		Phone: p.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks signature, algorithm, expiry, issuer and audience.
func (s *JWTService) ValidateToken(tokenString string) (*ParticipantClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &ParticipantClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*ParticipantClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return claims, nil
}

// Participant rebuilds the identity carried by claims. Token is left empty.
func (c *ParticipantClaims) Participant() models.Participant {
	return models.Participant{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Phone: c.Phone,
	}
}

func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
