package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebigby10/sugarvoice-backend/app/observability/metrics"
)

var _ TokenService = (*JWTTokenService)(nil)

type TokenService interface {
	// Issue signs a token asserting subject, valid for ttl.
	Issue(subject string, ttl time.Duration) (string, error)
	// Verify returns the subject of a token produced by Issue. Checks run in
	// a fixed order: signature, then expiry, then claim structure.
	Verify(token string) (string, error)
}

// JWTTokenService issues HS256 JWTs carrying sub, iat, exp and iss.
type JWTTokenService struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

type TokenOption func(*JWTTokenService)

// WithClock replaces time.Now for both issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *JWTTokenService) {
		s.now = now
	}
}

func NewJWTTokenService(secretKey, issuer string, opts ...TokenOption) (*JWTTokenService, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("jwt secret key cannot be empty")
	}
	s := &JWTTokenService{
		key:    []byte(secretKey),
		issuer: issuer,
		now:    time.Now,
		// Claims are validated by hand below so that expiry is only
		// reported for tokens whose signature already checked out.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *JWTTokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTTokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) ||
			s.undecodableSignature(tokenString) {
			return "", s.reject("bad_signature", ErrTokenBadSignature)
		}
		return "", s.reject("malformed", ErrTokenMalformed)
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return "", s.reject("expired", ErrTokenExpired)
	}

	switch {
	case claims.ExpiresAt == nil, claims.IssuedAt == nil:
		return "", s.reject("malformed", ErrTokenMalformed)
	case strings.TrimSpace(claims.Subject) == "":
		return "", s.reject("malformed", ErrTokenMalformed)
	case s.issuer != "" && claims.Issuer != s.issuer:
		return "", s.reject("malformed", ErrTokenMalformed)
	}

	return claims.Subject, nil
}

// undecodableSignature reports a well-formed header and payload followed by a
// signature segment that is not strict base64url.
func (s *JWTTokenService) undecodableSignature(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	for _, seg := range parts[:2] {
		if _, err := s.parser.DecodeSegment(seg); err != nil {
			return false
		}
	}
	_, err := s.parser.DecodeSegment(parts[2])
	return err != nil
}

func (s *JWTTokenService) reject(reason string, err error) error {
	metrics.Get().TokenVerificationFailuresTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
	return err
}
