package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks issuer, audience, time claims and the signing algorithm.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate reports the first claim that does not hold at now.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	if tok.Subject() == "" {
		return errors.New("auth: token missing subject")
	}
	opts := []jwt.ValidateOption{jwt.WithClock(jwt.ClockFunc(func() time.Time { return now }))}
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, opts...)
}

// signToken issues an HS256 session token for userID.
func (s *Service) signToken(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	tok, err := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.validator.Issuer).
		Audience([]string{s.validator.Audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.validator.ClockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// ParseToken verifies token and returns its subject.
func (s *Service) ParseToken(token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}
	algorithm, err := tokenAlgorithm(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if algorithm != s.validator.Algorithm {
		return "", fmt.Errorf("%w: unexpected algorithm %s", ErrInvalidToken, algorithm)
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return parsed.Subject(), nil
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", fmt.Errorf("auth: expected one signature, got %d", len(sigs))
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}
