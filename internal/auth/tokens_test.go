package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, nbf, exp time.Time) jwt.Token {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"web"}).
		Subject("user-1").
		IssuedAt(nbf).
		NotBefore(nbf).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidator(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v := TokenValidator{Issuer: "toko", Audience: "web", ClockSkew: time.Second, Algorithm: jwa.HS256}

	require.NoError(t, v.Validate(buildToken(t, "toko", now, now.Add(time.Minute)), jwa.HS256, now))
	require.Error(t, v.Validate(buildToken(t, "other", now, now.Add(time.Minute)), jwa.HS256, now))
	require.Error(t, v.Validate(buildToken(t, "toko", now.Add(-time.Hour), now.Add(-time.Minute)), jwa.HS256, now))
	require.Error(t, v.Validate(buildToken(t, "toko", now.Add(5*time.Minute), now.Add(10*time.Minute)), jwa.HS256, now))
	require.Error(t, v.Validate(buildToken(t, "toko", now, now.Add(time.Minute)), jwa.RS256, now))
	require.Error(t, v.Validate(nil, jwa.HS256, now))
}
