package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, issued, expires time.Time) jwt.Token {
	t.Helper()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"aud"}).
		Subject("sub").
		IssuedAt(issued).
		NotBefore(issued).
		Expiration(expires).
		Build()
	require.NoError(t, err)
	return token
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	now := time.Now()
	validator := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256}
	require.NoError(t, validator.Validate(buildToken(t, "issuer", now, now.Add(time.Minute)), jwa.HS256, now))
}

func TestTokenValidatorRejects(t *testing.T) {
	now := time.Now()
	validator := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}

	require.Error(t, validator.Validate(buildToken(t, "other", now, now.Add(time.Minute)), jwa.HS256, now))
	require.Error(t, validator.Validate(buildToken(t, "issuer", now.Add(-2*time.Hour), now.Add(-time.Minute)), jwa.HS256, now))
	require.Error(t, validator.Validate(buildToken(t, "issuer", now, now.Add(time.Minute)), jwa.HS512, now))
	require.Error(t, validator.Validate(nil, jwa.HS256, now))
}

func TestTokensRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tokens, err := NewTokens("secret", "pasteleria", "storefront", time.Second)
	require.NoError(t, err)
	tokens.Now = func() time.Time { return now }

	signed, err := tokens.Issue(Principal{UserID: "u-1", Email: "ana@example.com", Staff: true}, time.Hour)
	require.NoError(t, err)

	p, err := tokens.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, Principal{UserID: "u-1", Email: "ana@example.com", Staff: true}, p)

	tokens.Now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = tokens.Parse(signed)
	require.Error(t, err)
}

func TestTokensRejectForeignSignature(t *testing.T) {
	issuer, err := NewTokens("one", "", "", 0)
	require.NoError(t, err)
	verifier, err := NewTokens("two", "", "", 0)
	require.NoError(t, err)

	signed, err := issuer.Issue(Principal{UserID: "u-1"}, time.Hour)
	require.NoError(t, err)
	_, err = verifier.Parse(signed)
	require.Error(t, err)

	_, err = verifier.Parse("not-a-jwt")
	require.Error(t, err)

	_, err = NewTokens(" ", "", "", 0)
	require.Error(t, err)
}
