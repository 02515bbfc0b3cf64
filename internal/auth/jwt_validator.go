package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-pasteleria/internal/common"
)

const (
	claimEmail = "email"
	claimStaff = "staff"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Staff  bool
}

// TokenValidator validates structural and contextual properties of JWT tokens.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks issuer, audience, expiry and algorithm.
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

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

// Tokens verifies bearer tokens issued by the account service and can mint
// tokens for tooling and tests. Accounts themselves live elsewhere.
type Tokens struct {
	Secret    []byte
	Validator TokenValidator
	Now       func() time.Time
}

// NewTokens builds an HS256 verifier.
func NewTokens(secret, issuer, audience string, skew time.Duration) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Tokens{
		Secret: []byte(secret),
		Validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
	}, nil
}

func (t *Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Parse validates token and returns its principal.
func (t *Tokens) Parse(token string) (Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Principal{}, unauthorized("invalid token", err)
	}
	if t.Validator.Algorithm != "" && algorithm != t.Validator.Algorithm {
		return Principal{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, t.Secret), jwt.WithValidate(false))
	if err != nil {
		return Principal{}, unauthorized("invalid token", err)
	}
	if err := t.Validator.Validate(parsed, algorithm, t.now()); err != nil {
		return Principal{}, unauthorized("invalid token", err)
	}
	if parsed.Subject() == "" {
		return Principal{}, unauthorized("invalid token", errors.New("auth: token missing subject"))
	}

	p := Principal{UserID: parsed.Subject()}
	if v, ok := parsed.Get(claimEmail); ok {
		p.Email, _ = v.(string)
	}
	if v, ok := parsed.Get(claimStaff); ok {
		p.Staff, _ = v.(bool)
	}
	return p, nil
}

// Issue signs a token for p valid for ttl.
func (t *Tokens) Issue(p Principal, ttl time.Duration) (string, error) {
	now := t.now()
	builder := jwt.NewBuilder().
		Subject(p.UserID).
		IssuedAt(now).
		NotBefore(now.Add(-t.Validator.ClockSkew)).
		Expiration(now.Add(ttl))
	if t.Validator.Issuer != "" {
		builder = builder.Issuer(t.Validator.Issuer)
	}
	if t.Validator.Audience != "" {
		builder = builder.Audience([]string{t.Validator.Audience})
	}
	if p.Email != "" {
		builder = builder.Claim(claimEmail, p.Email)
	}
	if p.Staff {
		builder = builder.Claim(claimStaff, true)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
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
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func unauthorized(message string, err error) error {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}
