// Package auth implements the local credential primitives: bcrypt password
// hashing and HS256 bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret     = errors.New("token signing secret is empty")
	ErrInvalidTTL      = errors.New("token ttl must be at least one second")
	ErrReservedClaim   = errors.New("payload uses a reserved claim")
	ErrClaimType       = errors.New("payload value is not a JSON value")
	reservedClaimNames = []string{"exp", "iat"}
)

// Payload is the set of caller claims carried by a token. Values must be
// JSON values as encoding/json decodes them: nil, string, bool, float64,
// []any or map[string]any. Only those come back unchanged from Verify.
type Payload map[string]any

// Token is a signed bearer token together with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenIssuer signs and checks HS256 tokens. It holds only the secret and a
// clock, so one instance is safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// Option customises a TokenIssuer.
type Option func(*TokenIssuer)

// WithClock replaces time.Now, e.g. to test expiry boundaries.
func WithClock(now func() time.Time) Option {
	return func(i *TokenIssuer) { i.now = now }
}

// NewTokenIssuer creates an issuer signing with secret.
func NewTokenIssuer(secret []byte, opts ...Option) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	i := &TokenIssuer{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Now returns the issuer's current time.
func (i *TokenIssuer) Now() time.Time {
	return i.now()
}

// Sign embeds payload and an expiry of now+ttl and signs the result. A value
// of any other Go type (int, []string, a struct) is rejected with
// ErrClaimType.
func (i *TokenIssuer) Sign(payload Payload, ttl time.Duration) (Token, error) {
	if ttl < time.Second {
		return Token{}, ErrInvalidTTL
	}

	claims := make(jwt.MapClaims, len(payload)+2)
	for k, v := range payload {
		if isReserved(k) {
			return Token{}, fmt.Errorf("%w: %s", ErrReservedClaim, k)
		}
		if !isJSONValue(v) {
			return Token{}, fmt.Errorf("%w: %s is %T", ErrClaimType, k, v)
		}
		claims[k] = v
	}

	now := i.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	claims["iat"] = issuedAt
	claims["exp"] = expiresAt

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, err
	}

	return Token{Value: signed, ExpiresAt: expiresAt.Time}, nil
}

// Verify checks the signature and expiry of token and returns its payload.
// A token whose expiry is at or before the current time yields
// common.ErrTokenExpired; a bad signature or encoding yields
// common.ErrInvalidToken.
func (i *TokenIssuer) Verify(token string) (Payload, error) {
	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	return toPayload(claims), nil
}

// Decode returns the payload of token WITHOUT checking its signature or
// expiry. For diagnostics only; never base an authorization decision on it.
func (i *TokenIssuer) Decode(token string) (Payload, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, common.ErrInvalidToken
	}
	return toPayload(claims), nil
}

func toPayload(claims jwt.MapClaims) Payload {
	p := make(Payload, len(claims))
	for k, v := range claims {
		if !isReserved(k) {
			p[k] = v
		}
	}
	return p
}

func isJSONValue(v any) bool {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return true
	case []any:
		for _, e := range x {
			if !isJSONValue(e) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, e := range x {
			if !isJSONValue(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isReserved(name string) bool {
	for _, r := range reservedClaimNames {
		if r == name {
			return true
		}
	}
	return false
}
