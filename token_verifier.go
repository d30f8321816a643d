package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier checks a token signature. Claims validation (expiry) is left
// to SessionPolicy so that expired tokens are reported as expired, not invalid.
type TokenVerifier interface {
	Verify(token string) error
}

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(token string) error

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(token string) error {
	if f == nil {
		return nil
	}
	return f(token)
}

// HMACVerifier verifies HS256/384/512 signatures with a shared secret.
type HMACVerifier struct {
	key    []byte
	parser *jwt.Parser
}

// NewHMACVerifier returns a verifier for the given secret.
func NewHMACVerifier(secret []byte) *HMACVerifier {
	return &HMACVerifier{
		key:    secret,
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}
}

// Verify satisfies the TokenVerifier interface.
func (v *HMACVerifier) Verify(token string) error {
	_, err := v.parser.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	})
	return err
}

// JWKSVerifier verifies signatures against a JSON Web Key Set.
type JWKSVerifier struct {
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
}

// NewJWKSVerifier loads the key set from url and refreshes it in the background.
func NewJWKSVerifier(url string, refresh time.Duration, logger Logger) (*JWKSVerifier, error) {
	logger = normalizeLogger(logger)
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", "url", url, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load jwks from %s: %w", url, err)
	}
	return &JWKSVerifier{
		jwks:   jwks,
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}, nil
}

// NewJWKSVerifierFromJSON builds a verifier from a static key set.
func NewJWKSVerifierFromJSON(raw json.RawMessage) (*JWKSVerifier, error) {
	jwks, err := keyfunc.NewJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	return &JWKSVerifier{
		jwks:   jwks,
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}, nil
}

// Verify satisfies the TokenVerifier interface.
func (v *JWKSVerifier) Verify(token string) error {
	_, err := v.parser.Parse(token, v.jwks.Keyfunc)
	return err
}

// Close stops the background refresh.
func (v *JWKSVerifier) Close() {
	if v != nil && v.jwks != nil {
		v.jwks.EndBackground()
	}
}
