package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenCodec decodes bearer tokens without network or storage access.
type TokenCodec struct {
	parser   *jwt.Parser
	verifier TokenVerifier
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithVerifier makes the codec reject tokens whose signature does not verify.
func WithVerifier(verifier TokenVerifier) CodecOption {
	return func(c *TokenCodec) {
		c.verifier = verifier
	}
}

// NewTokenCodec returns a codec. Without a verifier the signature segment is
// only required to be present.
func NewTokenCodec(opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Decode splits the token, decodes its payload segment and returns the claims.
// Every failure is reported as ErrTokenMalformed. The type of individual
// claims is not checked here; see Claims.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, malformed("token must have three segments", map[string]any{"segments": len(parts)})
	}

	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			return nil, malformed("token segment is empty", map[string]any{"segment": i})
		}
	}

	payload, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, malformedCause(err, "payload")
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, malformedCause(err, "payload")
	}
	if fields == nil {
		return nil, malformed("token payload is not a JSON object", nil)
	}

	if c.verifier != nil {
		if err := c.verifier.Verify(token); err != nil {
			return nil, malformedCause(err, "signature")
		}
	}

	return newClaims(fields), nil
}

// IsWellFormed reports whether token decodes and carries a numeric exp claim.
func (c *TokenCodec) IsWellFormed(token string) bool {
	claims, err := c.Decode(token)
	if err != nil {
		return false
	}
	return claims.HasExpiry()
}

func malformed(reason string, md map[string]any) *Error {
	err := goerrors.New("token is malformed: "+reason, goerrors.CategoryAuth).
		WithTextCode(TextCodeTokenMalformed)
	if len(md) > 0 {
		err.WithMetadata(md)
	}
	return err
}

func malformedCause(err error, reason string) *Error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, "token is malformed").
		WithTextCode(TextCodeTokenMalformed).
		WithMetadata(map[string]any{"reason": reason})
}
