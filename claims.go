package auth

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Claims is the decoded payload of a storefront token. It is produced once by
// TokenCodec and read through nil-safe accessors everywhere else. Claims with
// an unexpected JSON type read as their zero value.
type Claims struct {
	subject  string
	userID   string
	role     string
	issuedAt time.Time

	expMillis int64
	hasExp    bool

	// Extra holds every payload field as decoded, numbers as json.Number.
	Extra map[string]any
}

func newClaims(fields map[string]any) *Claims {
	c := &Claims{
		subject: stringClaim(fields["sub"]),
		userID:  stringClaim(fields["userId"]),
		Extra:   fields,
	}
	if role, ok := fields["role"].(string); ok {
		c.role = role
	}
	if n, ok := fields["iat"].(json.Number); ok {
		if ms, ok := secondsToMillis(n); ok && ms > math.MinInt64 && ms < math.MaxInt64 {
			c.issuedAt = time.UnixMilli(ms)
		}
	}
	if n, ok := fields["exp"].(json.Number); ok {
		c.expMillis, c.hasExp = secondsToMillis(n)
	}
	return c
}

// Subject returns the subject claim
func (c *Claims) Subject() string {
	if c == nil {
		return ""
	}
	return c.subject
}

// UserID returns the userId claim, falling back to the subject
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	if c.userID != "" {
		return c.userID
	}
	return c.subject
}

// Role returns the parsed role claim, RoleNone when missing or unknown
func (c *Claims) Role() Role {
	if c == nil {
		return RoleNone
	}
	role, _ := ParseRole(c.role)
	return role
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.issuedAt
}

// ExpiresAt returns the expiration time
func (c *Claims) ExpiresAt() time.Time {
	if !c.HasExpiry() {
		return time.Time{}
	}
	return time.UnixMilli(c.expMillis)
}

// ExpiresAtMillis returns exp converted to epoch milliseconds, 0 when missing.
// Values beyond the int64 range saturate.
func (c *Claims) ExpiresAtMillis() int64 {
	if !c.HasExpiry() {
		return 0
	}
	return c.expMillis
}

// HasExpiry reports whether the payload carried a numeric exp claim
func (c *Claims) HasExpiry() bool {
	return c != nil && c.hasExp
}

// stringClaim accepts strings and JSON numbers.
func stringClaim(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}

// secondsToMillis converts a NumericDate to epoch milliseconds, saturating at
// the int64 bounds. Fractional seconds round up so that the exclusive expiry
// comparison holds on whole milliseconds.
func secondsToMillis(n json.Number) (int64, bool) {
	if i, err := n.Int64(); err == nil {
		switch {
		case i > math.MaxInt64/1000:
			return math.MaxInt64, true
		case i < math.MinInt64/1000:
			return math.MinInt64, true
		}
		return i * 1000, true
	}

	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil && !math.IsInf(f, 0) {
		return 0, false
	}
	ms := math.Ceil(f * 1000)
	switch {
	case ms >= math.MaxInt64:
		return math.MaxInt64, true
	case ms <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(ms), true
}
