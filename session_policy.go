package auth

import "time"

// SessionPolicy turns a token and an instant into a Session. It holds no
// state besides the codec.
type SessionPolicy struct {
	codec *TokenCodec
}

// NewSessionPolicy returns a policy using codec, or a default codec when nil.
func NewSessionPolicy(codec *TokenCodec) *SessionPolicy {
	if codec == nil {
		codec = NewTokenCodec()
	}
	return &SessionPolicy{codec: codec}
}

// Codec returns the codec used by the policy.
func (p *SessionPolicy) Codec() *TokenCodec {
	return p.codec
}

// Evaluate judges token at now. Expiry is exclusive of the current instant:
// a token whose exp equals now is expired.
func (p *SessionPolicy) Evaluate(token string, now time.Time) Session {
	if token == "" {
		return AbsentSession()
	}

	claims, err := p.codec.Decode(token)
	if err != nil || !claims.HasExpiry() {
		return AbsentSession()
	}

	s := Session{
		State:     SessionValid,
		Present:   true,
		Role:      claims.Role(),
		UserID:    claims.UserID(),
		Subject:   claims.Subject(),
		IssuedAt:  claims.IssuedAt(),
		ExpiresAt: claims.ExpiresAt(),
	}

	if now.UnixMilli() >= claims.ExpiresAtMillis() {
		s.State = SessionExpired
		s.Expired = true
	}

	return s
}

// IsAuthenticated is true for a present, unexpired token.
func (p *SessionPolicy) IsAuthenticated(token string, now time.Time) bool {
	return p.Evaluate(token, now).IsAuthenticated()
}

// HasRole is true when the token is authenticated and carries role.
func (p *SessionPolicy) HasRole(token string, now time.Time, role Role) bool {
	return p.Evaluate(token, now).HasRole(role)
}
