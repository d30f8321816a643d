package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState is the outcome of a session evaluation.
type SessionState string

const (
	SessionAbsent  SessionState = "absent"
	SessionExpired SessionState = "expired"
	SessionValid   SessionState = "valid"
)

// Session is the derived, point-in-time judgment of a token. It is never
// stored; recompute it whenever a decision is needed.
type Session struct {
	State     SessionState
	Present   bool
	Expired   bool
	Role      Role
	UserID    string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AbsentSession is the judgment for missing or malformed tokens.
func AbsentSession() Session {
	return Session{State: SessionAbsent}
}

// IsAuthenticated reports a present, unexpired session
func (s Session) IsAuthenticated() bool {
	return s.Present && !s.Expired
}

// HasRole checks that the session is authenticated with role
func (s Session) HasRole(role Role) bool {
	return s.IsAuthenticated() && s.Role != RoleNone && s.Role == role
}

// NeedsPurge reports whether the stored token should be cleared
func (s Session) NeedsPurge() bool {
	return s.State != SessionValid
}

// UserUUID parses the user id as a UUID
func (s Session) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s Session) String() string {
	expires := "<none>"
	if !s.ExpiresAt.IsZero() {
		expires = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("state=%s user=%s role=%s exp=%s", s.State, s.UserID, s.Role, expires)
}
