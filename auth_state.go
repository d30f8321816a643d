package auth

// UserProfile is the profile of the signed in user as served by the user
// service.
type UserProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// Equal compares two profiles field by field. Two nil profiles are equal.
func (p *UserProfile) Equal(other *UserProfile) bool {
	if p == nil || other == nil {
		return p == other
	}
	return *p == *other
}

// Clone returns a copy, nil for nil.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// AuthState is the process-wide view of authentication published by the
// StateBroadcaster. Seq grows with every publication.
type AuthState struct {
	IsAuthenticated bool
	User            *UserProfile
	Seq             uint64
}

// Loading reports an authenticated state whose profile has not arrived yet.
func (s AuthState) Loading() bool {
	return s.IsAuthenticated && s.User == nil
}

// SameAs compares states ignoring Seq.
func (s AuthState) SameAs(other AuthState) bool {
	return s.IsAuthenticated == other.IsAuthenticated && s.User.Equal(other.User)
}
