package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-client"
)

func TestSessionPolicyExpiryBoundary(t *testing.T) {
	policy := auth.NewSessionPolicy(nil)
	exp := int64(1_750_000_000)
	token := expToken(exp, "CLIENT")
	expMillis := exp * 1000

	tests := []struct {
		name          string
		nowMillis     int64
		authenticated bool
	}{
		{name: "one millisecond before exp", nowMillis: expMillis - 1, authenticated: true},
		{name: "exactly exp", nowMillis: expMillis, authenticated: false},
		{name: "after exp", nowMillis: expMillis + 1, authenticated: false},
		{name: "long before exp", nowMillis: expMillis - int64(time.Hour/time.Millisecond), authenticated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.UnixMilli(tt.nowMillis)
			s := policy.Evaluate(token, now)
			assert.True(t, s.Present)
			assert.Equal(t, !tt.authenticated, s.Expired)
			assert.Equal(t, tt.authenticated, policy.IsAuthenticated(token, now))
			assert.Equal(t, tt.authenticated, s.IsAuthenticated())
			assert.Equal(t, !tt.authenticated, s.NeedsPurge())
		})
	}
}

func TestSessionPolicyAbsent(t *testing.T) {
	policy := auth.NewSessionPolicy(nil)
	now := time.Now()

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"no exp":    rawToken(`{"sub":"a","role":"SELLER"}`),
		"bad exp":   rawToken(`{"exp":"soon"}`),
		"not json":  "a.b.c",
		"array exp": rawToken(`{"exp":[1]}`),
	} {
		t.Run(name, func(t *testing.T) {
			s := policy.Evaluate(token, now)
			assert.Equal(t, auth.SessionAbsent, s.State)
			assert.False(t, s.Present)
			assert.False(t, s.IsAuthenticated())
			assert.False(t, s.HasRole(auth.RoleSeller))
			assert.True(t, s.NeedsPurge())
		})
	}
}

func TestSessionPolicyHasRole(t *testing.T) {
	policy := auth.NewSessionPolicy(nil)
	now := time.Unix(1_700_000_000, 0)
	future := now.Add(time.Hour).Unix()
	past := now.Add(-time.Hour).Unix()

	tests := []struct {
		name   string
		token  string
		role   auth.Role
		expect bool
	}{
		{name: "seller has seller", token: expToken(future, "SELLER"), role: auth.RoleSeller, expect: true},
		{name: "lower case claim", token: expToken(future, "seller"), role: auth.RoleSeller, expect: true},
		{name: "client lacks seller", token: expToken(future, "CLIENT"), role: auth.RoleSeller, expect: false},
		{name: "client has client", token: expToken(future, "CLIENT"), role: auth.RoleClient, expect: true},
		{name: "expired seller", token: expToken(past, "SELLER"), role: auth.RoleSeller, expect: false},
		{name: "unknown role", token: expToken(future, "ADMIN"), role: auth.RoleSeller, expect: false},
		{name: "none never matches", token: expToken(future, ""), role: auth.RoleNone, expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, policy.HasRole(tt.token, now, tt.role))
		})
	}
}

func TestSessionFields(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	id := uuid.New()
	token := mintToken(t, now, auth.RoleSeller, time.Hour, id.String())

	s := auth.NewSessionPolicy(nil).Evaluate(token, now)
	require.Equal(t, auth.SessionValid, s.State)
	assert.Equal(t, id.String()+"@shop.test", s.Subject)
	assert.Equal(t, now.Add(time.Hour).Unix(), s.ExpiresAt.Unix())
	assert.Equal(t, now.Unix(), s.IssuedAt.Unix())

	parsed, err := s.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Contains(t, s.String(), "state=valid")
	assert.Contains(t, s.String(), "role=SELLER")

	expired := auth.NewSessionPolicy(nil).Evaluate(token, now.Add(2*time.Hour))
	assert.Equal(t, auth.SessionExpired, expired.State)
	assert.Equal(t, auth.RoleSeller, expired.Role)
	assert.False(t, expired.HasRole(auth.RoleSeller))
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]auth.Role{
		"CLIENT":   auth.RoleClient,
		"client":   auth.RoleClient,
		" Seller ": auth.RoleSeller,
	} {
		got, ok := auth.ParseRole(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	got, ok := auth.ParseRole("admin")
	assert.False(t, ok)
	assert.Equal(t, auth.RoleNone, got)

	assert.True(t, auth.RoleSeller.CanManageCatalogue())
	assert.False(t, auth.RoleClient.CanManageCatalogue())
	assert.ElementsMatch(t, []auth.Role{auth.RoleClient, auth.RoleSeller}, auth.GetAllRoles())
}

func TestSessionPolicyFarFutureExpiry(t *testing.T) {
	policy := auth.NewSessionPolicy(nil)
	now := time.Unix(1_700_000_000, 0)

	for _, exp := range []string{"9300000000000000", "1e19", "1e400"} {
		t.Run(exp, func(t *testing.T) {
			token := rawToken(`{"exp":` + exp + `,"role":"SELLER"}`)
			s := policy.Evaluate(token, now)
			assert.Equal(t, auth.SessionValid, s.State)
			assert.False(t, s.Expired)
			assert.True(t, s.HasRole(auth.RoleSeller))
		})
	}

	s := policy.Evaluate(rawToken(`{"exp":-1e19}`), now)
	assert.Equal(t, auth.SessionExpired, s.State)
}
