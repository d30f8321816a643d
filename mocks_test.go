package auth_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-client"
)

var testSecret = []byte("storefront-test-secret")

// rawToken builds header.payload.signature around an arbitrary payload.
func rawToken(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".c2lnbmF0dXJl"
}

// expToken returns an unsigned token expiring at exp seconds.
func expToken(exp int64, role string) string {
	return rawToken(fmt.Sprintf(`{"sub":"ana@shop.test","userId":"u-1","role":%q,"iat":%d,"exp":%d}`, role, exp-3600, exp))
}

func mintToken(t *testing.T, now time.Time, role auth.Role, ttl time.Duration, userID string) string {
	t.Helper()
	token, _, err := auth.NewTokenMinter(testSecret, auth.WithMinterClock(func() time.Time { return now })).Mint(auth.MintOptions{
		Subject: userID + "@shop.test",
		UserID:  userID,
		Role:    role,
		TTL:     ttl,
	})
	require.NoError(t, err)
	return token
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *activityRecorder) Of(eventType auth.ActivityEventType) []auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []auth.ActivityEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// faultyStore wraps a memory store and injects errors.
type faultyStore struct {
	*auth.MemoryTokenStore
	readErr  error
	saveErr  error
	clearErr error
}

func (s *faultyStore) Read(ctx context.Context) (string, error) {
	if s.readErr != nil {
		return "", s.readErr
	}
	return s.MemoryTokenStore.Read(ctx)
}

func (s *faultyStore) Save(ctx context.Context, token string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryTokenStore.Save(ctx, token)
}

func (s *faultyStore) Clear(ctx context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryTokenStore.Clear(ctx)
}

// MockAuthGateway implements auth.AuthGateway
type MockAuthGateway struct {
	mock.Mock
}

func (m *MockAuthGateway) Login(ctx context.Context, credentials auth.Credentials) (string, error) {
	args := m.Called(ctx, credentials)
	return args.String(0), args.Error(1)
}

func (m *MockAuthGateway) Register(ctx context.Context, registration auth.Registration) (string, error) {
	args := m.Called(ctx, registration)
	return args.String(0), args.Error(1)
}

type profileReply struct {
	profile *auth.UserProfile
	err     error
}

type pendingProfile struct {
	token string
	reply chan profileReply
}

func (p pendingProfile) Resolve(profile *auth.UserProfile) {
	p.reply <- profileReply{profile: profile}
}

func (p pendingProfile) Fail(err error) {
	p.reply <- profileReply{err: err}
}

// controlledProfiles blocks every fetch until the test resolves it. With
// ignoreCancel set, fetches keep waiting after their context is cancelled,
// which simulates a response that arrives late.
type controlledProfiles struct {
	calls        chan pendingProfile
	ignoreCancel bool
}

func newControlledProfiles() *controlledProfiles {
	return &controlledProfiles{calls: make(chan pendingProfile, 16)}
}

func (c *controlledProfiles) GetProfile(ctx context.Context, token string) (*auth.UserProfile, error) {
	p := pendingProfile{token: token, reply: make(chan profileReply, 1)}
	c.calls <- p

	if c.ignoreCancel {
		r := <-p.reply
		return r.profile, r.err
	}

	select {
	case r := <-p.reply:
		return r.profile, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *controlledProfiles) Next(t *testing.T) pendingProfile {
	t.Helper()
	select {
	case p := <-c.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("expected a profile fetch")
		return pendingProfile{}
	}
}

func (c *controlledProfiles) AssertNoCall(t *testing.T) {
	t.Helper()
	select {
	case p := <-c.calls:
		t.Fatalf("unexpected profile fetch for %q", p.token)
	case <-time.After(50 * time.Millisecond):
	}
}

func staticProfiles(profile *auth.UserProfile) auth.ProfileProvider {
	return auth.ProfileProviderFunc(func(context.Context, string) (*auth.UserProfile, error) {
		return profile.Clone(), nil
	})
}
