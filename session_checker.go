package auth

import (
	"context"
	"time"
)

// SessionChecker reads the token slot and judges it with a SessionPolicy.
// Absent-with-residue and expired tokens are cleared from the store on the
// spot, so a corrupt slot heals on the next check.
type SessionChecker struct {
	store    TokenStore
	policy   *SessionPolicy
	now      func() time.Time
	logger   Logger
	activity ActivitySink
	metrics  *Metrics
}

// CheckerOption customizes a SessionChecker.
type CheckerOption func(*SessionChecker)

// WithCheckerClock injects a custom clock (useful for tests).
func WithCheckerClock(clock func() time.Time) CheckerOption {
	return func(c *SessionChecker) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithCheckerPolicy overrides the default policy.
func WithCheckerPolicy(policy *SessionPolicy) CheckerOption {
	return func(c *SessionChecker) {
		if policy != nil {
			c.policy = policy
		}
	}
}

// WithCheckerLogger overrides the logger.
func WithCheckerLogger(logger Logger) CheckerOption {
	return func(c *SessionChecker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckerActivitySink sets the sink notified when tokens are purged.
func WithCheckerActivitySink(sink ActivitySink) CheckerOption {
	return func(c *SessionChecker) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithCheckerMetrics records evaluations and purges.
func WithCheckerMetrics(m *Metrics) CheckerOption {
	return func(c *SessionChecker) {
		c.metrics = m
	}
}

// NewSessionChecker binds store to a policy and the wall clock.
func NewSessionChecker(store TokenStore, opts ...CheckerOption) *SessionChecker {
	c := &SessionChecker{
		store:    store,
		policy:   NewSessionPolicy(nil),
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Store returns the token store the checker reads.
func (c *SessionChecker) Store() TokenStore {
	return c.store
}

// Now returns the checker's current time.
func (c *SessionChecker) Now() time.Time {
	return c.now()
}

// Current evaluates the stored token.
func (c *SessionChecker) Current(ctx context.Context) Session {
	s, _ := c.check(ctx)
	return s
}

// IsAuthenticated reports a present, unexpired stored token.
func (c *SessionChecker) IsAuthenticated(ctx context.Context) bool {
	return c.Current(ctx).IsAuthenticated()
}

// HasRole reports an authenticated stored token carrying role.
func (c *SessionChecker) HasRole(ctx context.Context, role Role) bool {
	return c.Current(ctx).HasRole(role)
}

// check returns the session along with the token it was computed from. The
// token is empty whenever the session is not valid.
func (c *SessionChecker) check(ctx context.Context) (Session, string) {
	token, err := c.store.Read(ctx)
	if err != nil {
		c.logger.Error("token store read failed, treating session as absent", "error", err)
		token = ""
	}

	s := c.policy.Evaluate(token, c.now())
	c.metrics.observeSession(s)

	if token != "" && s.NeedsPurge() {
		c.purge(ctx, s)
		return s, ""
	}

	if !s.IsAuthenticated() {
		return s, ""
	}
	return s, token
}

func (c *SessionChecker) purge(ctx context.Context, s Session) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("token purge failed", "state", s.State, "error", err)
		return
	}
	c.metrics.incPurge()
	c.logger.Debug("stored token purged", "state", s.State, "user_id", s.UserID)
	recordActivity(ctx, c.activity, c.logger, c.now, ActivityEvent{
		EventType: ActivityEventSessionPurged,
		UserID:    s.UserID,
		Role:      s.Role,
		Metadata:  map[string]any{"state": string(s.State)},
	})
}
