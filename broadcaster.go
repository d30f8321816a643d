package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StateBroadcaster owns the published AuthState. It is the single writer;
// UI regions hold read-only Subscriptions.
type StateBroadcaster struct {
	checker    *SessionChecker
	profiles   ProfileProvider
	navigator  Navigator
	loginRoute string
	logger     Logger
	activity   ActivitySink
	metrics    *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// opMu serializes store read/clear with the publication that follows.
	opMu sync.Mutex

	mu       sync.Mutex
	state    AuthState
	token    string
	pending  *profileFetch
	fetchSeq uint64
	subs     map[uuid.UUID]*Subscription
	closed   bool
}

type profileFetch struct {
	id     uint64
	token  string
	cancel context.CancelFunc
}

// BroadcasterOption customizes a StateBroadcaster.
type BroadcasterOption func(*StateBroadcaster)

// WithNavigator sets the navigator asked to leave the page on logout.
func WithNavigator(n Navigator) BroadcasterOption {
	return func(b *StateBroadcaster) {
		if n != nil {
			b.navigator = n
		}
	}
}

// WithBroadcasterConfig reads the login route from cfg.
func WithBroadcasterConfig(cfg Config) BroadcasterOption {
	return func(b *StateBroadcaster) {
		if cfg != nil && cfg.GetLoginRoute() != "" {
			b.loginRoute = cfg.GetLoginRoute()
		}
	}
}

// WithBroadcasterLogger overrides the logger.
func WithBroadcasterLogger(logger Logger) BroadcasterOption {
	return func(b *StateBroadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBroadcasterActivitySink sets the ActivitySink for logout and profile events.
func WithBroadcasterActivitySink(sink ActivitySink) BroadcasterOption {
	return func(b *StateBroadcaster) {
		b.activity = normalizeActivitySink(sink)
	}
}

// WithBroadcasterMetrics records publications and profile fetches.
func WithBroadcasterMetrics(m *Metrics) BroadcasterOption {
	return func(b *StateBroadcaster) {
		b.metrics = m
	}
}

// WithBroadcasterContext sets the parent context of profile fetches.
func WithBroadcasterContext(ctx context.Context) BroadcasterOption {
	return func(b *StateBroadcaster) {
		if ctx != nil {
			b.ctx = ctx
		}
	}
}

// NewStateBroadcaster creates the broadcaster and publishes the initial
// state from the stored token. When the session is authenticated the profile
// is fetched in the background; profiles may be nil.
func NewStateBroadcaster(checker *SessionChecker, profiles ProfileProvider, opts ...BroadcasterOption) *StateBroadcaster {
	b := &StateBroadcaster{
		checker:    checker,
		profiles:   profiles,
		navigator:  noopNavigator{},
		loginRoute: DefaultLoginRoute,
		logger:     defLogger{},
		activity:   noopActivitySink{},
		ctx:        context.Background(),
		subs:       make(map[uuid.UUID]*Subscription),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.ctx, b.cancel = context.WithCancel(b.ctx)
	b.initialize()
	return b
}

func (b *StateBroadcaster) initialize() {
	b.Refresh(b.ctx)
}

// Current returns the latest published state.
func (b *StateBroadcaster) Current() AuthState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Refresh re-evaluates the stored token and publishes the result. Call it
// after a login has saved a new token.
func (b *StateBroadcaster) Refresh(ctx context.Context) AuthState {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	session, token := b.checker.check(ctx)
	authenticated := session.IsAuthenticated()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return b.state
	}

	if authenticated && token == b.token {
		// same identity: keep the loaded profile or the fetch already in flight
		if b.state.User != nil || b.pending != nil {
			b.publishLocked(AuthState{IsAuthenticated: true, User: b.state.User})
			return b.state
		}
	} else {
		b.cancelPendingLocked()
	}

	b.token = token
	b.publishLocked(AuthState{IsAuthenticated: authenticated})
	if authenticated {
		b.startFetchLocked(token)
	}
	return b.state
}

// UpdateUser replaces the published profile without touching
// IsAuthenticated. It is ignored while logged out.
func (b *StateBroadcaster) UpdateUser(profile *UserProfile) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || !b.state.IsAuthenticated {
		b.logger.Debug("update user ignored, no authenticated session")
		return false
	}

	b.cancelPendingLocked()
	b.publishLocked(AuthState{IsAuthenticated: true, User: profile.Clone()})
	return true
}

// Logout clears the token store, publishes the logged out state and then
// asks the navigator to leave for the login route.
func (b *StateBroadcaster) Logout(ctx context.Context) AuthState {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	if err := b.checker.Store().Clear(ctx); err != nil {
		b.logger.Error("logout failed to clear token store", "error", err)
	}

	b.mu.Lock()
	var userID string
	if b.state.User != nil {
		userID = b.state.User.ID
	}
	b.cancelPendingLocked()
	b.token = ""
	changed := b.publishLocked(AuthState{})
	state := b.state
	b.mu.Unlock()

	if changed {
		recordActivity(ctx, b.activity, b.logger, b.checker.now, ActivityEvent{
			EventType: ActivityEventLogout,
			UserID:    userID,
		})
	}

	b.navigator.Navigate(b.loginRoute)
	return state
}

// Subscribe returns a subscription that immediately holds the latest state.
func (b *StateBroadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id:    uuid.New(),
		owner: b,
		ch:    make(chan AuthState, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub.offer(b.state)
	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Wait blocks until in-flight profile fetches have completed.
func (b *StateBroadcaster) Wait() {
	b.wg.Wait()
}

// Close cancels pending fetches, waits for them and closes all subscriptions.
func (b *StateBroadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.cancelPendingLocked()
	subs := b.subs
	b.subs = make(map[uuid.UUID]*Subscription)
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	for _, sub := range subs {
		sub.close()
	}
}

func (b *StateBroadcaster) unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// publishLocked stores next and offers it to every subscriber. States equal
// to the current one are not published again.
func (b *StateBroadcaster) publishLocked(next AuthState) bool {
	if next.SameAs(b.state) {
		return false
	}
	b.state = AuthState{
		IsAuthenticated: next.IsAuthenticated,
		User:            next.User,
		Seq:             b.state.Seq + 1,
	}
	b.metrics.incPublication()
	for _, sub := range b.subs {
		sub.offer(b.state)
	}
	return true
}

func (b *StateBroadcaster) cancelPendingLocked() {
	if b.pending == nil {
		return
	}
	b.pending.cancel()
	b.pending = nil
}

func (b *StateBroadcaster) startFetchLocked(token string) {
	if b.profiles == nil {
		return
	}
	b.fetchSeq++
	ctx, cancel := context.WithCancel(b.ctx)
	f := &profileFetch{id: b.fetchSeq, token: token, cancel: cancel}
	b.pending = f

	b.wg.Add(1)
	go b.fetch(ctx, f)
}

func (b *StateBroadcaster) fetch(ctx context.Context, f *profileFetch) {
	defer b.wg.Done()
	defer f.cancel()

	profile, err := b.profiles.GetProfile(ctx, f.token)
	if err == nil && profile == nil {
		err = ErrProfileUnavailable
	}

	b.mu.Lock()
	if b.closed || b.pending != f || b.token != f.token {
		b.mu.Unlock()
		b.metrics.observeFetch("stale")
		b.logger.Debug("discarding stale profile response", "fetch_id", f.id)
		return
	}
	b.pending = nil

	if err != nil {
		b.mu.Unlock()
		b.metrics.observeFetch("failed")
		b.logger.Warn("profile fetch failed, keeping session", "error", err)
		recordActivity(ctx, b.activity, b.logger, b.checker.now, ActivityEvent{
			EventType: ActivityEventProfileFailed,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return
	}

	b.publishLocked(AuthState{IsAuthenticated: true, User: profile.Clone()})
	b.mu.Unlock()

	b.metrics.observeFetch("loaded")
	recordActivity(ctx, b.activity, b.logger, b.checker.now, ActivityEvent{
		EventType: ActivityEventProfileLoaded,
		UserID:    profile.ID,
		Role:      profile.Role,
	})
}

// Subscription is a read-only handle on the published AuthState. It holds at
// most one pending state; a newer state replaces an unread older one, so
// readers always move forward.
type Subscription struct {
	id    uuid.UUID
	owner *StateBroadcaster

	mu     sync.Mutex
	ch     chan AuthState
	closed bool
}

// ID identifies the subscription.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// C returns the channel delivering states. It is closed by Close or when the
// broadcaster closes.
func (s *Subscription) C() <-chan AuthState {
	return s.ch
}

// Close detaches the subscription.
func (s *Subscription) Close() {
	if s.owner != nil {
		s.owner.unsubscribe(s.id)
	}
	s.close()
}

func (s *Subscription) offer(state AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- state
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
