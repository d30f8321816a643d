package auth

import (
	"context"
	"time"
)

// AuthService drives login, registration and logout. A new token is always
// written to the store before the broadcaster is asked to republish.
type AuthService struct {
	gateway     AuthGateway
	store       TokenStore
	broadcaster *StateBroadcaster
	codec       *TokenCodec
	navigator   Navigator
	homeRoute   string
	loginRoute  string
	logger      Logger
	activity    ActivitySink
	now         func() time.Time
}

// ServiceOption customizes an AuthService.
type ServiceOption func(*AuthService)

// WithServiceNavigator sets the navigator used after a successful login.
func WithServiceNavigator(n Navigator) ServiceOption {
	return func(s *AuthService) {
		if n != nil {
			s.navigator = n
		}
	}
}

// WithServiceConfig reads the home and login routes from cfg.
func WithServiceConfig(cfg Config) ServiceOption {
	return func(s *AuthService) {
		if cfg == nil {
			return
		}
		if cfg.GetHomeRoute() != "" {
			s.homeRoute = cfg.GetHomeRoute()
		}
		if cfg.GetLoginRoute() != "" {
			s.loginRoute = cfg.GetLoginRoute()
		}
	}
}

// WithServiceCodec overrides the codec used to vet gateway tokens.
func WithServiceCodec(codec *TokenCodec) ServiceOption {
	return func(s *AuthService) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithServiceLogger overrides the logger.
func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceActivitySink records login and registration outcomes.
func WithServiceActivitySink(sink ActivitySink) ServiceOption {
	return func(s *AuthService) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithServiceClock injects a custom clock for activity timestamps.
func WithServiceClock(clock func() time.Time) ServiceOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewAuthService wires the gateway to the broadcaster's token store.
func NewAuthService(gateway AuthGateway, broadcaster *StateBroadcaster, opts ...ServiceOption) *AuthService {
	s := &AuthService{
		gateway:     gateway,
		store:       broadcaster.checker.Store(),
		broadcaster: broadcaster,
		codec:       broadcaster.checker.policy.Codec(),
		navigator:   broadcaster.navigator,
		homeRoute:   DefaultHomeRoute,
		loginRoute:  broadcaster.loginRoute,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Login validates creds, exchanges them for a token, stores it and publishes
// the new state. On success the navigator is sent to the home route.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (AuthState, error) {
	if err := creds.Validate(); err != nil {
		return s.loginFailed(ctx, creds.Email, WrapError(ErrInvalidCredentials, err))
	}

	token, err := s.gateway.Login(ctx, creds)
	if err != nil {
		return s.loginFailed(ctx, creds.Email, err)
	}

	if !s.codec.IsWellFormed(token) {
		return s.loginFailed(ctx, creds.Email, WrapError(ErrTokenMalformed, nil).WithMetadata(map[string]any{
			"source": "gateway",
		}))
	}

	if err := s.store.Save(ctx, token); err != nil {
		return s.loginFailed(ctx, creds.Email, WrapError(ErrStoreUnavailable, err))
	}

	state := s.broadcaster.Refresh(ctx)
	if !state.IsAuthenticated {
		// token was already expired by the time it was stored
		return s.loginFailed(ctx, creds.Email, WrapError(ErrTokenExpired, nil))
	}

	claims, _ := s.codec.Decode(token)
	recordActivity(ctx, s.activity, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    claims.UserID(),
		Role:      claims.Role(),
		Metadata:  map[string]any{"email": creds.Email},
	})

	s.navigator.Navigate(s.homeRoute)
	return state, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string, err error) (AuthState, error) {
	s.logger.Warn("login failed", "email", email, "error", err)
	recordActivity(ctx, s.activity, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Metadata:  map[string]any{"email": email, "error": err.Error()},
	})
	return s.broadcaster.Current(), err
}

// Register validates reg and creates the account. It returns the new user id.
// Registration does not sign the user in; on success the navigator is sent to
// the login route.
func (s *AuthService) Register(ctx context.Context, reg Registration) (string, error) {
	if err := reg.Validate(); err != nil {
		return "", s.registerFailed(ctx, reg, WrapError(ErrInvalidCredentials, err))
	}

	id, err := s.gateway.Register(ctx, reg)
	if err != nil {
		return "", s.registerFailed(ctx, reg, err)
	}

	recordActivity(ctx, s.activity, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventRegisterSuccess,
		UserID:    id,
		Role:      reg.Role,
		Metadata:  map[string]any{"email": reg.Email},
	})

	s.navigator.Navigate(s.loginRoute)
	return id, nil
}

func (s *AuthService) registerFailed(ctx context.Context, reg Registration, err error) error {
	s.logger.Warn("registration failed", "email", reg.Email, "error", err)
	recordActivity(ctx, s.activity, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventRegisterFailure,
		Role:      reg.Role,
		Metadata:  map[string]any{"email": reg.Email, "error": err.Error()},
	})
	return err
}

// Logout clears the session through the broadcaster.
func (s *AuthService) Logout(ctx context.Context) AuthState {
	return s.broadcaster.Logout(ctx)
}

// State returns the latest published state.
func (s *AuthService) State() AuthState {
	return s.broadcaster.Current()
}
