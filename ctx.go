package auth

import "context"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the Session in the given context. Guards prefer a session
// found in the context over reading the token store.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// SessionSourceFunc adapts a function into a SessionSource.
type SessionSourceFunc func(ctx context.Context) Session

// Current satisfies the SessionSource interface.
func (f SessionSourceFunc) Current(ctx context.Context) Session {
	if f == nil {
		return AbsentSession()
	}
	return f(ctx)
}
