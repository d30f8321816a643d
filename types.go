package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth client options
type Config interface {
	GetTokenKey() string
	GetLoginRoute() string
	GetHomeRoute() string
	GetReturnURLParam() string
	GetPublicRoutes() []string
	GetRequiredRole() string
}

// TokenStore persists the current bearer token in a single slot.
// Read returns an empty string when nothing is stored.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Read(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// AuthGateway performs the login and registration calls against the backend.
type AuthGateway interface {
	Login(ctx context.Context, credentials Credentials) (string, error)
	Register(ctx context.Context, registration Registration) (string, error)
}

// ProfileProvider fetches the profile of the user identified by the bearer token.
type ProfileProvider interface {
	GetProfile(ctx context.Context, token string) (*UserProfile, error)
}

// ProfileProviderFunc adapts a function into a ProfileProvider.
type ProfileProviderFunc func(ctx context.Context, token string) (*UserProfile, error)

// GetProfile satisfies the ProfileProvider interface.
func (f ProfileProviderFunc) GetProfile(ctx context.Context, token string) (*UserProfile, error) {
	if f == nil {
		return nil, ErrProfileUnavailable
	}
	return f(ctx, token)
}

// Navigator moves the UI to another route. Navigation itself is owned by the
// host application.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function into a Navigator.
type NavigatorFunc func(path string)

// Navigate satisfies the Navigator interface.
func (f NavigatorFunc) Navigate(path string) {
	if f != nil {
		f(path)
	}
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}

// SessionSource yields the current session judgment.
type SessionSource interface {
	Current(ctx context.Context) Session
}

const (
	DefaultTokenKey       = "user-token"
	DefaultLoginRoute     = "/login"
	DefaultHomeRoute      = "/"
	DefaultReturnURLParam = "returnUrl"
)

// DefaultPublicRoutes are reachable without a session: catalogue, product
// details, login and registration.
var DefaultPublicRoutes = []string{"/", "/login", "/register", "/details/*"}

// DefaultConfig returns the configuration used when none is provided.
func DefaultConfig() Config {
	return defaultConfig{}
}

type defaultConfig struct{}

func (defaultConfig) GetTokenKey() string       { return DefaultTokenKey }
func (defaultConfig) GetLoginRoute() string     { return DefaultLoginRoute }
func (defaultConfig) GetHomeRoute() string      { return DefaultHomeRoute }
func (defaultConfig) GetReturnURLParam() string { return DefaultReturnURLParam }
func (defaultConfig) GetRequiredRole() string   { return string(RoleSeller) }
func (defaultConfig) GetPublicRoutes() []string {
	return append([]string(nil), DefaultPublicRoutes...)
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
