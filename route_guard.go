package auth

import (
	"context"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
)

// Route is a navigation target as seen by the routing layer.
type Route struct {
	Path  string
	Query url.Values
}

// NewRoute parses a path with an optional query string. Unparseable input
// keeps the raw value as the path.
func NewRoute(raw string) Route {
	u, err := url.Parse(raw)
	if err != nil {
		return Route{Path: raw}
	}
	return Route{Path: u.Path, Query: u.Query()}
}

// URL renders the route back to path and query.
func (r Route) URL() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + encodeQuery(r.Query)
}

// DecisionKind is the outcome of a guard.
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionDeny
	DecisionRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is what a guard tells the routing layer to do.
type Decision struct {
	Kind   DecisionKind
	Target string
	Query  url.Values
}

// Allow lets the navigation through.
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// Deny blocks the navigation; the caller picks the fallback view.
func Deny() Decision {
	return Decision{Kind: DecisionDeny}
}

// RedirectTo sends the navigation to target with query parameters.
func RedirectTo(target string, query url.Values) Decision {
	return Decision{Kind: DecisionRedirect, Target: target, Query: query}
}

// Allowed reports an allow decision
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllow
}

// Location renders the redirect target, e.g. /login?returnUrl=/dashboard.
// It is empty for non redirect decisions.
func (d Decision) Location() string {
	if d.Kind != DecisionRedirect {
		return ""
	}
	return Route{Path: d.Target, Query: d.Query}.URL()
}

// RouteRules describes which routes are public and where to send
// unauthenticated users.
type RouteRules struct {
	PublicRoutes   []string
	LoginRoute     string
	ReturnURLParam string
	RequiredRole   Role
}

// DefaultRouteRules mirrors DefaultConfig.
func DefaultRouteRules() RouteRules {
	return RulesFromConfig(DefaultConfig())
}

// RulesFromConfig builds rules from cfg, filling blanks with defaults.
func RulesFromConfig(cfg Config) RouteRules {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	rules := RouteRules{
		PublicRoutes:   cfg.GetPublicRoutes(),
		LoginRoute:     cfg.GetLoginRoute(),
		ReturnURLParam: cfg.GetReturnURLParam(),
	}
	if role, ok := ParseRole(cfg.GetRequiredRole()); ok {
		rules.RequiredRole = role
	}
	return rules.withDefaults()
}

func (r RouteRules) withDefaults() RouteRules {
	if r.LoginRoute == "" {
		r.LoginRoute = DefaultLoginRoute
	}
	if r.ReturnURLParam == "" {
		r.ReturnURLParam = DefaultReturnURLParam
	}
	if r.RequiredRole == RoleNone {
		r.RequiredRole = RoleSeller
	}
	return r
}

// IsPublic matches p against the public patterns. A pattern ending in /*
// matches any path below its prefix.
func (r RouteRules) IsPublic(p string) bool {
	p = cleanPath(p)
	for _, pattern := range r.PublicRoutes {
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(p, cleanPath(prefix)+"/") {
				return true
			}
			continue
		}
		if p == cleanPath(pattern) {
			return true
		}
	}
	return false
}

func (r RouteRules) loginRedirect(route Route) Decision {
	return RedirectTo(r.LoginRoute, url.Values{r.ReturnURLParam: []string{route.URL()}})
}

// AuthGuard allows public routes, allows authenticated sessions, and
// otherwise redirects to login keeping the requested route as return target.
func AuthGuard(rules RouteRules, route Route, session Session) Decision {
	rules = rules.withDefaults()
	if rules.IsPublic(route.Path) {
		return Allow()
	}
	if session.IsAuthenticated() {
		return Allow()
	}
	return rules.loginRedirect(route)
}

// AuthorizationGuard allows only authenticated sessions with the required
// role. Unauthenticated sessions are redirected to login; authenticated
// sessions with another role are denied without redirect.
func AuthorizationGuard(rules RouteRules, route Route, session Session) Decision {
	rules = rules.withDefaults()
	if !session.IsAuthenticated() {
		return rules.loginRedirect(route)
	}
	if !session.HasRole(rules.RequiredRole) {
		return Deny()
	}
	return Allow()
}

// Guards binds the guard functions to a session source for routing adapters.
// Guards read the session only; they never publish auth state.
type Guards struct {
	rules    RouteRules
	sessions SessionSource
	logger   Logger
	activity ActivitySink
	metrics  *Metrics
	now      func() time.Time
}

// GuardOption customizes Guards.
type GuardOption func(*Guards)

// WithGuardLogger overrides the logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guards) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardActivitySink records denied navigations.
func WithGuardActivitySink(sink ActivitySink) GuardOption {
	return func(g *Guards) {
		g.activity = normalizeActivitySink(sink)
	}
}

// WithGuardMetrics counts decisions.
func WithGuardMetrics(m *Metrics) GuardOption {
	return func(g *Guards) {
		g.metrics = m
	}
}

// NewGuards returns guards reading sessions from source.
func NewGuards(source SessionSource, rules RouteRules, opts ...GuardOption) *Guards {
	g := &Guards{
		rules:    rules.withDefaults(),
		sessions: source,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Rules returns the rules in effect.
func (g *Guards) Rules() RouteRules {
	return g.rules
}

// Auth runs AuthGuard against the current session. Public routes do not
// touch the session source.
func (g *Guards) Auth(ctx context.Context, route Route) Decision {
	var d Decision
	if g.rules.IsPublic(route.Path) {
		d = Allow()
	} else {
		d = AuthGuard(g.rules, route, g.current(ctx))
	}
	g.observe(ctx, "auth", route, d)
	return d
}

// Authorize runs AuthorizationGuard against the current session.
func (g *Guards) Authorize(ctx context.Context, route Route) Decision {
	d := AuthorizationGuard(g.rules, route, g.current(ctx))
	g.observe(ctx, "authorization", route, d)
	return d
}

func (g *Guards) current(ctx context.Context) Session {
	if s, ok := SessionFromContext(ctx); ok {
		return s
	}
	if g.sessions == nil {
		return AbsentSession()
	}
	return g.sessions.Current(ctx)
}

func (g *Guards) observe(ctx context.Context, guard string, route Route, d Decision) {
	g.metrics.observeDecision(guard, d)
	if d.Allowed() {
		return
	}
	g.logger.Debug("navigation blocked", "guard", guard, "route", route.URL(), "decision", d.Kind)
	recordActivity(ctx, g.activity, g.logger, g.now, ActivityEvent{
		EventType: ActivityEventGuardDenied,
		Route:     route.URL(),
		Metadata:  map[string]any{"guard": guard, "decision": d.Kind.String(), "location": d.Location()},
	})
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// encodeQuery renders values with sorted keys, leaving slashes readable so a
// return target stays a plain path.
func encodeQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(escapeQueryComponent(k))
			b.WriteByte('=')
			b.WriteString(escapeQueryComponent(v))
		}
	}
	return b.String()
}

func escapeQueryComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%2F", "/")
}
