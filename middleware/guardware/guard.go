package guardware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-auth-client"
)

var (
	defaultContextKey = "auth_decision"
	ErrTokenMissing   = errors.New("missing token")
)

// GuardFunc decides whether the route may be reached. auth.Guards methods
// satisfy it.
type GuardFunc func(ctx context.Context, route auth.Route) auth.Decision

type Config struct {
	Filter func(*fiber.Ctx) bool
	// Guard is required
	Guard GuardFunc
	// SuccessHandler runs on allow, defaults to c.Next
	SuccessHandler fiber.Handler
	// DeniedHandler runs on deny, defaults to 403
	DeniedHandler fiber.Handler
	// ContextKey stores the decision in c.Locals
	ContextKey string

	// TokenLookup, when set, evaluates the request token with Policy and
	// passes the session to Guard through the user context.
	// Format: header:Authorization,cookie:user-token,query:token
	TokenLookup string
	AuthScheme  string
	Policy      *auth.SessionPolicy
	Now         func() time.Time

	extractors []TokenExtractor
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		ctx := c.UserContext()
		if len(cfg.extractors) > 0 {
			token, _ := ExtractToken(c, cfg.extractors)
			ctx = auth.WithSession(ctx, cfg.Policy.Evaluate(token, cfg.Now()))
			c.SetUserContext(ctx)
		}

		d := cfg.Guard(ctx, auth.NewRoute(c.OriginalURL()))
		c.Locals(cfg.ContextKey, d)

		switch d.Kind {
		case auth.DecisionAllow:
			return cfg.SuccessHandler(c)
		case auth.DecisionRedirect:
			return c.Redirect(d.Location(), redirectStatus(c.Method()))
		default:
			return cfg.DeniedHandler(c)
		}
	}
}

// DecisionFromLocals returns the decision stored by the middleware.
func DecisionFromLocals(c *fiber.Ctx, key ...string) (auth.Decision, bool) {
	k := defaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	d, ok := c.Locals(k).(auth.Decision)
	return d, ok
}

// 303 makes the browser follow a non GET request with a GET.
func redirectStatus(method string) int {
	switch method {
	case fiber.MethodGet, fiber.MethodHead:
		return fiber.StatusFound
	default:
		return fiber.StatusSeeOther
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Guard == nil {
		panic("AUTH: guard middleware configuration: Guard is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusForbidden).SendString("Forbidden")
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}

	if cfg.TokenLookup != "" {
		if cfg.AuthScheme == "" {
			cfg.AuthScheme = "Bearer"
		}
		if cfg.Policy == nil {
			cfg.Policy = auth.NewSessionPolicy(nil)
		}
		if cfg.Now == nil {
			cfg.Now = time.Now
		}
		cfg.extractors = GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
	}

	return cfg
}

type TokenExtractor func(c *fiber.Ctx) (string, error)

// ExtractToken returns the first token found by extractors.
func ExtractToken(c *fiber.Ctx, extractors []TokenExtractor) (string, error) {
	err := ErrTokenMissing
	for _, extractor := range extractors {
		var raw string
		raw, err = extractor(c)
		if raw != "" && err == nil {
			return raw, nil
		}
	}
	return "", err
}

func GetExtractors(tokenLookup string, authScheme string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	// header:Authorization,cookie:user-token,query:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

func tokenFromHeader(header string, authScheme string) TokenExtractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			if a == "" {
				return "", ErrTokenMissing
			}
			return strings.TrimSpace(a), nil
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissing
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}
}
