package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	auth "github.com/goliatone/go-auth-client"
)

// EnvPrefix prefixes every environment variable, e.g. STOREFRONT_API_BASE_URL.
const EnvPrefix = "STOREFRONT"

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

const (
	ActivityLog  = "log"
	ActivityJSON = "json"
	ActivityOff  = "off"
)

// Config is the client configuration. It implements auth.Config.
type Config struct {
	Auth  AuthConfig  `yaml:"auth"`
	API   APIConfig   `yaml:"api"`
	Store StoreConfig `yaml:"store"`
	Redis RedisConfig `yaml:"redis"`
	Token TokenConfig `yaml:"token"`
	Log   LogConfig   `yaml:"log"`
}

type AuthConfig struct {
	TokenKey       string   `yaml:"token_key" envconfig:"TOKEN_KEY"`
	LoginRoute     string   `yaml:"login_route" envconfig:"LOGIN_ROUTE"`
	HomeRoute      string   `yaml:"home_route" envconfig:"HOME_ROUTE"`
	ReturnURLParam string   `yaml:"return_url_param" envconfig:"RETURN_URL_PARAM"`
	PublicRoutes   []string `yaml:"public_routes" envconfig:"PUBLIC_ROUTES"`
	RequiredRole   string   `yaml:"required_role" envconfig:"REQUIRED_ROLE"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER"`
	DSN    string `yaml:"dsn" envconfig:"DSN"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"ADDR"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

type TokenConfig struct {
	// SigningSecret enables HMAC verification and the dev minter.
	SigningSecret string        `yaml:"signing_secret" envconfig:"SIGNING_SECRET"`
	JWKSURL       string        `yaml:"jwks_url" envconfig:"JWKS_URL"`
	JWKSRefresh   time.Duration `yaml:"jwks_refresh" envconfig:"JWKS_REFRESH"`
}

type LogConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
	// Activity selects the activity sink: log, json or off.
	Activity string `yaml:"activity" envconfig:"ACTIVITY"`
}

// Defaults returns the configuration used before any file or env is applied.
func Defaults() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenKey:       auth.DefaultTokenKey,
			LoginRoute:     auth.DefaultLoginRoute,
			HomeRoute:      auth.DefaultHomeRoute,
			ReturnURLParam: auth.DefaultReturnURLParam,
			PublicRoutes:   append([]string(nil), auth.DefaultPublicRoutes...),
			RequiredRole:   string(auth.RoleSeller),
		},
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			DSN:    "file:storefront-auth.db?cache=shared",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Token: TokenConfig{
			JWKSRefresh: time.Hour,
		},
		Log: LogConfig{
			Level:    "info",
			Activity: ActivityLog,
		},
	}
}

// Load builds the configuration in layers: defaults, the YAML file at path
// (skipped when empty or missing), then STOREFRONT_* environment variables.
// envFiles are loaded into the environment first; without them a .env in the
// working directory is used when present.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("loading env files: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := Defaults()

	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	if _, ok := auth.ParseRole(c.Auth.RequiredRole); !ok {
		return fmt.Errorf("unsupported required role %q", c.Auth.RequiredRole)
	}

	if c.Auth.LoginRoute == "" || !strings.HasPrefix(c.Auth.LoginRoute, "/") {
		return fmt.Errorf("login route must be an absolute path, got %q", c.Auth.LoginRoute)
	}

	c.Log.Activity = strings.ToLower(strings.TrimSpace(c.Log.Activity))
	switch c.Log.Activity {
	case ActivityLog, ActivityJSON, ActivityOff:
	default:
		return fmt.Errorf("unsupported activity sink %q", c.Log.Activity)
	}

	if c.API.Timeout < 0 {
		return errors.New("api timeout must be non-negative")
	}

	return nil
}

func (c *Config) GetTokenKey() string       { return c.Auth.TokenKey }
func (c *Config) GetLoginRoute() string     { return c.Auth.LoginRoute }
func (c *Config) GetHomeRoute() string      { return c.Auth.HomeRoute }
func (c *Config) GetReturnURLParam() string { return c.Auth.ReturnURLParam }
func (c *Config) GetRequiredRole() string   { return c.Auth.RequiredRole }
func (c *Config) GetPublicRoutes() []string {
	return append([]string(nil), c.Auth.PublicRoutes...)
}

var _ auth.Config = (*Config)(nil)
