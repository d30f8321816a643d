package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-auth-client"
)

const keyNamespace = "storefront:auth"

// Cmdable is the subset of redis commands the store needs. *redis.Client
// satisfies it.
type Cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Store implements auth.TokenStore with a single redis key, so several
// processes share one session slot.
type Store struct {
	client Cmdable
	raw    *redis.Client
	key    string
	ttl    time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithSlot sets the slot name, auth.DefaultTokenKey by default.
func WithSlot(slot string) Option {
	return func(s *Store) {
		if slot != "" {
			s.key = Key(slot)
		}
	}
}

// WithTTL expires the stored token after ttl. Zero keeps it until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// Key returns the namespaced redis key for slot.
func Key(slot string) string {
	return fmt.Sprintf("%s:%s", keyNamespace, slot)
}

// New wraps an existing client.
func New(client Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		key:    Key(auth.DefaultTokenKey),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connect dials redis with opts and verifies connectivity.
func Connect(ctx context.Context, opts *redis.Options, storeOpts ...Option) (*Store, error) {
	if opts == nil || opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, storeError(fmt.Errorf("ping redis: %w", err))
	}
	s := New(raw, storeOpts...)
	s.raw = raw
	return s, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save implements auth.TokenStore.
func (s *Store) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return storeError(err)
	}
	return nil
}

// Read implements auth.TokenStore.
func (s *Store) Read(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", storeError(err)
	}
	return token, nil
}

// Clear implements auth.TokenStore.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return storeError(err)
	}
	return nil
}

// Close closes the connection opened by Connect.
func (s *Store) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

func storeError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "token store unavailable").
		WithTextCode(auth.TextCodeStoreUnavailable)
}
