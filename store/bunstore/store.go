package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-client"
)

// TokenModel is the Bun model for stored tokens. Each slot holds one token.
type TokenModel struct {
	bun.BaseModel `bun:"table:auth_tokens"`

	Slot      string    `bun:"slot,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Store implements auth.TokenStore on top of a Bun database.
type Store struct {
	db   bun.IDB
	slot string
	now  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithSlot sets the slot name, auth.DefaultTokenKey by default.
func WithSlot(slot string) Option {
	return func(s *Store) {
		if slot != "" {
			s.slot = slot
		}
	}
}

// WithClock injects a custom clock for updated_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// New creates a new store.
func New(db bun.IDB, opts ...Option) *Store {
	s := &Store{
		db:   db,
		slot: auth.DefaultTokenKey,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateTable creates the tokens table if missing.
func (s *Store) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*TokenModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return storeError(err)
	}
	return nil
}

// Save implements auth.TokenStore.
func (s *Store) Save(ctx context.Context, token string) error {
	model := &TokenModel{
		Slot:      s.slot,
		Value:     token,
		UpdatedAt: s.now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (slot) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return storeError(err)
	}
	return nil
}

// Read implements auth.TokenStore.
func (s *Store) Read(ctx context.Context) (string, error) {
	var model TokenModel
	err := s.db.NewSelect().
		Model(&model).
		Where("slot = ?", s.slot).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", storeError(err)
	}
	return model.Value, nil
}

// Clear implements auth.TokenStore.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*TokenModel)(nil)).
		Where("slot = ?", s.slot).
		Exec(ctx)
	if err != nil {
		return storeError(err)
	}
	return nil
}

func storeError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "token store unavailable").
		WithTextCode(auth.TextCodeStoreUnavailable)
}
