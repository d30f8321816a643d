package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// mintClaims is the signed payload layout of minted tokens.
type mintClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"userId,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// MintOptions describes the identity carried by a minted token.
type MintOptions struct {
	// Subject is the sub claim, the e-mail for storefront users.
	Subject string
	// UserID is the userId claim. Empty generates a random UUID.
	UserID string
	Role   Role
	// TTL is added to IssuedAt to get exp. Zero uses the minter default.
	TTL time.Duration
	// IssuedAt overrides the issuance time. Zero uses the minter clock.
	IssuedAt time.Time
}

// TokenMinter signs HS256 tokens shaped like the ones issued by the user
// service. It exists for local development and tests; the client never mints
// tokens in production.
type TokenMinter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// MinterOption customizes a TokenMinter.
type MinterOption func(*TokenMinter)

// WithMinterClock injects a custom clock.
func WithMinterClock(clock func() time.Time) MinterOption {
	return func(m *TokenMinter) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithMinterTTL sets the default token lifetime.
func WithMinterTTL(ttl time.Duration) MinterOption {
	return func(m *TokenMinter) {
		m.ttl = ttl
	}
}

// DefaultMintTTL matches the lifetime of tokens issued by the backend.
const DefaultMintTTL = 10 * time.Hour

// NewTokenMinter returns a minter signing with secret.
func NewTokenMinter(secret []byte, opts ...MinterOption) *TokenMinter {
	m := &TokenMinter{
		secret: secret,
		ttl:    DefaultMintTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Mint signs a token for opts and returns it with its expiry. A negative TTL
// produces an already expired token.
func (m *TokenMinter) Mint(opts MintOptions) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, goerrors.New("signing secret is required", goerrors.CategoryBadInput)
	}
	if opts.Subject == "" {
		return "", time.Time{}, goerrors.New("subject is required", goerrors.CategoryBadInput)
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = m.now()
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = m.ttl
	}
	userID := opts.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	expiresAt := issuedAt.Add(ttl)
	claims := &mintClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   opts.Subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      userID,
		UserRole: string(opts.Role),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}
