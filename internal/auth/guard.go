// Package auth issues and validates bearer tokens and hashes credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/Contexta/internal/apperr"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	"github.com/markdave123-py/Contexta/internal/models"
)

// Failure causes. Callers only ever see "not authenticated"; these are kept
// for logs.
var (
	ErrMissingBearer    = errors.New("missing bearer token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrUnknownSubject   = errors.New("token subject not found")
)

const DefaultTokenTTL = 72 * time.Hour

// UserLookup resolves a token subject to a user.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Claims is the token payload.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Guard is the access control guard: HS256 tokens signed with a shared secret.
type Guard struct {
	secret []byte
	ttl    time.Duration
	users  UserLookup
	now    func() time.Time
}

type GuardOption func(*Guard)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

func NewGuard(secret string, ttl time.Duration, users UserLookup, opts ...GuardOption) (*Guard, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if users == nil {
		return nil, errors.New("user lookup is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	g := &Guard{secret: []byte(secret), ttl: ttl, users: users, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Issue signs a token for userID that expires after the configured TTL.
func (g *Guard) Issue(userID, email string) (string, error) {
	now := g.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature and expiry and loads the subject. Every failure
// is an apperr Unauthorized wrapping one of the cause sentinels.
func (g *Guard) Validate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, unauthorized(ErrMissingBearer)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, unauthorized(causeOf(err))
	}
	if claims.Subject == "" {
		return nil, unauthorized(ErrMalformedToken)
	}

	user, err := g.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, db.ErrNotFound) {
			return nil, unauthorized(ErrUnknownSubject)
		}
		return nil, apperr.Internal(fmt.Errorf("load token subject: %w", err))
	}
	return user, nil
}

// ValidateHeader validates the token of an "Authorization: Bearer" header.
func (g *Guard) ValidateHeader(ctx context.Context, header string) (*models.User, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, unauthorized(err)
	}
	return g.Validate(ctx, token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingBearer
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}

func causeOf(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func unauthorized(cause error) error {
	return apperr.Unauthorized("not authenticated", cause)
}
