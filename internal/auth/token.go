package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/R3E-Network/opxpress/internal/cache"
)

// Issuer is the iss claim on every access token.
const Issuer = "opxpress"

const revokedPrefix = "auth:revoked:"

var (
	// ErrTokenRevoked is returned by Verify for a token that was logged out.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrRevocationUnavailable is returned by Verify when the revocation list
	// cannot be read. The token itself may be fine.
	ErrRevocationUnavailable = errors.New("revocation list unavailable")
)

// Claims are the access token claims.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens. Revoked token ids are
// kept in the cache until the token would have expired anyway.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	revoked cache.Cache
	now     func() time.Time
}

// NewTokenIssuer creates an issuer. revoked may be nil, which disables
// revocation.
func NewTokenIssuer(secret string, ttl time.Duration, revoked cache.Cache) *TokenIssuer {
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}
}

// TTL returns how long issued tokens stay valid.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for the user and returns it with its expiry.
func (i *TokenIssuer) Issue(userID, email string) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses and validates a token. Only HS256 tokens from this issuer
// that are unexpired and not revoked are accepted.
func (i *TokenIssuer) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	if i.revoked != nil && claims.ID != "" {
		_, found, err := i.revoked.Get(ctx, revokedPrefix+claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
		}
		if found {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke marks a valid token as logged out. Tokens that no longer verify
// need no revocation and are ignored.
func (i *TokenIssuer) Revoke(ctx context.Context, token string) error {
	if i.revoked == nil || token == "" {
		return nil
	}
	claims, err := i.parse(token)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(i.now())
	if ttl <= 0 {
		return nil
	}
	if err := i.revoked.Set(ctx, revokedPrefix+claims.ID, []byte(claims.UserID), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (i *TokenIssuer) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
