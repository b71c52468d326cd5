// Package auth resolves caller credentials into an actor. Tokens are HS256
// JWTs whose subject is the actor id and whose role claim is the actor role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// ActorDirectory turns opaque credentials into an authenticated actor. The
// engine trusts the identity but still checks role and ownership itself.
type ActorDirectory interface {
	Resolve(ctx context.Context, credentials string) (entity.Actor, error)
}

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type JWTDirectory struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTDirectory(secret, issuer string, ttl time.Duration) *JWTDirectory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTDirectory{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// GenerateToken signs a token for actor; a non-positive ttl uses the
// directory default.
func (d *JWTDirectory) GenerateToken(actor entity.Actor, ttl time.Duration) (string, error) {
	if actor.ID == "" {
		return "", errors.New("actor id is required")
	}
	if _, ok := constants.ParseRole(string(actor.Role)); !ok {
		return "", fmt.Errorf("unknown role %q", actor.Role)
	}
	if ttl <= 0 {
		ttl = d.ttl
	}
	now := d.now()
	claims := &Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    d.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.secret)
}

// Resolve validates the token and returns the actor it names.
func (d *JWTDirectory) Resolve(_ context.Context, tokenStr string) (entity.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(d.now),
	}
	if d.issuer != "" {
		opts = append(opts, jwt.WithIssuer(d.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return d.secret, nil
	}, opts...)
	if err != nil {
		return entity.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return entity.Actor{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return entity.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role, ok := constants.ParseRole(claims.Role)
	if !ok {
		return entity.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return entity.Actor{ID: claims.Subject, Role: role}, nil
}
