// Package identity turns opaque credentials into chat identities.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuth is returned for any credential that does not yield an identity.
var ErrAuth = errors.New("authentication error")

const issuer = "chatter"

// Oracle verifies a credential and returns the identity it names.
type Oracle interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// Claims is the token payload. Username is the chat identity.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTOracle verifies HS256 tokens signed with a shared secret.
type JWTOracle struct {
	secret []byte
	now    func() time.Time
}

var _ Oracle = (*JWTOracle)(nil)

// NewJWTOracle returns an oracle for secret. The secret must not be empty.
func NewJWTOracle(secret string) (*JWTOracle, error) {
	if secret == "" {
		return nil, errors.New("identity: empty JWT secret")
	}
	return &JWTOracle{secret: []byte(secret), now: time.Now}, nil
}

// Verify checks signature, algorithm and expiry and returns the username claim.
func (o *JWTOracle) Verify(_ context.Context, credential string) (string, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return "", fmt.Errorf("%w: missing token", ErrAuth)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims,
		func(token *jwt.Token) (any, error) {
			return o.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(o.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrAuth)
	}

	username := strings.TrimSpace(claims.Username)
	if username == "" {
		return "", fmt.Errorf("%w: token has no username", ErrAuth)
	}
	return username, nil
}

// Issue signs a token for username valid for ttl.
func (o *JWTOracle) Issue(username string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", errors.New("identity: empty username")
	}

	now := o.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.secret)
}
