// Package tokens issues and verifies the short-lived HS256 access tokens.
package tokens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/authflow/backend/middleware"
	"github.com/upb/authflow/backend/models"
)

// DefaultAccessTTL is how long an access token stays valid
const DefaultAccessTTL = 15 * time.Minute

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and unexpected algorithms
	ErrInvalidToken = errors.New("invalid access token")

	// ErrTokenExpired is returned once the exp claim has passed
	ErrTokenExpired = errors.New("access token expired")
)

// Claims is the access token payload
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Config configures an Issuer
type Config struct {
	Secret []byte
	TTL    time.Duration
	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// Issuer signs and verifies access tokens with a shared HMAC secret
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewIssuer creates an Issuer. The secret must come from configuration.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("access token secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Issuer{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// TTL returns the lifetime of issued tokens
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// IssueAccessToken signs a token carrying the user's id and email
func (i *Issuer) IssueAccessToken(user *models.User) (string, error) {
	now := i.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the payload
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := i.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken adapts Verify to the bearer middleware
func (i *Issuer) ValidateToken(_ context.Context, tokenString string) (*middleware.Claims, error) {
	claims, err := i.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	out := &middleware.Claims{
		Sub:   claims.Subject,
		Email: claims.Email,
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.Iat = claims.IssuedAt.Unix()
	}
	return out, nil
}

// Fingerprint identifies a token in logs without revealing it
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
