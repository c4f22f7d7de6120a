package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/account-rental/internal"
)

// Claims carries the customer identity issued by the upstream session service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ActorID prefers the explicit user_id claim and falls back to the subject.
func (c *Claims) ActorID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// TokenVerifier validates bearer tokens. This service never issues them.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTVerifier struct {
	PublicKey *rsa.PublicKey
	Issuer    string
	Leeway    time.Duration
}

func NewJWTVerifier(publicKey *rsa.PublicKey, issuer string) *JWTVerifier {
	return &JWTVerifier{
		PublicKey: publicKey,
		Issuer:    issuer,
		Leeway:    30 * time.Second,
	}
}

// ValidateToken validates a RS256 JWT and returns its claims
func (v *JWTVerifier) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.Leeway),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.PublicKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired.WithCause(err)
		}
		return nil, internal.ErrInvalidToken.WithCause(err)
	}
	if !token.Valid || claims.ActorID() == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
