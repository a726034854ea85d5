package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims is what the backend issues after a successful PIN login.
// PlexToken is sealed inside the signed token and opened by Validate.
type SessionClaims struct {
	PlexToken string `json:"plex_token"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	sealer   *Sealer
	secret   []byte
	method   jwt.SigningMethod
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenIssuer supports the HMAC algorithms (HS256, HS384, HS512).
func NewTokenIssuer(secret, algorithm string, lifetime time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("session secret key is empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	if lifetime <= 0 {
		lifetime = 7 * 24 * time.Hour
	}
	sealer, err := NewSealer(secret)
	if err != nil {
		return nil, err
	}
	return &TokenIssuer{sealer: sealer, secret: []byte(secret), method: method, lifetime: lifetime, now: time.Now}, nil
}

func (t *TokenIssuer) Issue(plexToken string, userID int64, username string) (string, error) {
	sealed, err := t.sealer.Seal(plexToken)
	if err != nil {
		return "", err
	}
	now := t.now()
	claims := &SessionClaims{
		PlexToken: sealed,
		UserID:    userID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
			Issuer:    "plex-ai",
		},
	}
	return jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
}

func (t *TokenIssuer) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{t.method.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.PlexToken == "" {
		return nil, ErrInvalidToken
	}
	plexToken, err := t.sealer.Open(claims.PlexToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims.PlexToken = plexToken
	return claims, nil
}
