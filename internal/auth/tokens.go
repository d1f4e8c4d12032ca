package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("invalid token")
)

// TokenKind selects which signing secret and lifetime a token uses.
// Access and refresh tokens are signed with distinct secrets so one
// can never be presented in place of the other.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken signs a new token of the given kind for the user.
func (c *TokenConfig) IssueToken(kind TokenKind, userID uuid.UUID, email string) (string, error) {
	secret, expiry := c.keyFor(kind)

	now := time.Now()
	claims := &Claims{
		UserID: userID.String(),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyToken parses and validates a token against the secret for its
// kind. An access token can never verify as a refresh token and vice
// versa because the secrets differ.
func (c *TokenConfig) VerifyToken(kind TokenKind, raw string) (*Claims, error) {
	secret, _ := c.keyFor(kind)

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenInvalid
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (c *TokenConfig) keyFor(kind TokenKind) ([]byte, time.Duration) {
	if kind == RefreshToken {
		return c.RefreshSecret, c.RefreshExpiry
	}
	return c.AccessSecret, c.AccessExpiry
}
