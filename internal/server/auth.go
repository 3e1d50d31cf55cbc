// Package server implements JWT-based authentication for the dashboard API.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Login for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims is the payload embedded in every JWT issued by /api/login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Auth checks passwords against an in-memory user table and issues
// session tokens for the read API.
type Auth struct {
	secret []byte
	ttl    time.Duration
	users  map[string][]byte // username → bcrypt hash
	dummy  []byte
	now    func() time.Time
}

// NewAuth hashes the configured plain-text passwords with the given bcrypt
// cost. Pass bcrypt.DefaultCost outside of tests.
func NewAuth(secret string, ttl time.Duration, users map[string]string, cost int) (*Auth, error) {
	if secret == "" {
		return nil, errors.New("auth: empty jwt secret")
	}
	a := &Auth{
		secret: []byte(secret),
		ttl:    ttl,
		users:  make(map[string][]byte, len(users)),
		now:    time.Now,
	}
	for name, pass := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), cost)
		if err != nil {
			return nil, fmt.Errorf("hashing password for %q: %w", name, err)
		}
		a.users[name] = hash
	}
	// Unknown users are compared against this so both paths cost the same.
	dummy, err := bcrypt.GenerateFromPassword([]byte("talonpulse"), cost)
	if err != nil {
		return nil, err
	}
	a.dummy = dummy
	return a, nil
}

// Login verifies the credentials and returns a signed token.
func (a *Auth) Login(username, password string) (string, error) {
	hash, ok := a.users[username]
	if !ok {
		hash = a.dummy
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return "", ErrInvalidCredentials
	}
	return a.GenerateJWT(username)
}

// GenerateJWT creates a signed HS256 JWT valid for the configured lifetime.
func (a *Auth) GenerateJWT(username string) (string, error) {
	now := a.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "talonpulse",
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// parseJWT validates a token string and returns the claims.
func (a *Auth) parseJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithIssuer("talonpulse"))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Middleware is a Gin middleware that validates the session token.
// It expects the header:  Authorization: Bearer <jwt>
// On success it stores the username in the Gin context as "username".
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
			})
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid Authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := a.parseJWT(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}
