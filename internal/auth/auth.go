// Package auth turns an authenticated display name into the signed identity
// token the rest of the system treats as an opaque identity string. Account
// lifecycle (registration, passwords, verification) lives upstream.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SpelGekko/Chat-Website/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func IssueIdentityToken(name, secret string, ttlMinutes int) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseIdentityToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for websocket upgrades.
func BearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("Bearer "):])
	}
	return c.Query("token")
}

func AuthMiddleware(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := BearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := ParseIdentityToken(tokenStr, cfg.JWTSecret)
		if err != nil || claims.Name == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("identity", claims.Name)
		c.Next()
	}
}

func GetIdentity(c *gin.Context) string {
	if v, ok := c.Get("identity"); ok {
		if name, ok2 := v.(string); ok2 {
			return name
		}
	}
	return ""
}
