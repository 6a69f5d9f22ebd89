package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "elog-mock"

// tokenPair holds signed access and refresh tokens.
type tokenPair struct {
	AccessToken  string
	RefreshToken string
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func sign(subject, role, key string, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(key))
}

// issue signs an access and a refresh token for subject.
func issue(subject, key string, now time.Time, accessTTL, refreshTTL time.Duration) (tokenPair, error) {
	access, err := sign(subject, "admin", key, now, accessTTL)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := sign(subject, "refresh", key, now, refreshTTL)
	if err != nil {
		return tokenPair{}, err
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// parse validates a token and returns its claims.
func parse(tokenStr, key string) (claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return claims{}, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return claims{}, errors.New("invalid token")
	}
	if c.Role != "admin" {
		return claims{}, errors.New("not an access token")
	}
	return *c, nil
}

// adminAuth enforces bearer access tokens signed with key.
func adminAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Access token required"})
			return
		}
		cl, err := parse(strings.TrimSpace(authz[len("bearer "):]), key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}
		c.Set("claims", cl)
		c.Next()
	}
}
