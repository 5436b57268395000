// Package jwt authenticates API callers from HS256 bearer tokens.
package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the bookings API.
const (
	RoleDoctor   = "doctor"
	RoleFacility = "facility"
	RoleAdmin    = "admin"
)

const claimsKey = "claims"

// Claims identifies the caller. ProfileID is the doctor or facility id the
// caller acts as.
type Claims struct {
	Sub       string `json:"sub"`
	Role      string `json:"role"`
	ProfileID string `json:"profile_id"`
	jwt.RegisteredClaims
}

var errSigningMethod = errors.New("invalid signing method")

// Middleware rejects requests without a valid bearer token and stores the
// claims on the gin context.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header", "code": "UNAUTHORIZED"})
			return
		}

		claims, err := Parse(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the caller has one of roles.
// Must run after Middleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok || !slices.Contains(roles, claims.Role) || claims.ProfileID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}

// GetClaims returns the claims stored by Middleware.
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// Parse validates raw and returns its claims.
func Parse(secret, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errSigningMethod
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Issue signs a token for subject acting as role/profileID, valid for ttl.
func Issue(secret, subject, role, profileID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:       subject,
		Role:      role,
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
