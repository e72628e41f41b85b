package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// Authenticator resolves a bearer token to the caller. A nil user with a nil error means the
// token is valid but the email has not registered.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.JWTClaims, *models.User, error)
}

// JWT protects routes by requiring a valid access token that belongs to a registered user.
func JWT(auth Authenticator) gin.HandlerFunc {
	return gate(auth, false)
}

// JWTAllowUnregistered accepts valid tokens whose email has no user row yet. It guards
// self-registration only.
func JWTAllowUnregistered(auth Authenticator) gin.HandlerFunc {
	return gate(auth, true)
}

func gate(auth Authenticator, allowUnregistered bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if user == nil && !allowUnregistered {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "user is not registered"))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims of a registered caller when present but does not block.
func OptionalJWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.Next()
			return
		}
		claims, user, err := auth.Authenticate(c.Request.Context(), token)
		if err == nil && user != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

// Claims returns the caller attached by the gate, or nil.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
