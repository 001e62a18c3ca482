package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fluentz/placement-backend/internal/response"
	"github.com/fluentz/placement-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
	// ContextKeyLearnerID is the Gin context key for the authenticated learner id.
	ContextKeyLearnerID = "learner_id"
)

var errTokenMissing = errors.New("authorization header or token query required")

// RequireLearnerJWT validates a learner JWT from the Authorization header,
// falling back to the ?token= query parameter for WebSocket upgrades, which
// cannot set headers from browsers.
func RequireLearnerJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			switch {
			case errors.Is(err, errTokenMissing):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			case errors.Is(err, jwt.ErrTokenExpired):
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			default:
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			}
			return
		}

		if claims.Role != service.RoleLearner {
			response.AbortFail(c, http.StatusForbidden, response.ErrLearnerAccessOnly)
			return
		}

		learnerID, err := claims.LearnerID()
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyLearnerID, learnerID)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetLearnerID returns the authenticated learner id set by RequireLearnerJWT.
func GetLearnerID(c *gin.Context) (int64, bool) {
	id, ok := c.Get(ContextKeyLearnerID)
	if !ok {
		return 0, false
	}
	v, ok := id.(int64)
	return v, ok
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	tokenStr := ""

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			tokenStr = parts[1]
		}
	}

	if tokenStr == "" {
		tokenStr = c.Query("token")
	}

	if tokenStr == "" {
		return nil, errTokenMissing
	}

	return authService.ValidateToken(tokenStr)
}
