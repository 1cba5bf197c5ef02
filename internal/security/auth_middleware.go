package security

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liana-gateway/pkg/response"
)

// Context keys set by RequireAuth
const (
	ClaimsKey = "user_claims"
	UserIDKey = "user_id"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	jwtManager *JWTManager
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtManager *JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
	}
}

// RequireAuth rejects requests without a valid bearer token
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := am.jwtManager.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			abort(c, http.StatusUnauthorized, response.UnauthorizedResponse(err.Error(), correlationID(c)))
			return
		}

		claims, err := am.jwtManager.ValidateToken(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, response.UnauthorizedResponse("Invalid or expired token", correlationID(c)))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// RequireAnyRole rejects authenticated users holding none of roles. It
// must run after RequireAuth.
func (am *AuthMiddleware) RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := userClaims(c)
		if !ok {
			abort(c, http.StatusUnauthorized, response.UnauthorizedResponse("User claims not found", correlationID(c)))
			return
		}
		if !claims.HasAnyRole(roles...) {
			abort(c, http.StatusForbidden, response.ForbiddenResponse("Insufficient permissions", correlationID(c)))
			return
		}
		c.Next()
	}
}

// RequireCollectionAccess rejects users who may not browse the collection
// named by the route parameter param. It must run after RequireAuth.
func (am *AuthMiddleware) RequireCollectionAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := userClaims(c)
		if !ok {
			abort(c, http.StatusUnauthorized, response.UnauthorizedResponse("User claims not found", correlationID(c)))
			return
		}
		if collection := c.Param(param); !claims.CanBrowse(collection) {
			abort(c, http.StatusForbidden, response.ForbiddenResponse("Collection "+collection+" is not accessible", correlationID(c)))
			return
		}
		c.Next()
	}
}

func userClaims(c *gin.Context) (*Claims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*Claims)
	return claims, ok
}

func abort(c *gin.Context, status int, body *response.StandardResponse) {
	c.AbortWithStatusJSON(status, body)
}

func correlationID(c *gin.Context) string {
	return c.GetString("correlation_id")
}
