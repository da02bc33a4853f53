package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
	"github.com/noah-isme/campus-hostel-api/pkg/response"
)

// ContextUserKey holds the *models.AccessClaims of the signed-in operator.
const ContextUserKey = "currentUser"

type TokenValidator interface {
	ValidateToken(token string) (*models.AccessClaims, error)
}

var errMalformedAuth = appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")

// JWT rejects requests without a valid bearer token and stores the claims
// for RequireRoles, Audit and the handlers.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var claims *models.AccessClaims
			if claims, err = validator.ValidateToken(token); err == nil {
				c.Set(ContextUserKey, claims)
				c.Next()
				return
			}
		}
		response.Error(c, err)
		c.Abort()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errMalformedAuth
	}
	return token, nil
}

// CurrentUser returns the claims stored by JWT.
func CurrentUser(c *gin.Context) (*models.AccessClaims, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.AccessClaims)
	return claims, ok && claims != nil
}
