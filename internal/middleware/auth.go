package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/EL-KENDEH-TEAM/EK-SMS/internal/auth"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxReviewerKey = "reviewer"
)

// RequireReviewer authenticates the bearer JWT and admits only platform admins.
// The reviewer identity is stored under CtxReviewerKey.
func RequireReviewer(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.HasRole(iauth.RolePlatformAdmin) {
			response.Error(c, errors.ErrForbidden.WithMessage("Platform administrator access required"))
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxReviewerKey, claims.Reviewer())
		c.Next()
	}
}

// Reviewer returns the authenticated reviewer identity, if any.
func Reviewer(c *gin.Context) string {
	return c.GetString(CtxReviewerKey)
}
