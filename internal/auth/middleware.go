package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/pkg/log"
	"github.com/AdityaGahukar/PingWave/pkg/response"
)

const (
	// CookieName is the cookie carrying the session token. The same
	// cookie authenticates REST requests and the WebSocket handshake.
	CookieName = "jwt"

	userKey = "auth_user"
)

// RequireAuth returns a gin middleware that validates the session
// cookie and stores the resolved user in the request context. Requests
// without a valid token never reach the handler.
func RequireAuth(v *Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(CookieName)

		user, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			c.Abort()
			switch {
			case errors.Is(err, ErrNoToken):
				response.Unauthorized(c, domain.HandshakeNoToken)
			case errors.Is(err, ErrInvalidToken):
				response.Unauthorized(c, domain.HandshakeInvalidToken)
			case errors.Is(err, ErrUserGone):
				response.Unauthorized(c, domain.HandshakeUserNotFound)
			default:
				l := log.Ctx(c.Request.Context())
				l.Error().Err(err).Msg("token validation failed")
				response.InternalError(c, "failed to validate token")
			}
			return
		}

		c.Set(userKey, user)
		c.Set(log.FieldUserID, user.ID)
		c.Next()
	}
}

// CurrentUser returns the authenticated user stored by RequireAuth.
// It returns nil when the middleware did not run.
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}
