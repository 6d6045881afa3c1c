package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/weddingdesk/pkg/crypto"
	appErrors "github.com/charlesng35/weddingdesk/pkg/errors"
	"github.com/charlesng35/weddingdesk/pkg/response"
)

// CtxAdminUserKey stores the authenticated admin username.
const CtxAdminUserKey = "adminUser"

// AdminBasicAuth guards the admin API with HTTP basic auth against a bcrypt
// password hash. The username comparison is constant time.
func AdminBasicAuth(username, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		userOK := crypto.ConstantTimeEqual(user, username)
		passOK := ok && crypto.VerifyPassword(passwordHash, pass)
		if !ok || !userOK || !passOK || username == "" {
			c.Header("WWW-Authenticate", `Basic realm="weddingdesk admin", charset="UTF-8"`)
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Set(CtxAdminUserKey, user)
		c.Next()
	}
}
