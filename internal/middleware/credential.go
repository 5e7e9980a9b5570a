package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepdesk/examtake/internal/response"
)

// ContextKeyCredential is the Gin context key for the forwarded credential.
const ContextKeyCredential = "credential"

// RequireCredential extracts the caller's exam-backend credential (its
// session cookie, or a bearer token for non-browser clients) and stores
// it for gateway passthrough. This service never validates the
// credential itself — the exam backend is the authority; a rejected
// credential surfaces as an unauthorized gateway error downstream.
func RequireCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := c.GetHeader("Cookie")
		if cred == "" {
			if auth := c.GetHeader("Authorization"); auth != "" {
				cred = auth
			}
		}
		if cred == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrCredentialRequired)
			return
		}
		c.Set(ContextKeyCredential, cred)
		c.Next()
	}
}

// GetCredential returns the forwarded credential stored by
// RequireCredential, or "" when the middleware was not applied.
func GetCredential(c *gin.Context) string {
	cred, _ := c.Get(ContextKeyCredential)
	v, _ := cred.(string)
	return v
}
