package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"critique-backend/internal/shared/server/respond"
)

const (
	userIDKey           = "userId"
	webhookSecretHeader = "X-Webhook-Secret"
)

// SetUserID records the chat user handling a request, for logs and rate limiting.
func SetUserID(c *gin.Context, userID string) {
	if userID = strings.TrimSpace(userID); userID != "" {
		c.Set(userIDKey, userID)
	}
}

// UserIDFromContext fetches the user ID stored by SetUserID.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// WebhookSecret rejects requests that do not carry the shared secret header.
// An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		got := strings.TrimSpace(c.GetHeader(webhookSecretHeader))
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid webhook secret", nil)
			return
		}
		c.Next()
	}
}
