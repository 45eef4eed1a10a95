package middleware

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"symposium/internal/cache"
	"symposium/internal/dto"
)

func LoggingMiddleware() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()
		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// AdminAuth gates administrative routes: the shared-secret header must match
// and the bearer token must still exist in the session store. Session expiry
// is enforced by the store's TTL, not by trusting the client.
func AdminAuth(store cache.Store, sharedSecret string) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		secret := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(sharedSecret)) != 1 {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}

		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}

		if _, err := store.Get(c.Request.Context(), cache.SessionKey(token)); err != nil {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}

		c.Next()
	}
}
